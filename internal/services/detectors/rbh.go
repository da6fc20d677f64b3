package detectors

import (
	"math"

	"Sniper/internal/domain/models"
	"Sniper/internal/domain/service"
	"Sniper/pkg/config"
)

// RBH detects range breakout holds: a confirmed close beyond a range
// boundary, then a retest of the broken level that holds. The setup is
// a small state machine; the entry is the retest, never the break bar.
type RBH struct {
	cfg     *config.Config
	weights scoreWeights
}

// NewRBH creates the range-breakout-hold detector.
func NewRBH(cfg *config.Config) *RBH {
	return &RBH{
		cfg: cfg,
		weights: scoreWeights{
			structure: 0.30,
			alignment: 0.20,
			depth:     0.20,
			spread:    0.10,
			momentum:  0.20,
		},
	}
}

func (d *RBH) Type() models.SetupType { return models.SetupRBH }

func (d *RBH) Detect(snap *models.Snapshot, st *models.SymbolState, barIndex int) (models.Setup, *models.TriggerEvent) {
	if cur, ok := st.Active.(*models.RBHSetup); ok {
		return d.manage(cur, snap, barIndex)
	}
	if st.Active != nil {
		return st.Active, nil
	}
	return d.create(snap, barIndex), nil
}

func (d *RBH) manage(cur *models.RBHSetup, snap *models.Snapshot, barIndex int) (models.Setup, *models.TriggerEvent) {
	if barIndex > cur.ExpiryBar {
		cur.Advance(models.RBHExpired)
		return nil, nil
	}

	switch cur.Phase {
	case models.RBHAwaitingBreak:
		return d.awaitBreak(cur, snap, barIndex)
	case models.RBHBreakConfirmed:
		return d.awaitRetest(cur, snap, barIndex)
	default:
		return nil, nil
	}
}

// awaitBreak watches for a confirming close beyond the armed boundary.
// A confirming bar closes past boundary plus buffer with real body and
// its close in the outer fraction of its own range.
func (d *RBH) awaitBreak(cur *models.RBHSetup, snap *models.Snapshot, barIndex int) (models.Setup, *models.TriggerEvent) {
	bar := snap.LastBar()
	atr := snap.ATR
	buffer := d.cfg.RBH.BreakBufferATR * atr

	// a close through the far boundary kills the armed side
	if cur.Direction == models.Buy && bar.Close < cur.Range.Low-buffer {
		cur.Advance(models.RBHInvalid)
		return nil, nil
	}
	if cur.Direction == models.Sell && bar.Close > cur.Range.High+buffer {
		cur.Advance(models.RBHInvalid)
		return nil, nil
	}

	broke := false
	switch cur.Direction {
	case models.Buy:
		broke = bar.Close > cur.Range.High+buffer
	case models.Sell:
		broke = bar.Close < cur.Range.Low-buffer
	}
	if !broke || bodyATR(bar, atr) < d.cfg.RBH.BodyATRFraction || !outerClose(bar, cur.Direction, d.cfg.RBH.OuterCloseFraction) {
		return cur, nil
	}

	if !cur.Advance(models.RBHBreakConfirmed) {
		return nil, nil
	}
	cur.BreakBar = barIndex
	cur.RetestDue = barIndex + d.cfg.RBH.RetestWindowBars
	if cur.Direction == models.Buy {
		cur.BrokenLevel = cur.Range.High
		cur.BreakExtreme = bar.High
	} else {
		cur.BrokenLevel = cur.Range.Low
		cur.BreakExtreme = bar.Low
	}
	d.placeLevels(cur, snap)
	if !stopDistanceOK(cur.TriggerLevel, cur.StopLoss, atr, d.cfg.RBH.MinStopATR) {
		cur.Advance(models.RBHInvalid)
		return nil, nil
	}
	return cur, nil
}

// awaitRetest waits for price to come back to the broken level and hold.
// The hold is a bar that touches the retest zone and closes back on the
// breakout side; a close back inside the range is a failed break.
func (d *RBH) awaitRetest(cur *models.RBHSetup, snap *models.Snapshot, barIndex int) (models.Setup, *models.TriggerEvent) {
	bar := snap.LastBar()
	zone := d.cfg.RBH.EntryBufferATR * snap.ATR

	failed := false
	switch cur.Direction {
	case models.Buy:
		failed = bar.Close < cur.Range.High-zone
	case models.Sell:
		failed = bar.Close > cur.Range.Low+zone
	}
	if failed {
		cur.Advance(models.RBHInvalid)
		return nil, nil
	}

	if barIndex > cur.RetestDue {
		cur.Advance(models.RBHExpired)
		return nil, nil
	}

	touched := false
	held := false
	switch cur.Direction {
	case models.Buy:
		touched = bar.Low <= cur.BrokenLevel+zone
		held = bar.Close > cur.BrokenLevel
	case models.Sell:
		touched = bar.High >= cur.BrokenLevel-zone
		held = bar.Close < cur.BrokenLevel
	}
	if !(touched && held) {
		return cur, nil
	}

	if !cur.Advance(models.RBHRetestConfirmed) {
		return nil, nil
	}
	d.repositionStop(cur, bar, snap.ATR)
	return nil, &models.TriggerEvent{
		SetupType: models.SetupRBH,
		Symbol:    cur.Symbol,
		Direction: cur.Direction,
		Time:      snap.BarTime,
		Price:     cur.TriggerLevel,
		Momentum:  clamp01(bodyATR(bar, snap.ATR)),
		Reasons:   []string{"rbh_retest_hold"},
		Fired:     cur,
	}
}

// create arms a breakout watch when price sits near one boundary of an
// acceptable range.
func (d *RBH) create(snap *models.Snapshot, barIndex int) models.Setup {
	if snap.Range == nil || snap.ATR <= 0 {
		return nil
	}
	rng := *snap.Range
	widthATR := rng.Width / snap.ATR
	if widthATR < d.cfg.Classifier.RangeMinWidthATR || widthATR > d.cfg.Classifier.RangeMaxWidthATR {
		return nil
	}

	c := snap.Close()
	near := d.cfg.RBH.NearBoundaryATR * snap.ATR
	var dir models.Direction
	switch {
	case math.Abs(c-rng.High) <= near:
		dir = models.Buy
	case math.Abs(c-rng.Low) <= near:
		dir = models.Sell
	default:
		return nil
	}

	setup := &models.RBHSetup{
		SetupCore: models.SetupCore{
			Symbol:     snap.Symbol,
			Direction:  dir,
			DetectedAt: snap.BarTime,
			ExpiryBar:  barIndex + d.cfg.RBH.ExpiryBars,
		},
		Phase: models.RBHAwaitingBreak,
		Range: rng,
	}

	setup.Scores = d.scores(snap, setup)
	setup.Confidence = d.weights.blend(setup.Scores)
	if setup.Confidence < d.cfg.RBH.MinScore {
		return nil
	}
	return setup
}

// placeLevels sets entry, stop, and targets once the break is confirmed.
// Entry is the retest of the broken level, the stop sits beyond the
// break bar's opposing extreme, and targets project the range width.
func (d *RBH) placeLevels(cur *models.RBHSetup, snap *models.Snapshot) {
	bar := snap.LastBar()
	atr := snap.ATR
	w := cur.Range.Width
	switch cur.Direction {
	case models.Buy:
		cur.TriggerLevel = cur.BrokenLevel + d.cfg.RBH.EntryBufferATR*atr
		cur.Invalidation = cur.Range.Low
		cur.StopLoss = bar.Low - d.cfg.RBH.SLBufferATR*atr
		cur.NoChase = cur.BreakExtreme
		cur.TakeProfit1 = cur.BrokenLevel + d.cfg.RBH.TP1WidthFraction*w
		cur.TakeProfit2 = cur.BrokenLevel + d.cfg.RBH.TP2WidthFraction*w
	case models.Sell:
		cur.TriggerLevel = cur.BrokenLevel - d.cfg.RBH.EntryBufferATR*atr
		cur.Invalidation = cur.Range.High
		cur.StopLoss = bar.High + d.cfg.RBH.SLBufferATR*atr
		cur.NoChase = cur.BreakExtreme
		cur.TakeProfit1 = cur.BrokenLevel - d.cfg.RBH.TP1WidthFraction*w
		cur.TakeProfit2 = cur.BrokenLevel - d.cfg.RBH.TP2WidthFraction*w
	}
}

// repositionStop tightens the stop behind the retest bar once the hold
// is confirmed, never closer than the minimum stop distance.
func (d *RBH) repositionStop(cur *models.RBHSetup, bar models.Bar, atr float64) {
	buffer := d.cfg.RBH.SLBufferATR * atr
	minStop := d.cfg.RBH.MinStopATR * atr
	switch cur.Direction {
	case models.Buy:
		sl := bar.Low - buffer
		if cur.TriggerLevel-sl < minStop {
			sl = cur.TriggerLevel - minStop
		}
		cur.StopLoss = sl
	case models.Sell:
		sl := bar.High + buffer
		if sl-cur.TriggerLevel < minStop {
			sl = cur.TriggerLevel + minStop
		}
		cur.StopLoss = sl
	}
}

func (d *RBH) scores(snap *models.Snapshot, s *models.RBHSetup) models.ScoreBreakdown {
	b := models.ScoreBreakdown{}

	// structure: touch count on both boundaries
	touches := s.Range.TouchHigh + s.Range.TouchLow
	b["structure"] = clamp01(float64(touches) / 6)

	// alignment: flat EMAs mean a clean range, steep ones argue against
	slopeATR := math.Abs(snap.EMA20Slope) / snap.ATR
	b["alignment"] = clamp01(1 - slopeATR*5)

	// depth: range width in its acceptable band, wider is more room
	widthATR := s.Range.Width / snap.ATR
	span := d.cfg.Classifier.RangeMaxWidthATR - d.cfg.Classifier.RangeMinWidthATR
	if span > 0 {
		b["depth"] = clamp01((widthATR - d.cfg.Classifier.RangeMinWidthATR) / span)
	}

	b["spread"] = spreadScore(snap.SpreadATR, d.cfg.MaxSpreadATR(snap.Symbol))

	// momentum: quiet compression before the break is the fuel
	b["momentum"] = clamp01(1 - snap.Compression/100)
	return b
}

// outerClose requires the close in the outer fraction of the bar's own
// range, in the break direction.
func outerClose(bar models.Bar, dir models.Direction, fraction float64) bool {
	r := bar.Range()
	if r <= 0 {
		return false
	}
	switch dir {
	case models.Buy:
		return (bar.Close-bar.Low)/r >= fraction
	case models.Sell:
		return (bar.High-bar.Close)/r >= fraction
	}
	return false
}

var _ service.Detector = (*RBH)(nil)
