package detectors

import (
	"math"

	"Sniper/internal/domain/models"
	"Sniper/internal/domain/service"
	"Sniper/pkg/config"
)

// TPR detects trend pullback reclaims: an intact trend leg, a pullback
// into the EMA band or near the defining pivot, then a reclaim of the
// pullback high (low for sells) on a bar with real body.
type TPR struct {
	cfg     *config.Config
	weights scoreWeights
}

// NewTPR creates the trend-pullback-reclaim detector.
func NewTPR(cfg *config.Config) *TPR {
	return &TPR{
		cfg: cfg,
		weights: scoreWeights{
			structure: 0.30,
			alignment: 0.25,
			depth:     0.20,
			spread:    0.10,
			momentum:  0.15,
		},
	}
}

func (d *TPR) Type() models.SetupType { return models.SetupTPR }

// Detect manages the active TPR setup when present (invalidation, expiry,
// trigger) and otherwise tries to create one.
func (d *TPR) Detect(snap *models.Snapshot, st *models.SymbolState, barIndex int) (models.Setup, *models.TriggerEvent) {
	if cur, ok := st.Active.(*models.TPRSetup); ok {
		return d.manage(cur, snap, barIndex)
	}
	if st.Active != nil {
		// another setup type owns the slot
		return st.Active, nil
	}
	return d.create(snap, barIndex), nil
}

func (d *TPR) manage(cur *models.TPRSetup, snap *models.Snapshot, barIndex int) (models.Setup, *models.TriggerEvent) {
	bar := snap.LastBar()

	if barIndex > cur.ExpiryBar {
		return nil, nil
	}
	if structureBroken(cur, bar.Close) {
		return nil, nil
	}

	// extend the pullback extreme and keep the stop beyond it
	if cur.Direction == models.Buy && bar.Low < cur.PullbackLow {
		cur.PullbackLow = bar.Low
		cur.StopLoss = bar.Low - d.cfg.TPR.SLBufferATR*snap.ATR
	}
	if cur.Direction == models.Sell && bar.High > cur.PullbackHigh {
		cur.PullbackHigh = bar.High
		cur.StopLoss = bar.High + d.cfg.TPR.SLBufferATR*snap.ATR
	}
	if !stopDistanceOK(cur.TriggerLevel, cur.StopLoss, snap.ATR, d.cfg.TPR.MinStopATR) {
		return nil, nil
	}

	if trig := d.barCloseTrigger(cur, snap); trig != nil {
		return nil, trig
	}
	return cur, nil
}

// barCloseTrigger checks the reclaim close and, when enabled, the
// rejection-wick entry.
func (d *TPR) barCloseTrigger(cur *models.TPRSetup, snap *models.Snapshot) *models.TriggerEvent {
	bar := snap.LastBar()
	body := bodyATR(bar, snap.ATR)

	reclaim := false
	switch cur.Direction {
	case models.Buy:
		reclaim = bar.Close > cur.TriggerLevel && bar.Close <= cur.NoChase && bar.Bullish()
	case models.Sell:
		reclaim = bar.Close < cur.TriggerLevel && bar.Close >= cur.NoChase && bar.Bearish()
	}
	if reclaim && body >= d.cfg.TPR.BodyATRFraction {
		return &models.TriggerEvent{
			SetupType: models.SetupTPR,
			Symbol:    cur.Symbol,
			Direction: cur.Direction,
			Time:      snap.BarTime,
			Price:     bar.Close,
			Momentum:  clamp01(body),
			Reasons:   []string{"tpr_reclaim_close"},
			Fired:     cur,
		}
	}

	if d.cfg.TPR.RejectionEntries {
		if trig := d.rejectionTrigger(cur, snap); trig != nil {
			return trig
		}
	}
	return nil
}

// rejectionTrigger fires on a wick that probed past the EMA20 and closed
// back on the trend side of it.
func (d *TPR) rejectionTrigger(cur *models.TPRSetup, snap *models.Snapshot) *models.TriggerEvent {
	bar := snap.LastBar()
	body := bar.Body()
	fired := false
	switch cur.Direction {
	case models.Buy:
		lowerWick := math.Min(bar.Open, bar.Close) - bar.Low
		fired = bar.Low < snap.EMA20 && bar.Close > snap.EMA20 &&
			lowerWick >= body && bar.Close <= cur.NoChase
	case models.Sell:
		upperWick := bar.High - math.Max(bar.Open, bar.Close)
		fired = bar.High > snap.EMA20 && bar.Close < snap.EMA20 &&
			upperWick >= body && bar.Close >= cur.NoChase
	}
	if !fired {
		return nil
	}
	cur.RejectionEntry = true
	return &models.TriggerEvent{
		SetupType: models.SetupTPR,
		Symbol:    cur.Symbol,
		Direction: cur.Direction,
		Time:      snap.BarTime,
		Price:     bar.Close,
		Momentum:  clamp01(bodyATR(bar, snap.ATR)),
		Reasons:   []string{"tpr_rejection_wick"},
		Fired:     cur,
	}
}

// create checks the TPR preconditions and builds fresh setup state.
func (d *TPR) create(snap *models.Snapshot, barIndex int) models.Setup {
	dir, defining := trendStructure(snap)
	if dir == "" {
		return nil
	}

	bar := snap.LastBar()
	if closeBeyondBuffer(dir, bar.Close, defining.Price, d.cfg.TPR.InvalidationATR*snap.ATR) {
		return nil
	}

	// pullback window: bars after the leg extreme since the defining pivot
	peak := legExtreme(snap.Bars, defining.BarIndex, dir)
	if peak < 0 || peak >= len(snap.Bars)-1 {
		return nil // no pullback yet
	}
	pbHigh, pbLow := windowExtremes(snap.Bars[peak+1:])

	if !inPullbackZone(dir, snap, defining, d.cfg.TPR.PullbackATR) {
		return nil
	}

	setup := &models.TPRSetup{
		SetupCore: models.SetupCore{
			Symbol:     snap.Symbol,
			Direction:  dir,
			DetectedAt: snap.BarTime,
			ExpiryBar:  barIndex + d.cfg.TPR.ExpiryBars,
		},
		DefiningPivot: defining,
		PullbackHigh:  pbHigh,
		PullbackLow:   pbLow,
	}

	atr := snap.ATR
	switch dir {
	case models.Buy:
		setup.TriggerLevel = pbHigh
		setup.Invalidation = defining.Price - d.cfg.TPR.InvalidationATR*atr
		setup.StopLoss = pbLow - d.cfg.TPR.SLBufferATR*atr
		setup.NoChase = pbHigh + d.cfg.TPR.NoChaseATR*atr
	case models.Sell:
		setup.TriggerLevel = pbLow
		setup.Invalidation = defining.Price + d.cfg.TPR.InvalidationATR*atr
		setup.StopLoss = pbHigh + d.cfg.TPR.SLBufferATR*atr
		setup.NoChase = pbLow - d.cfg.TPR.NoChaseATR*atr
	}

	if !stopDistanceOK(setup.TriggerLevel, setup.StopLoss, atr, d.cfg.TPR.MinStopATR) {
		return nil
	}

	r := math.Abs(setup.TriggerLevel - setup.StopLoss)
	tp1 := nearestLevelBeyond(snap.MajorLevels, setup.TriggerLevel, dir)
	if dir == models.Buy {
		if tp1 == 0 {
			tp1 = setup.TriggerLevel + d.cfg.TPR.TP1RFallback*r
		}
		setup.TakeProfit1 = tp1
		setup.TakeProfit2 = setup.TriggerLevel + d.cfg.TPR.TP2RMultiple*r
	} else {
		if tp1 == 0 {
			tp1 = setup.TriggerLevel - d.cfg.TPR.TP1RFallback*r
		}
		setup.TakeProfit1 = tp1
		setup.TakeProfit2 = setup.TriggerLevel - d.cfg.TPR.TP2RMultiple*r
	}

	setup.Scores = d.scores(snap, setup)
	setup.Confidence = d.weights.blend(setup.Scores)
	if setup.Confidence < d.cfg.TPR.MinScore {
		return nil
	}
	return setup
}

func (d *TPR) scores(snap *models.Snapshot, s *models.TPRSetup) models.ScoreBreakdown {
	bar := snap.LastBar()
	b := models.ScoreBreakdown{}

	// structure: pivot staircase margin in ATR units
	highs := snap.LastPivots(models.PivotHigh, 2)
	lows := snap.LastPivots(models.PivotLow, 2)
	margin := 0.0
	if len(highs) == 2 && len(lows) == 2 {
		margin = (math.Abs(highs[1].Price-highs[0].Price) + math.Abs(lows[1].Price-lows[0].Price)) / (2 * snap.ATR)
	}
	b["structure"] = clamp01(margin)

	// alignment: EMAs stacked with the trade direction
	aligned := 0.0
	if (s.Direction == models.Buy && snap.EMA20 > snap.EMA50 && snap.EMA20Slope > 0) ||
		(s.Direction == models.Sell && snap.EMA20 < snap.EMA50 && snap.EMA20Slope < 0) {
		aligned = 1.0
	} else if (s.Direction == models.Buy && snap.EMA20 > snap.EMA50) ||
		(s.Direction == models.Sell && snap.EMA20 < snap.EMA50) {
		aligned = 0.6
	}
	b["alignment"] = aligned

	// depth: how far into the pullback the close sits; mid-band is ideal
	span := s.PullbackHigh - s.PullbackLow
	depth := 0.5
	if span > 0 {
		pos := (bar.Close - s.PullbackLow) / span
		if s.Direction == models.Sell {
			pos = 1 - pos
		}
		depth = clamp01(1 - math.Abs(pos-0.4)*1.5)
	}
	b["depth"] = depth

	b["spread"] = spreadScore(snap.SpreadATR, d.cfg.MaxSpreadATR(snap.Symbol))
	b["momentum"] = clamp01(bodyATR(bar, snap.ATR))
	return b
}

// trendStructure reads the trade direction off monotone pivot pairs and
// returns the defining pivot (the one whose loss breaks the structure).
func trendStructure(snap *models.Snapshot) (models.Direction, models.PivotPoint) {
	highs := snap.LastPivots(models.PivotHigh, 2)
	lows := snap.LastPivots(models.PivotLow, 2)
	if len(highs) < 2 || len(lows) < 2 {
		return "", models.PivotPoint{}
	}
	if highs[1].Price > highs[0].Price && lows[1].Price > lows[0].Price {
		return models.Buy, lows[1]
	}
	if highs[1].Price < highs[0].Price && lows[1].Price < lows[0].Price {
		return models.Sell, highs[1]
	}
	return "", models.PivotPoint{}
}

// legExtreme finds the index of the leg peak (buy) or trough (sell)
// since the defining pivot.
func legExtreme(bars []models.Bar, from int, dir models.Direction) int {
	if from < 0 || from >= len(bars) {
		return -1
	}
	best := from
	for i := from; i < len(bars); i++ {
		if dir == models.Buy && bars[i].High > bars[best].High {
			best = i
		}
		if dir == models.Sell && bars[i].Low < bars[best].Low {
			best = i
		}
	}
	return best
}

func windowExtremes(bars []models.Bar) (hi, lo float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	hi, lo = bars[0].High, bars[0].Low
	for _, b := range bars[1:] {
		hi = math.Max(hi, b.High)
		lo = math.Min(lo, b.Low)
	}
	return hi, lo
}

// inPullbackZone requires the close inside the EMA20/EMA50 band or
// within pullbackATR ATRs of the defining pivot.
func inPullbackZone(dir models.Direction, snap *models.Snapshot, defining models.PivotPoint, pullbackATR float64) bool {
	c := snap.Close()
	lo, hi := snap.EMA20, snap.EMA50
	if lo > hi {
		lo, hi = hi, lo
	}
	if c >= lo && c <= hi {
		return true
	}
	return math.Abs(c-defining.Price) <= pullbackATR*snap.ATR
}

// structureBroken reports a close beyond the invalidation level.
func structureBroken(s *models.TPRSetup, close float64) bool {
	if s.Direction == models.Buy {
		return close < s.Invalidation
	}
	return close > s.Invalidation
}

func closeBeyondBuffer(dir models.Direction, close, pivot, buffer float64) bool {
	if dir == models.Buy {
		return close < pivot-buffer
	}
	return close > pivot+buffer
}

var _ service.Detector = (*TPR)(nil)
