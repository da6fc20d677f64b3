package detectors

import (
	"math"

	"Sniper/internal/domain/models"
	"Sniper/internal/domain/service"
	"Sniper/internal/services/features"
	"Sniper/pkg/config"
)

const (
	ecrFastPeriod   = 5
	ecrCyclePeriod  = 13
	ecrSlowPeriod   = 50
	ecrTargetPeriod = 200
)

// ECR detects EMA cycle reversions: a recent EMA13/EMA50 cross defines
// the counter-trend direction, repeated EMA5/EMA13 whipsaws since it
// confirm the market is cycling rather than running, and price sits on
// the correct side of the long EMA within a bounded distance. The trade
// is the reversion toward that EMA. Unlike the other detectors its
// trigger can fire on the creation bar.
type ECR struct {
	cfg     *config.Config
	weights scoreWeights
}

// NewECR creates the EMA-cycle-reversion detector.
func NewECR(cfg *config.Config) *ECR {
	return &ECR{
		cfg: cfg,
		weights: scoreWeights{
			structure: 0.25,
			alignment: 0.20,
			depth:     0.25,
			spread:    0.10,
			momentum:  0.20,
		},
	}
}

func (d *ECR) Type() models.SetupType { return models.SetupECR }

func (d *ECR) Detect(snap *models.Snapshot, st *models.SymbolState, barIndex int) (models.Setup, *models.TriggerEvent) {
	if cur, ok := st.Active.(*models.ECRSetup); ok {
		return d.manage(cur, snap, barIndex)
	}
	if st.Active != nil {
		return st.Active, nil
	}
	setup := d.create(snap, barIndex)
	if setup == nil {
		return nil, nil
	}
	// same-bar fire is allowed for ECR
	if trig := d.trigger(setup, snap); trig != nil {
		return nil, trig
	}
	return setup, nil
}

func (d *ECR) manage(cur *models.ECRSetup, snap *models.Snapshot, barIndex int) (models.Setup, *models.TriggerEvent) {
	bar := snap.LastBar()
	if barIndex > cur.ExpiryBar {
		return nil, nil
	}
	// a close stretching further past the invalidation level kills it
	if (cur.Direction == models.Buy && bar.Close < cur.Invalidation) ||
		(cur.Direction == models.Sell && bar.Close > cur.Invalidation) {
		return nil, nil
	}
	d.recount(cur, snap)
	if trig := d.trigger(cur, snap); trig != nil {
		return nil, trig
	}
	return cur, nil
}

// recount refreshes the fast-cycle evidence against the current window;
// the stored bar indexes drift as the window slides.
func (d *ECR) recount(cur *models.ECRSetup, snap *models.Snapshot) {
	bars := snap.Bars
	ema5 := features.EMASeries(bars, ecrFastPeriod)
	ema13 := features.EMASeries(bars, ecrCyclePeriod)
	ema50 := features.EMASeries(bars, ecrSlowPeriod)
	from := len(bars) - d.cfg.ECR.SlowCrossLookback
	slowCrosses := features.CrossIndexes(ema13, ema50, from)
	if len(slowCrosses) == 0 {
		return
	}
	cur.SlowCrossBar = slowCrosses[len(slowCrosses)-1]
	cur.FastCycleCount = len(features.CrossIndexes(ema5, ema13, cur.SlowCrossBar))
}

// trigger fires on an entry candle with real body closing beyond both
// fast EMAs in the reversion direction, with the latest fast-cycle cross
// pointing the same way and price not yet at the target.
func (d *ECR) trigger(cur *models.ECRSetup, snap *models.Snapshot) *models.TriggerEvent {
	bar := snap.LastBar()
	body := bodyATR(bar, snap.ATR)
	if body < d.cfg.ECR.BodyATRFraction {
		return nil
	}

	bars := snap.Bars
	ema5 := features.EMASeries(bars, ecrFastPeriod)
	ema13 := features.EMASeries(bars, ecrCyclePeriod)
	e5, e13 := features.Last(ema5), features.Last(ema13)
	if e5 <= 0 || e13 <= 0 {
		return nil
	}

	// targets follow the long EMA as it drifts bar to bar
	if target := features.Last(features.EMASeries(bars, ecrTargetPeriod)); target > 0 {
		d.retarget(cur, target)
	}

	from := len(bars) - d.cfg.ECR.SlowCrossLookback
	lastFast := features.LastCrossDirection(ema5, ema13, features.CrossIndexes(ema5, ema13, from))

	fired := false
	switch cur.Direction {
	case models.Buy:
		fired = bar.Bullish() && bar.Close > e5 && bar.Close > e13 &&
			lastFast == 1 && bar.Close < cur.TargetEMA
	case models.Sell:
		fired = bar.Bearish() && bar.Close < e5 && bar.Close < e13 &&
			lastFast == -1 && bar.Close > cur.TargetEMA
	}
	if !fired {
		return nil
	}
	return &models.TriggerEvent{
		SetupType: models.SetupECR,
		Symbol:    cur.Symbol,
		Direction: cur.Direction,
		Time:      snap.BarTime,
		Price:     bar.Close,
		Momentum:  clamp01(body),
		Reasons:   []string{"ecr_reversal_close"},
		Fired:     cur,
	}
}

// retarget refreshes the target-dependent levels: TP1 is always the
// current long-EMA value, TP2 the R multiple capped at it.
func (d *ECR) retarget(cur *models.ECRSetup, target float64) {
	cur.TargetEMA = target
	cur.NoChase = target
	cur.TakeProfit1 = target
	r := math.Abs(cur.TriggerLevel - cur.StopLoss)
	if cur.Direction == models.Buy {
		cur.TakeProfit2 = math.Min(cur.TriggerLevel+d.cfg.ECR.TP2RMultiple*r, target)
	} else {
		cur.TakeProfit2 = math.Max(cur.TriggerLevel-d.cfg.ECR.TP2RMultiple*r, target)
	}
}

func (d *ECR) create(snap *models.Snapshot, barIndex int) *models.ECRSetup {
	bars := snap.Bars
	target := features.Last(features.EMASeries(bars, ecrTargetPeriod))
	if target <= 0 {
		return nil // window too short for the long EMA
	}
	c := snap.Close()
	atr := snap.ATR

	// trend-strength veto: a running EMA50 means trend, not cycle
	if math.Abs(snap.EMA50Slope)/atr > d.cfg.ECR.MaxEMA50SlopeATR {
		return nil
	}

	ema5 := features.EMASeries(bars, ecrFastPeriod)
	ema13 := features.EMASeries(bars, ecrCyclePeriod)
	ema50 := features.EMASeries(bars, ecrSlowPeriod)

	from := len(bars) - d.cfg.ECR.SlowCrossLookback
	slowCrosses := features.CrossIndexes(ema13, ema50, from)
	if len(slowCrosses) == 0 {
		return nil
	}
	slowCrossBar := slowCrosses[len(slowCrosses)-1]

	// the slow cross defines the counter-trend direction
	var dir models.Direction
	switch features.LastCrossDirection(ema13, ema50, slowCrosses) {
	case 1:
		dir = models.Buy
	case -1:
		dir = models.Sell
	default:
		return nil
	}

	// price must sit on the reversion side of the target, within reach
	if (dir == models.Sell && c <= target) || (dir == models.Buy && c >= target) {
		return nil
	}
	stretch := math.Abs(c-target) / atr
	if stretch > d.cfg.ECR.MaxTargetDistATR {
		return nil
	}

	fastCycles := len(features.CrossIndexes(ema5, ema13, slowCrossBar))
	if fastCycles < d.cfg.ECR.MinFastCrosses {
		return nil
	}

	swingHigh, swingLow := recentSwing(bars, d.cfg.ECR.SwingLookback)
	setup := &models.ECRSetup{
		SetupCore: models.SetupCore{
			Symbol:     snap.Symbol,
			Direction:  dir,
			DetectedAt: snap.BarTime,
			ExpiryBar:  barIndex + d.cfg.ECR.ExpiryBars,
		},
		SlowCrossBar:   slowCrossBar,
		FastCycleCount: fastCycles,
		TargetEMA:      target,
	}

	setup.TriggerLevel = c
	if dir == models.Buy {
		setup.StopLoss = swingLow - d.cfg.ECR.SLBufferATR*atr
	} else {
		setup.StopLoss = swingHigh + d.cfg.ECR.SLBufferATR*atr
	}
	setup.Invalidation = setup.StopLoss
	if !stopDistanceOK(setup.TriggerLevel, setup.StopLoss, atr, d.cfg.ECR.MinStopATR) {
		return nil
	}
	d.retarget(setup, target)

	setup.Scores = d.scores(snap, setup, stretch)
	setup.Confidence = d.weights.blend(setup.Scores)
	if setup.Confidence < d.cfg.ECR.MinScore {
		return nil
	}
	return setup
}

func (d *ECR) scores(snap *models.Snapshot, s *models.ECRSetup, stretch float64) models.ScoreBreakdown {
	b := models.ScoreBreakdown{}

	// structure: more fast cycles, more exhausted the move
	b["structure"] = clamp01(float64(s.FastCycleCount) / float64(d.cfg.ECR.MinFastCrosses*2))

	// alignment: the flatter the slow EMA the better
	slopeATR := math.Abs(snap.EMA50Slope) / snap.ATR
	if d.cfg.ECR.MaxEMA50SlopeATR > 0 {
		b["alignment"] = clamp01(1 - slopeATR/d.cfg.ECR.MaxEMA50SlopeATR)
	}

	// depth: room between price and target, as a share of the cap
	if d.cfg.ECR.MaxTargetDistATR > 0 {
		b["depth"] = clamp01(stretch / d.cfg.ECR.MaxTargetDistATR)
	}

	b["spread"] = spreadScore(snap.SpreadATR, d.cfg.MaxSpreadATR(snap.Symbol))
	b["momentum"] = clamp01(bodyATR(snap.LastBar(), snap.ATR))
	return b
}

// recentSwing returns the extreme high/low over the trailing lookback.
func recentSwing(bars []models.Bar, lookback int) (hi, lo float64) {
	if lookback <= 0 || lookback > len(bars) {
		lookback = len(bars)
	}
	window := bars[len(bars)-lookback:]
	return windowExtremes(window)
}

var _ service.Detector = (*ECR)(nil)
