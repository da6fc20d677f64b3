package detectors

import (
	"math"
	"testing"
	"time"

	"Sniper/internal/domain/models"
	"Sniper/pkg/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Classifier.MaxSpreadATR = 0.15
	cfg.Classifier.RangeMinWidthATR = 1.2
	cfg.Classifier.RangeMaxWidthATR = 6.0

	cfg.TPR.PullbackATR = 1.0
	cfg.TPR.InvalidationATR = 0.5
	cfg.TPR.SLBufferATR = 0.35
	cfg.TPR.MinStopATR = 0.8
	cfg.TPR.BodyATRFraction = 0.25
	cfg.TPR.NoChaseATR = 1.2
	cfg.TPR.MinScore = 0.40
	cfg.TPR.RejectionEntries = true
	cfg.TPR.ExpiryBars = 12
	cfg.TPR.TP1RFallback = 1.5
	cfg.TPR.TP2RMultiple = 2.5

	cfg.RBH.NearBoundaryATR = 0.75
	cfg.RBH.BreakBufferATR = 0.25
	cfg.RBH.BodyATRFraction = 0.30
	cfg.RBH.OuterCloseFraction = 0.70
	cfg.RBH.RetestWindowBars = 8
	cfg.RBH.EntryBufferATR = 0.10
	cfg.RBH.SLBufferATR = 0.35
	cfg.RBH.MinStopATR = 0.8
	cfg.RBH.TP1WidthFraction = 0.8
	cfg.RBH.TP2WidthFraction = 1.5
	cfg.RBH.MinScore = 0.35
	cfg.RBH.ExpiryBars = 10

	cfg.ECR.SlowCrossLookback = 40
	cfg.ECR.MinFastCrosses = 3
	cfg.ECR.MaxTargetDistATR = 12.0
	cfg.ECR.MaxEMA50SlopeATR = 0.08
	cfg.ECR.BodyATRFraction = 0.30
	cfg.ECR.SwingLookback = 5
	cfg.ECR.SLBufferATR = 0.35
	cfg.ECR.MinStopATR = 0.8
	cfg.ECR.TP2RMultiple = 2.0
	cfg.ECR.MinScore = 0.35
	cfg.ECR.ExpiryBars = 8
	return cfg
}

func barAt(t time.Time, o, h, l, c float64) models.Bar {
	return models.Bar{Time: t, Open: o, High: h, Low: l, Close: c}
}

// uptrendPullbackSnapshot builds a rising pivot staircase with the last
// bars pulling back into the EMA band.
func uptrendPullbackSnapshot(lastBar models.Bar) *models.Snapshot {
	base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		barAt(base, 100, 101, 99.5, 100.5),
		barAt(base.Add(15*time.Minute), 100.5, 101, 99.8, 100.2), // pivot low 99.8 @1
		barAt(base.Add(30*time.Minute), 100.2, 102, 100, 101.8),
		barAt(base.Add(45*time.Minute), 101.8, 103.5, 101.5, 103.2), // pivot high 103.5 @3
		barAt(base.Add(60*time.Minute), 103.2, 103.3, 101.8, 102),
		barAt(base.Add(75*time.Minute), 102, 102.5, 101.4, 102.2), // pivot low 101.4 @5
		barAt(base.Add(90*time.Minute), 102.2, 104, 102, 103.8),
		barAt(base.Add(105*time.Minute), 103.8, 105.5, 103.5, 105.2), // pivot high 105.5 @7 (leg peak)
		barAt(base.Add(120*time.Minute), 105.2, 105.3, 104, 104.2),
		lastBar,
	}
	return &models.Snapshot{
		Symbol:  "EURUSD",
		BarTime: bars[len(bars)-1].Time,
		Bars:    bars,
		ATR:     1.0,
		EMA20:   103.6, EMA50: 102.8,
		EMA20Slope: 0.15, EMA50Slope: 0.08,
		Pivots: []models.PivotPoint{
			{Kind: models.PivotLow, BarIndex: 1, Price: 99.8},
			{Kind: models.PivotHigh, BarIndex: 3, Price: 103.5},
			{Kind: models.PivotLow, BarIndex: 5, Price: 101.4},
			{Kind: models.PivotHigh, BarIndex: 7, Price: 105.5},
		},
		TrendState:  models.TrendStateTrend,
		Compression: 55,
		Spread:      0.03,
		SpreadATR:   0.03,
		MajorLevels: []float64{99.8, 103.5, 107.5},
	}
}

func TestTPRCreatesSetupOnPullback(t *testing.T) {
	d := NewTPR(testConfig())
	snap := uptrendPullbackSnapshot(
		barAt(time.Date(2025, 3, 3, 11, 15, 0, 0, time.UTC), 104.2, 104.4, 103.2, 103.4))
	st := &models.SymbolState{Symbol: "EURUSD"}

	setup, trig := d.Detect(snap, st, 100)
	if trig != nil {
		t.Fatalf("unexpected trigger on creation bar: %+v", trig)
	}
	tpr, ok := setup.(*models.TPRSetup)
	if !ok {
		t.Fatalf("expected *TPRSetup, got %T", setup)
	}
	if tpr.Direction != models.Buy {
		t.Errorf("direction = %s, want buy", tpr.Direction)
	}
	if tpr.DefiningPivot.Price != 101.4 {
		t.Errorf("defining pivot = %v, want 101.4", tpr.DefiningPivot.Price)
	}
	// trigger is the pullback high after the leg peak at bar 7
	if tpr.TriggerLevel != 105.3 {
		t.Errorf("trigger level = %v, want 105.3", tpr.TriggerLevel)
	}
	if tpr.StopLoss >= tpr.PullbackLow {
		t.Errorf("stop %v not below pullback low %v", tpr.StopLoss, tpr.PullbackLow)
	}
	if tpr.ExpiryBar != 112 {
		t.Errorf("expiry bar = %d, want 112", tpr.ExpiryBar)
	}
	if tpr.Confidence < d.cfg.TPR.MinScore {
		t.Errorf("confidence %v below floor", tpr.Confidence)
	}
}

func TestTPRReclaimCloseFiresTrigger(t *testing.T) {
	d := NewTPR(testConfig())
	st := &models.SymbolState{Symbol: "EURUSD"}
	st.Active = &models.TPRSetup{
		SetupCore: models.SetupCore{
			Symbol:       "EURUSD",
			Direction:    models.Buy,
			ExpiryBar:    110,
			TriggerLevel: 105.3,
			Invalidation: 100.9,
			NoChase:      106.5,
			StopLoss:     102.8,
		},
		PullbackHigh: 105.3,
		PullbackLow:  103.2,
	}

	snap := uptrendPullbackSnapshot(
		barAt(time.Date(2025, 3, 3, 11, 15, 0, 0, time.UTC), 104.5, 105.8, 104.3, 105.6))
	setup, trig := d.Detect(snap, st, 101)
	if setup != nil {
		t.Fatalf("setup should clear on fire, got %+v", setup)
	}
	if trig == nil {
		t.Fatal("expected reclaim trigger")
	}
	if trig.SetupType != models.SetupTPR || trig.Direction != models.Buy {
		t.Errorf("trigger = %+v", trig)
	}
	if trig.Price != 105.6 {
		t.Errorf("trigger price = %v, want close 105.6", trig.Price)
	}
}

func TestTPRNoChaseSuppressesTrigger(t *testing.T) {
	d := NewTPR(testConfig())
	st := &models.SymbolState{Symbol: "EURUSD"}
	st.Active = &models.TPRSetup{
		SetupCore: models.SetupCore{
			Symbol:       "EURUSD",
			Direction:    models.Buy,
			ExpiryBar:    110,
			TriggerLevel: 105.3,
			Invalidation: 100.9,
			NoChase:      106.5,
			StopLoss:     102.8,
		},
		PullbackHigh: 105.3,
		PullbackLow:  103.2,
	}

	// huge bar closing way past the no-chase line
	snap := uptrendPullbackSnapshot(
		barAt(time.Date(2025, 3, 3, 11, 15, 0, 0, time.UTC), 104.5, 107.5, 104.3, 107.2))
	setup, trig := d.Detect(snap, st, 101)
	if trig != nil {
		t.Fatalf("trigger should be voided past no-chase, got %+v", trig)
	}
	if setup == nil {
		t.Fatal("setup should survive a voided trigger")
	}
}

func TestTPRInvalidationClearsSetup(t *testing.T) {
	d := NewTPR(testConfig())
	st := &models.SymbolState{Symbol: "EURUSD"}
	st.Active = &models.TPRSetup{
		SetupCore: models.SetupCore{
			Symbol:       "EURUSD",
			Direction:    models.Buy,
			ExpiryBar:    110,
			TriggerLevel: 105.3,
			Invalidation: 100.9,
			NoChase:      106.5,
			StopLoss:     102.8,
		},
		PullbackHigh: 105.3,
		PullbackLow:  103.2,
	}

	snap := uptrendPullbackSnapshot(
		barAt(time.Date(2025, 3, 3, 11, 15, 0, 0, time.UTC), 103, 103.2, 100.2, 100.5))
	setup, trig := d.Detect(snap, st, 101)
	if setup != nil || trig != nil {
		t.Fatalf("close below invalidation must clear silently, got setup=%v trig=%v", setup, trig)
	}
}

func TestTPRExpiryClearsSetup(t *testing.T) {
	d := NewTPR(testConfig())
	st := &models.SymbolState{Symbol: "EURUSD"}
	st.Active = &models.TPRSetup{
		SetupCore: models.SetupCore{Symbol: "EURUSD", Direction: models.Buy, ExpiryBar: 100},
	}
	snap := uptrendPullbackSnapshot(
		barAt(time.Date(2025, 3, 3, 11, 15, 0, 0, time.UTC), 104.2, 104.4, 103.2, 103.4))
	setup, trig := d.Detect(snap, st, 101)
	if setup != nil || trig != nil {
		t.Fatal("past expiry bar the setup must go away")
	}
}

func TestTPRPullbackLowAndStopTrail(t *testing.T) {
	d := NewTPR(testConfig())
	st := &models.SymbolState{Symbol: "EURUSD"}
	st.Active = &models.TPRSetup{
		SetupCore: models.SetupCore{
			Symbol:       "EURUSD",
			Direction:    models.Buy,
			ExpiryBar:    110,
			TriggerLevel: 105.3,
			Invalidation: 100.9,
			NoChase:      106.5,
			StopLoss:     102.85,
		},
		PullbackHigh: 105.3,
		PullbackLow:  103.2,
	}

	snap := uptrendPullbackSnapshot(
		barAt(time.Date(2025, 3, 3, 11, 15, 0, 0, time.UTC), 103.4, 103.6, 102.6, 103.1))
	setup, _ := d.Detect(snap, st, 101)
	tpr, ok := setup.(*models.TPRSetup)
	if !ok {
		t.Fatalf("setup lost: %v", setup)
	}
	if tpr.PullbackLow != 102.6 {
		t.Errorf("pullback low = %v, want 102.6", tpr.PullbackLow)
	}
	if want := 102.6 - 0.35; math.Abs(tpr.StopLoss-want) > 1e-9 {
		t.Errorf("stop = %v, want %v", tpr.StopLoss, want)
	}
	if tpr.TriggerLevel != 105.3 {
		t.Errorf("trigger level moved to %v, must stay fixed", tpr.TriggerLevel)
	}
}

func TestTPRRejectionWickFiresMarketTrigger(t *testing.T) {
	cfg := testConfig()
	d := NewTPR(cfg)
	st := &models.SymbolState{Symbol: "EURUSD"}
	st.Active = &models.TPRSetup{
		SetupCore: models.SetupCore{
			Symbol:       "EURUSD",
			Direction:    models.Buy,
			ExpiryBar:    110,
			TriggerLevel: 105.3,
			Invalidation: 100.9,
			NoChase:      106.5,
			StopLoss:     102.8,
		},
		PullbackHigh: 105.3,
		PullbackLow:  103.2,
	}

	// probes below EMA20 (103.6), closes back above with a long lower wick
	snap := uptrendPullbackSnapshot(
		barAt(time.Date(2025, 3, 3, 11, 15, 0, 0, time.UTC), 103.8, 104, 102.9, 103.9))
	_, trig := d.Detect(snap, st, 101)
	if trig == nil {
		t.Fatal("expected rejection-wick trigger")
	}
	if len(trig.Reasons) == 0 || trig.Reasons[0] != "tpr_rejection_wick" {
		t.Errorf("reasons = %v", trig.Reasons)
	}

	cfg.TPR.RejectionEntries = false
	st.Active = &models.TPRSetup{
		SetupCore: models.SetupCore{
			Symbol: "EURUSD", Direction: models.Buy, ExpiryBar: 110,
			TriggerLevel: 105.3, Invalidation: 100.9, NoChase: 106.5, StopLoss: 102.8,
		},
		PullbackHigh: 105.3,
		PullbackLow:  103.2,
	}
	if _, trig := d.Detect(snap, st, 101); trig != nil {
		t.Fatal("rejection entries disabled, trigger must not fire")
	}
}
