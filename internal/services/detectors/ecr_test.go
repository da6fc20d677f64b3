package detectors

import (
	"math"
	"testing"
	"time"

	"Sniper/internal/domain/models"
)

// ecrCloses builds the reversion shape: a long flat base, a 20-bar ramp
// to 110, a 20-bar bleed back to 104, then 105/103 block oscillation.
// The bleed drags EMA13 below EMA50 (the slow cross) and the blocks
// whipsaw EMA5 across EMA13 while the 200 EMA lags far below price.
func ecrCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		switch {
		case i < 200:
			closes[i] = 100
		case i < 220:
			closes[i] = 100 + 0.5*float64(i-199)
		case i < 240:
			closes[i] = 110 - 0.3*float64(i-219)
		default:
			if (i-240)%6 < 3 {
				closes[i] = 105
			} else {
				closes[i] = 103
			}
		}
	}
	return closes
}

func ecrBarsFrom(closes []float64) []models.Bar {
	base := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = models.Bar{
			Time:  base.Add(time.Duration(i) * 15 * time.Minute),
			Open:  open,
			High:  math.Max(open, c) + 0.8,
			Low:   math.Min(open, c) - 0.8,
			Close: c,
		}
	}
	return bars
}

// ecrBars ends on a bar that closes flat inside an upper block: a setup
// can form but no reversal candle has printed yet.
func ecrBars() []models.Bar {
	return ecrBarsFrom(ecrCloses(260))
}

// ecrFireBars appends a plunge bar closing below both fast EMAs while
// still above the long EMA.
func ecrFireBars() []models.Bar {
	closes := append(ecrCloses(260), 103.3)
	return ecrBarsFrom(closes)
}

func ecrSnapshot(bars []models.Bar) *models.Snapshot {
	last := bars[len(bars)-1]
	return &models.Snapshot{
		Symbol:  "NAS100",
		BarTime: last.Time,
		Bars:    bars,
		ATR:     1.0,
		EMA20:   104.2, EMA50: 104.5,
		EMA20Slope: -0.03, EMA50Slope: -0.02,
		TrendState:  models.TrendStateTransition,
		Compression: 45,
		Spread:      0.03,
		SpreadATR:   0.03,
	}
}

func TestECRFiresOnCreationBar(t *testing.T) {
	d := NewECR(testConfig())
	st := &models.SymbolState{Symbol: "NAS100"}

	setup, trig := d.Detect(ecrSnapshot(ecrFireBars()), st, 300)
	if setup != nil {
		t.Fatalf("same-bar fire must not leave a setup: %+v", setup)
	}
	if trig == nil {
		t.Fatal("expected reversal trigger on the creation bar")
	}
	if trig.Direction != models.Sell {
		t.Errorf("direction = %s, want sell (bearish slow cross, price above the long EMA)", trig.Direction)
	}
	if trig.SetupType != models.SetupECR {
		t.Errorf("setup type = %s", trig.SetupType)
	}
	if math.Abs(trig.Price-103.3) > 1e-9 {
		t.Errorf("trigger price = %v, want the plunge close", trig.Price)
	}
	fired, ok := trig.Fired.(*models.ECRSetup)
	if !ok {
		t.Fatalf("fired setup has type %T", trig.Fired)
	}
	if math.Abs(fired.TakeProfit1-fired.TargetEMA) > 1e-9 {
		t.Errorf("tp1 = %v, want the target EMA %v at trigger time", fired.TakeProfit1, fired.TargetEMA)
	}
}

func TestECRCreatesWithoutReversalBar(t *testing.T) {
	d := NewECR(testConfig())
	st := &models.SymbolState{Symbol: "NAS100"}

	setup, trig := d.Detect(ecrSnapshot(ecrBars()), st, 300)
	if trig != nil {
		t.Fatalf("a flat block bar must not fire a sell reversion: %+v", trig)
	}
	ecr, ok := setup.(*models.ECRSetup)
	if !ok {
		t.Fatalf("expected *ECRSetup, got %T", setup)
	}
	if ecr.Direction != models.Sell {
		t.Errorf("direction = %s, want sell", ecr.Direction)
	}
	if ecr.FastCycleCount < 3 {
		t.Errorf("fast cycles = %d, want >= 3", ecr.FastCycleCount)
	}
	if ecr.TargetEMA < 101 || ecr.TargetEMA > 104 {
		t.Errorf("target EMA = %v, expected the lagging long EMA", ecr.TargetEMA)
	}
	entry := ecr.TriggerLevel
	if !(ecr.StopLoss > entry && entry > ecr.TakeProfit2 && ecr.TakeProfit2 >= ecr.TakeProfit1) {
		t.Errorf("levels out of order: sl=%v entry=%v tp2=%v tp1=%v",
			ecr.StopLoss, entry, ecr.TakeProfit2, ecr.TakeProfit1)
	}
	if math.Abs(ecr.TakeProfit1-ecr.TargetEMA) > 1e-9 {
		t.Errorf("tp1 = %v, want the target EMA %v", ecr.TakeProfit1, ecr.TargetEMA)
	}
}

func TestECRGates(t *testing.T) {
	st := &models.SymbolState{Symbol: "NAS100"}
	bars := ecrBars()

	t.Run("window too short for long EMA", func(t *testing.T) {
		d := NewECR(testConfig())
		short := ecrSnapshot(bars[:120])
		if setup, trig := d.Detect(short, st, 300); setup != nil || trig != nil {
			t.Fatal("no long EMA, no setup")
		}
	})

	t.Run("too few fast cycles", func(t *testing.T) {
		cfg := testConfig()
		cfg.ECR.MinFastCrosses = 20
		d := NewECR(cfg)
		if setup, trig := d.Detect(ecrSnapshot(bars), st, 300); setup != nil || trig != nil {
			t.Fatal("cycle floor not met, no setup")
		}
	})

	t.Run("slow EMA still steep", func(t *testing.T) {
		d := NewECR(testConfig())
		snap := ecrSnapshot(bars)
		snap.EMA50Slope = 0.5
		if setup, trig := d.Detect(snap, st, 300); setup != nil || trig != nil {
			t.Fatal("steep slow EMA means trend, not reversion")
		}
	})

	t.Run("too far from target", func(t *testing.T) {
		cfg := testConfig()
		cfg.ECR.MaxTargetDistATR = 0.5
		d := NewECR(cfg)
		if setup, trig := d.Detect(ecrSnapshot(bars), st, 300); setup != nil || trig != nil {
			t.Fatal("price beyond the reach cap, reversion reward is gone")
		}
	})
}

func TestECRManageInvalidationAndExpiry(t *testing.T) {
	d := NewECR(testConfig())
	active := func() *models.ECRSetup {
		return &models.ECRSetup{
			SetupCore: models.SetupCore{
				Symbol:       "NAS100",
				Direction:    models.Sell,
				ExpiryBar:    305,
				TriggerLevel: 104.8,
				Invalidation: 106.2,
				NoChase:      102.4,
				StopLoss:     106.2,
			},
			TargetEMA: 102.4,
		}
	}

	st := &models.SymbolState{Symbol: "NAS100", Active: active()}
	if setup, trig := d.Detect(ecrSnapshot(ecrBars()), st, 306); setup != nil || trig != nil {
		t.Fatal("past expiry the setup must clear")
	}

	st = &models.SymbolState{Symbol: "NAS100", Active: active()}
	hit := active()
	hit.Invalidation = 104.8
	hit.StopLoss = 104.8
	st.Active = hit
	if setup, trig := d.Detect(ecrSnapshot(ecrBars()), st, 302); setup != nil || trig != nil {
		t.Fatal("close beyond invalidation must clear silently")
	}

	st = &models.SymbolState{Symbol: "NAS100", Active: active()}
	setup, trig := d.Detect(ecrSnapshot(ecrFireBars()), st, 302)
	if trig == nil || setup != nil {
		t.Fatal("bearish close through the fast EMAs must fire the managed setup")
	}
	fired := trig.Fired.(*models.ECRSetup)
	if math.Abs(fired.TakeProfit1-fired.TargetEMA) > 1e-9 {
		t.Errorf("managed fire must retarget tp1 to the live long EMA, got %v vs %v",
			fired.TakeProfit1, fired.TargetEMA)
	}
	if fired.FastCycleCount < 3 {
		t.Errorf("managed fire must recount fast cycles against the live window, got %d", fired.FastCycleCount)
	}
}
