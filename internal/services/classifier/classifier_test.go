package classifier

import (
	"fmt"
	"testing"
	"time"

	"Sniper/internal/domain/models"
	"Sniper/pkg/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.ShortlistSize = 3
	cfg.Classifier.RegimeFloor = 0.55
	cfg.Classifier.CompressionCeiling = 70
	cfg.Classifier.MaxSpreadATR = 0.15
	cfg.Classifier.RangeMinWidthATR = 1.2
	cfg.Classifier.RangeMaxWidthATR = 6.0
	cfg.Gating.IdleBars = 4
	cfg.Gating.Step = 0.05
	cfg.Gating.Max = 0.15
	cfg.Gating.FloorMin = 0.40
	cfg.Gating.CeilingMax = 90
	cfg.Gating.CeilingScale = 100
	return cfg
}

func trendSnapshot(symbol string) *models.Snapshot {
	return &models.Snapshot{
		Symbol:  symbol,
		BarTime: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Bars:    []models.Bar{{Close: 110}},
		ATR:     1.0,
		EMA20:   109, EMA50: 107.5,
		EMA20Slope: 0.12, EMA50Slope: 0.08,
		Pivots: []models.PivotPoint{
			{Kind: models.PivotLow, BarIndex: 10, Price: 100},
			{Kind: models.PivotHigh, BarIndex: 14, Price: 104},
			{Kind: models.PivotLow, BarIndex: 18, Price: 102},
			{Kind: models.PivotHigh, BarIndex: 22, Price: 107},
		},
		TrendState:  models.TrendStateTrend,
		Compression: 55,
		Spread:      0.03,
		SpreadATR:   0.03,
	}
}

func rangeSnapshot(symbol string) *models.Snapshot {
	return &models.Snapshot{
		Symbol:  symbol,
		BarTime: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Bars:    []models.Bar{{Close: 102}},
		ATR:     1.0,
		EMA20:   102, EMA50: 102.1,
		Pivots: []models.PivotPoint{
			{Kind: models.PivotHigh, BarIndex: 5, Price: 104},
			{Kind: models.PivotLow, BarIndex: 9, Price: 100},
			{Kind: models.PivotHigh, BarIndex: 13, Price: 104.1},
			{Kind: models.PivotLow, BarIndex: 17, Price: 99.9},
		},
		TrendState: models.TrendStateRange,
		Range: &models.RangeInfo{
			High: 104, Low: 100, Width: 4, TouchHigh: 3, TouchLow: 3,
		},
		Compression: 30,
		Spread:      0.02,
		SpreadATR:   0.02,
	}
}

func TestClassifySpreadGateRejectsOutright(t *testing.T) {
	c := New(testConfig(), NewAdaptiveGate(testConfig()))
	snap := trendSnapshot("EURUSD")
	snap.SpreadATR = 0.5
	if got := c.Classify(snap); got != nil {
		t.Fatalf("expected rejection, got %+v", got)
	}
}

func TestClassifyTrendRegime(t *testing.T) {
	c := New(testConfig(), NewAdaptiveGate(testConfig()))
	cand := c.Classify(trendSnapshot("EURUSD"))
	if cand == nil {
		t.Fatal("expected candidate")
	}
	if cand.Regime != models.RegimeTrend {
		t.Fatalf("expected trend regime, got %s (trend=%v range=%v)",
			cand.Regime, cand.TrendConfidence, cand.RangeConfidence)
	}
	if cand.Bias != models.Buy {
		t.Fatalf("expected buy bias, got %q", cand.Bias)
	}
	// 40 base + 25 trend + spread quality + 10 bias
	if cand.QuickScore <= 75 {
		t.Fatalf("unexpected quick score %v", cand.QuickScore)
	}
}

func TestClassifyRangeRegime(t *testing.T) {
	c := New(testConfig(), NewAdaptiveGate(testConfig()))
	cand := c.Classify(rangeSnapshot("XAUUSD"))
	if cand == nil {
		t.Fatal("expected candidate")
	}
	if cand.Regime != models.RegimeRange {
		t.Fatalf("expected range regime, got %s (trend=%v range=%v)",
			cand.Regime, cand.TrendConfidence, cand.RangeConfidence)
	}
}

func TestClassifyTransitionOverride(t *testing.T) {
	c := New(testConfig(), NewAdaptiveGate(testConfig()))
	snap := trendSnapshot("EURUSD")
	snap.TrendState = models.TrendStateTransition
	snap.EMA20, snap.EMA50 = 102, 102.05 // no separation
	snap.EMA20Slope = 0
	snap.Compression = 10
	snap.Range = nil
	cand := c.Classify(snap)
	if cand == nil {
		t.Fatal("expected candidate")
	}
	if cand.Regime != models.RegimeTransition {
		t.Fatalf("weak confidence should force transition, got %s", cand.Regime)
	}
}

func TestShortlistBounded(t *testing.T) {
	cfg := testConfig()
	c := New(cfg, NewAdaptiveGate(cfg))
	var cands []*models.FastCandidate
	for i := 0; i < 10; i++ {
		cands = append(cands, &models.FastCandidate{
			Symbol:     fmt.Sprintf("SYM%d", i),
			QuickScore: float64(50 + i),
		})
	}
	top := c.Shortlist(cands)
	if len(top) != cfg.Pipeline.ShortlistSize {
		t.Fatalf("expected %d entries, got %d", cfg.Pipeline.ShortlistSize, len(top))
	}
	if top[0].Symbol != "SYM9" || top[0].QuickScore < top[1].QuickScore {
		t.Fatalf("shortlist not ranked: %+v", top[0])
	}
}

func TestAdaptiveGateRampAndReset(t *testing.T) {
	cfg := testConfig()
	g := NewAdaptiveGate(cfg)

	// quiet cycles: one step per idle-bar threshold, capped
	for i := 0; i < 20; i++ {
		g.OnCycle(false)
		if r := g.Relax(); r < 0 || r > cfg.Gating.Max {
			t.Fatalf("relax out of bounds at cycle %d: %v", i, r)
		}
	}
	if g.Relax() != cfg.Gating.Max {
		t.Fatalf("expected relax capped at %v, got %v", cfg.Gating.Max, g.Relax())
	}
	if g.RegimeFloor() >= cfg.Classifier.RegimeFloor {
		t.Fatal("relaxed floor should be below base floor")
	}
	if g.CompressionCeiling() <= cfg.Classifier.CompressionCeiling {
		t.Fatal("relaxed ceiling should be above base ceiling")
	}

	// a signal fires: relax resets the same cycle
	g.OnCycle(true)
	if g.Relax() != 0 {
		t.Fatalf("expected relax reset to 0, got %v", g.Relax())
	}
	if g.RegimeFloor() != cfg.Classifier.RegimeFloor {
		t.Fatalf("floor should snap back, got %v", g.RegimeFloor())
	}
}

func TestAdaptiveGateStepCadence(t *testing.T) {
	cfg := testConfig() // threshold 4, step 0.05
	g := NewAdaptiveGate(cfg)
	for i := 1; i <= 3; i++ {
		g.OnCycle(false)
		if g.Relax() != 0 {
			t.Fatalf("relax should stay 0 before threshold, got %v at cycle %d", g.Relax(), i)
		}
	}
	g.OnCycle(false)
	if g.Relax() != cfg.Gating.Step {
		t.Fatalf("expected one step at threshold, got %v", g.Relax())
	}
	for i := 0; i < 4; i++ {
		g.OnCycle(false)
	}
	if g.Relax() != 2*cfg.Gating.Step {
		t.Fatalf("expected two steps after two thresholds, got %v", g.Relax())
	}
}

func TestAdaptiveGateFloorMin(t *testing.T) {
	cfg := testConfig()
	cfg.Gating.Max = 1.0 // allow deep relaxation
	g := NewAdaptiveGate(cfg)
	for i := 0; i < 200; i++ {
		g.OnCycle(false)
	}
	if g.RegimeFloor() != cfg.Gating.FloorMin {
		t.Fatalf("floor must not drop below min: %v", g.RegimeFloor())
	}
	if g.CompressionCeiling() != cfg.Gating.CeilingMax {
		t.Fatalf("ceiling must cap at max: %v", g.CompressionCeiling())
	}
}
