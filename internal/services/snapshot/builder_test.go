package snapshot

import (
	"math"
	"reflect"
	"testing"
	"time"

	"Sniper/internal/domain/models"
	"Sniper/pkg/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.PivotLookback = 3
	cfg.Pipeline.EMASlopeHorizon = 5
	cfg.Pipeline.MinBars = 30
	cfg.Classifier.ClusterTolATR = 0.5
	return cfg
}

func mkBar(i int, o, h, l, c float64) models.Bar {
	t := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return models.Bar{
		Time: t.Add(time.Duration(i) * 15 * time.Minute), Symbol: "EURUSD",
		Open: o, High: h, Low: l, Close: c, Volume: 100,
	}
}

// trendingBars ramps price upward with oscillations strong enough to
// turn the highs and lows locally, so pivots form higher highs and
// higher lows instead of a monotone staircase.
func trendingBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		base := 100 + float64(i)*0.2
		osc := 1.5 * math.Sin(float64(i)/2)
		c := base + osc
		bars[i] = mkBar(i, c-0.05, c+0.3, c-0.3, c)
	}
	return bars
}

func TestBuildFailsClosedOnShortWindow(t *testing.T) {
	b := NewBuilder(testConfig())
	if snap := b.Build("EURUSD", trendingBars(20), 0.0002); snap != nil {
		t.Fatal("expected nil snapshot for short window")
	}
}

func TestBuildFailsClosedOnZeroATR(t *testing.T) {
	b := NewBuilder(testConfig())
	bars := make([]models.Bar, 60)
	for i := range bars {
		bars[i] = mkBar(i, 100, 100, 100, 100) // zero-range bars, ATR 0
	}
	if snap := b.Build("EURUSD", bars, 0.0002); snap != nil {
		t.Fatal("expected nil snapshot for zero ATR")
	}
}

func TestBuildPopulatesDerivedState(t *testing.T) {
	b := NewBuilder(testConfig())
	bars := trendingBars(120)
	snap := b.Build("EURUSD", bars, 0.05)
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if snap.Symbol != "EURUSD" || !snap.BarTime.Equal(bars[119].Time) {
		t.Fatalf("identity wrong: %s %v", snap.Symbol, snap.BarTime)
	}
	if snap.ATR <= 0 || snap.EMA20 <= 0 || snap.EMA50 <= 0 {
		t.Fatalf("indicators not populated: %+v", snap)
	}
	if snap.EMA20Slope <= 0 {
		t.Fatalf("uptrend should have positive EMA20 slope, got %v", snap.EMA20Slope)
	}
	if len(snap.Pivots) == 0 {
		t.Fatal("expected pivots in oscillating window")
	}
	if snap.SpreadATR <= 0 {
		t.Fatalf("spread ratio not derived: %v", snap.SpreadATR)
	}
	if snap.Compression < 0 || snap.Compression > 100 {
		t.Fatalf("compression out of bounds: %v", snap.Compression)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	b := NewBuilder(testConfig())
	bars := trendingBars(120)
	s1 := b.Build("EURUSD", bars, 0.05)
	s2 := b.Build("EURUSD", bars, 0.05)
	if s1 == nil || s2 == nil {
		t.Fatal("expected snapshots")
	}
	if !reflect.DeepEqual(s1, s2) {
		t.Fatal("same window must produce identical snapshots")
	}
}
