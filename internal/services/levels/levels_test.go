package levels

import (
	"math"
	"testing"
	"time"

	"Sniper/internal/domain/models"
)

func bar(i int, o, h, l, c float64) models.Bar {
	t := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return models.Bar{Time: t.Add(time.Duration(i) * 15 * time.Minute), Open: o, High: h, Low: l, Close: c}
}

// zigzag produces alternating swings so pivots land deterministically.
func zigzag(n int, base, amp float64) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		phase := float64(i%10) / 10 * 2 * math.Pi
		mid := base + amp*math.Sin(phase)
		bars[i] = bar(i, mid, mid+0.5, mid-0.5, mid)
	}
	return bars
}

func TestFindPivotsSingleSpike(t *testing.T) {
	bars := make([]models.Bar, 11)
	for i := range bars {
		bars[i] = bar(i, 100, 101, 99, 100)
	}
	bars[5] = bar(5, 100, 110, 99, 100) // lone high
	pivots := FindPivots(bars, 3)
	var highs []models.PivotPoint
	for _, p := range pivots {
		if p.Kind == models.PivotHigh {
			highs = append(highs, p)
		}
	}
	if len(highs) != 1 || highs[0].BarIndex != 5 || highs[0].Price != 110 {
		t.Fatalf("expected single pivot high at bar 5, got %+v", highs)
	}
}

func TestFindPivotsTooFewBars(t *testing.T) {
	if got := FindPivots(zigzag(4, 100, 2), 3); got != nil {
		t.Fatalf("expected nil for short window, got %v", got)
	}
}

func TestFindPivotsSkipsUnconfirmedTail(t *testing.T) {
	bars := make([]models.Bar, 12)
	for i := range bars {
		bars[i] = bar(i, 100, 101, 99, 100)
	}
	bars[10] = bar(10, 100, 115, 99, 100) // inside the unconfirmed tail for lookback 3
	for _, p := range FindPivots(bars, 3) {
		if p.BarIndex >= len(bars)-3 {
			t.Fatalf("pivot confirmed inside tail: %+v", p)
		}
	}
}

func TestTrendStateFrom(t *testing.T) {
	mk := func(kind models.PivotKind, idx int, price float64) models.PivotPoint {
		return models.PivotPoint{Kind: kind, BarIndex: idx, Price: price}
	}
	cases := []struct {
		name   string
		pivots []models.PivotPoint
		want   models.TrendState
	}{
		{
			"higher highs and higher lows",
			[]models.PivotPoint{
				mk(models.PivotLow, 1, 90), mk(models.PivotHigh, 3, 100),
				mk(models.PivotLow, 5, 95), mk(models.PivotHigh, 7, 105),
			},
			models.TrendStateTrend,
		},
		{
			"lower highs and lower lows",
			[]models.PivotPoint{
				mk(models.PivotHigh, 1, 105), mk(models.PivotLow, 3, 95),
				mk(models.PivotHigh, 5, 100), mk(models.PivotLow, 7, 90),
			},
			models.TrendStateTrend,
		},
		{
			"mixed structure",
			[]models.PivotPoint{
				mk(models.PivotHigh, 1, 100), mk(models.PivotLow, 3, 90),
				mk(models.PivotHigh, 5, 105), mk(models.PivotLow, 7, 85),
			},
			models.TrendStateTransition,
		},
		{
			"flat highs and lows",
			[]models.PivotPoint{
				mk(models.PivotHigh, 1, 100), mk(models.PivotLow, 3, 90),
				mk(models.PivotHigh, 5, 100), mk(models.PivotLow, 7, 90),
			},
			models.TrendStateRange,
		},
		{
			"too few pivots",
			[]models.PivotPoint{mk(models.PivotHigh, 1, 100), mk(models.PivotLow, 3, 90)},
			models.TrendStateRange,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TrendStateFrom(tc.pivots); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestDetectRange(t *testing.T) {
	mk := func(kind models.PivotKind, idx int, price float64) models.PivotPoint {
		return models.PivotPoint{Kind: kind, BarIndex: idx, Price: price}
	}
	pivots := []models.PivotPoint{
		mk(models.PivotHigh, 2, 105.0), mk(models.PivotLow, 4, 100.1),
		mk(models.PivotHigh, 6, 105.2), mk(models.PivotLow, 8, 99.9),
		mk(models.PivotHigh, 10, 104.9), mk(models.PivotLow, 12, 100.0),
	}
	r := DetectRange(pivots, 1.0, 0.5)
	if r == nil {
		t.Fatal("expected a range")
	}
	if r.TouchHigh != 3 || r.TouchLow != 3 {
		t.Fatalf("expected 3 touches per side, got %d/%d", r.TouchHigh, r.TouchLow)
	}
	if math.Abs(r.High-105.0) > 1e-9 || math.Abs(r.Low-100.0) > 1e-9 {
		t.Fatalf("unexpected boundaries %v/%v", r.High, r.Low)
	}
	if math.Abs(r.Width-5.0) > 1e-9 {
		t.Fatalf("unexpected width %v", r.Width)
	}
}

func TestDetectRangeRequiresTwoTouches(t *testing.T) {
	pivots := []models.PivotPoint{
		{Kind: models.PivotHigh, BarIndex: 2, Price: 105},
		{Kind: models.PivotLow, BarIndex: 4, Price: 100},
		{Kind: models.PivotLow, BarIndex: 8, Price: 100.1},
	}
	if r := DetectRange(pivots, 1.0, 0.5); r != nil {
		t.Fatalf("single-touch top should not form a range, got %+v", r)
	}
}

func TestDetectRangeZeroATR(t *testing.T) {
	if r := DetectRange(nil, 0, 0.5); r != nil {
		t.Fatal("zero ATR must fail closed")
	}
}

func TestMajorLevelsClusters(t *testing.T) {
	pivots := []models.PivotPoint{
		{Kind: models.PivotHigh, BarIndex: 1, Price: 105.0},
		{Kind: models.PivotHigh, BarIndex: 5, Price: 105.2},
		{Kind: models.PivotLow, BarIndex: 3, Price: 100.0},
	}
	lv := MajorLevels(pivots, 1.0, 0.5)
	if len(lv) != 2 {
		t.Fatalf("expected 2 levels, got %v", lv)
	}
	if math.Abs(lv[0]-100.0) > 1e-9 || math.Abs(lv[1]-105.1) > 1e-9 {
		t.Fatalf("unexpected levels %v", lv)
	}
}

func TestCompressionScoreBounds(t *testing.T) {
	atr := []float64{1, 2, 3, 4, 5}
	if got := CompressionScore(atr); got != 100 {
		t.Fatalf("rising ATR should score 100, got %v", got)
	}
	atr = []float64{5, 4, 3, 2, 1}
	if got := CompressionScore(atr); got != 0 {
		t.Fatalf("falling ATR should score 0, got %v", got)
	}
}
