package features

import (
	"math"
	"testing"
	"time"

	"Sniper/internal/domain/models"
)

func flatBars(n int, price float64) []models.Bar {
	bars := make([]models.Bar, n)
	t := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = models.Bar{
			Time:  t.Add(time.Duration(i) * 15 * time.Minute),
			Open:  price, High: price + 1, Low: price - 1, Close: price,
		}
	}
	return bars
}

func TestEMASeriesFlat(t *testing.T) {
	bars := flatBars(60, 100)
	ema := EMASeries(bars, 20)
	if ema[18] != 0 {
		t.Fatalf("ema defined before period: %v", ema[18])
	}
	if math.Abs(ema[59]-100) > 1e-9 {
		t.Fatalf("flat ema should equal price, got %v", ema[59])
	}
}

func TestEMASeriesShortWindow(t *testing.T) {
	bars := flatBars(10, 100)
	ema := EMASeries(bars, 20)
	for i, v := range ema {
		if v != 0 {
			t.Fatalf("expected zero series, got %v at %d", v, i)
		}
	}
}

func TestATRSeriesFlat(t *testing.T) {
	bars := flatBars(40, 100)
	atr := ATRSeries(bars, 14)
	// every bar has range 2 and no gaps, so ATR settles at 2
	if math.Abs(Last(atr)-2) > 1e-9 {
		t.Fatalf("expected atr 2, got %v", Last(atr))
	}
}

func TestSlope(t *testing.T) {
	xs := []float64{100, 101, 102, 103, 104, 105}
	got := Slope(xs, 5)
	if math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected slope 1, got %v", got)
	}
	if Slope(xs, 10) != 0 {
		t.Fatalf("slope over too-short series should be 0")
	}
}

func TestCrossIndexes(t *testing.T) {
	fast := []float64{1, 1, 3, 3, 1, 1}
	slow := []float64{2, 2, 2, 2, 2, 2}
	idxs := CrossIndexes(fast, slow, 1)
	if len(idxs) != 2 || idxs[0] != 2 || idxs[1] != 4 {
		t.Fatalf("unexpected cross indexes %v", idxs)
	}
	if d := LastCrossDirection(fast, slow, idxs); d != -1 {
		t.Fatalf("expected last cross down, got %d", d)
	}
}

func TestPercentileRank(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	if got := PercentileRank(xs, 5); got != 100 {
		t.Fatalf("largest should rank 100, got %v", got)
	}
	if got := PercentileRank(xs, 1); got != 0 {
		t.Fatalf("smallest should rank 0, got %v", got)
	}
	if got := PercentileRank(xs, 3); got != 50 {
		t.Fatalf("median should rank 50, got %v", got)
	}
}
