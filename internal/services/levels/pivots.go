// Package levels holds the pure structural utilities of the pipeline:
// pivot detection, range clustering, and volatility-compression scoring.
// Everything here is a function of a bar window; nothing is stateful.
package levels

import (
	"Sniper/internal/domain/models"
)

// FindPivots scans the window for local extrema: bar i is a pivot high
// iff its high is the maximum over [i-lookback, i+lookback], symmetric
// for lows. The last lookback bars cannot confirm a pivot yet and are
// skipped. Result is ordered by bar index.
func FindPivots(bars []models.Bar, lookback int) []models.PivotPoint {
	if lookback <= 0 || len(bars) < 2*lookback+1 {
		return nil
	}
	out := make([]models.PivotPoint, 0, len(bars)/4)
	for i := lookback; i < len(bars)-lookback; i++ {
		hi, lo := true, true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				hi = false
			}
			if bars[j].Low <= bars[i].Low {
				lo = false
			}
			if !hi && !lo {
				break
			}
		}
		if hi {
			out = append(out, models.PivotPoint{
				Kind: models.PivotHigh, BarIndex: i, Time: bars[i].Time, Price: bars[i].High,
			})
		}
		if lo {
			out = append(out, models.PivotPoint{
				Kind: models.PivotLow, BarIndex: i, Time: bars[i].Time, Price: bars[i].Low,
			})
		}
	}
	return out
}

// TrendStateFrom derives structure from the last two pivot highs and the
// last two pivot lows: both sequences rising or both falling is trend,
// mixed is transition, anything else (including too few pivots) is range.
func TrendStateFrom(pivots []models.PivotPoint) models.TrendState {
	highs := lastOfKind(pivots, models.PivotHigh, 2)
	lows := lastOfKind(pivots, models.PivotLow, 2)
	if len(highs) < 2 || len(lows) < 2 {
		return models.TrendStateRange
	}
	hhUp := highs[1].Price > highs[0].Price
	llUp := lows[1].Price > lows[0].Price
	hhDown := highs[1].Price < highs[0].Price
	llDown := lows[1].Price < lows[0].Price
	switch {
	case hhUp && llUp, hhDown && llDown:
		return models.TrendStateTrend
	case (hhUp && llDown) || (hhDown && llUp):
		return models.TrendStateTransition
	default:
		return models.TrendStateRange
	}
}

func lastOfKind(pivots []models.PivotPoint, kind models.PivotKind, n int) []models.PivotPoint {
	out := make([]models.PivotPoint, 0, n)
	for i := len(pivots) - 1; i >= 0 && len(out) < n; i-- {
		if pivots[i].Kind == kind {
			out = append(out, pivots[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
