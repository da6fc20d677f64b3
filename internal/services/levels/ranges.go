package levels

import (
	"sort"

	"Sniper/internal/domain/models"
)

// DetectRange clusters pivot highs and pivot lows separately within an
// ATR-scaled tolerance, keeps the densest cluster on each side (minimum
// two members), and reports their medians as the range boundaries. Nil
// when no acceptable range exists or the resulting width is degenerate.
func DetectRange(pivots []models.PivotPoint, atr, clusterTolATR float64) *models.RangeInfo {
	if atr <= 0 {
		return nil
	}
	tol := clusterTolATR * atr
	var highs, lows []float64
	for _, p := range pivots {
		if p.Kind == models.PivotHigh {
			highs = append(highs, p.Price)
		} else {
			lows = append(lows, p.Price)
		}
	}
	top, topN := densestCluster(highs, tol)
	bot, botN := densestCluster(lows, tol)
	if topN < 2 || botN < 2 {
		return nil
	}
	width := top - bot
	if width <= 0 {
		return nil
	}
	return &models.RangeInfo{
		High:      top,
		Low:       bot,
		Width:     width,
		TouchHigh: topN,
		TouchLow:  botN,
	}
}

// densestCluster greedily grows a cluster around each value and keeps the
// one with most members, returning its median and size.
func densestCluster(prices []float64, tol float64) (float64, int) {
	if len(prices) == 0 || tol <= 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	bestStart, bestEnd := 0, 0
	for i := range sorted {
		j := i
		for j+1 < len(sorted) && sorted[j+1]-sorted[i] <= tol {
			j++
		}
		if j-i > bestEnd-bestStart {
			bestStart, bestEnd = i, j
		}
	}
	cluster := sorted[bestStart : bestEnd+1]
	return median(cluster), len(cluster)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MajorLevels merges pivot prices into deduplicated structural levels:
// cluster medians over the same ATR tolerance, sorted ascending. Single
// pivots count here; density matters only for range boundaries.
func MajorLevels(pivots []models.PivotPoint, atr, clusterTolATR float64) []float64 {
	if atr <= 0 || len(pivots) == 0 {
		return nil
	}
	tol := clusterTolATR * atr
	prices := make([]float64, 0, len(pivots))
	for _, p := range pivots {
		prices = append(prices, p.Price)
	}
	sort.Float64s(prices)

	var out []float64
	start := 0
	for i := 1; i <= len(prices); i++ {
		if i == len(prices) || prices[i]-prices[i-1] > tol {
			out = append(out, median(prices[start:i]))
			start = i
		}
	}
	return out
}
