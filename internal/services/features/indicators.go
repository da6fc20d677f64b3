package features

import (
	"math"

	"Sniper/internal/domain/models"
)

// EMASeries computes an exponential moving average over closes. Entries
// before the first full period are zero; the first defined value is the
// simple mean of the initial period (standard seeding).
func EMASeries(bars []models.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if period <= 0 || len(bars) < period {
		return out
	}
	k := 2.0 / (float64(period) + 1.0)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += bars[i].Close
	}
	out[period-1] = sum / float64(period)
	for i := period; i < len(bars); i++ {
		out[i] = bars[i].Close*k + out[i-1]*(1-k)
	}
	return out
}

// ATRSeries computes the rolling true-range mean. Entries before the
// first full period are zero.
func ATRSeries(bars []models.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if period <= 0 || len(bars) < period+1 {
		return out
	}
	trs := make([]float64, len(bars))
	trs[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		trs[i] = math.Max(hl, math.Max(hc, lc))
	}
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trs[i]
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < len(bars); i++ {
		out[i] = (out[i-1]*float64(period-1) + trs[i]) / float64(period)
	}
	return out
}

// Last returns the final value of a series, or 0 for an empty one.
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}

// Slope returns the average per-bar change of the series tail over
// horizon bars. Zero when the series is too short or not yet defined.
func Slope(xs []float64, horizon int) float64 {
	if horizon <= 0 || len(xs) <= horizon {
		return 0
	}
	a := xs[len(xs)-1-horizon]
	b := xs[len(xs)-1]
	if a == 0 {
		return 0
	}
	return (b - a) / float64(horizon)
}

// CrossIndexes returns the series indexes at which fast crossed slow,
// scanning [from, len). A cross at i means the sign of fast-slow flipped
// between i-1 and i; indexes where either series is undefined are skipped.
func CrossIndexes(fast, slow []float64, from int) []int {
	n := len(fast)
	if len(slow) < n {
		n = len(slow)
	}
	if from < 1 {
		from = 1
	}
	var out []int
	for i := from; i < n; i++ {
		if fast[i-1] == 0 || slow[i-1] == 0 || fast[i] == 0 || slow[i] == 0 {
			continue
		}
		prev := fast[i-1] - slow[i-1]
		cur := fast[i] - slow[i]
		if (prev <= 0 && cur > 0) || (prev >= 0 && cur < 0) {
			out = append(out, i)
		}
	}
	return out
}

// LastCrossDirection reports the direction of the most recent cross in
// idxs: +1 when fast ended above slow at that bar, -1 below, 0 when none.
func LastCrossDirection(fast, slow []float64, idxs []int) int {
	if len(idxs) == 0 {
		return 0
	}
	i := idxs[len(idxs)-1]
	if i >= len(fast) || i >= len(slow) {
		return 0
	}
	if fast[i] > slow[i] {
		return 1
	}
	return -1
}

// PercentileRank ranks v against the non-zero trailing values of xs:
// 0 = smallest, 100 = largest.
func PercentileRank(xs []float64, v float64) float64 {
	count, below := 0, 0
	for _, x := range xs {
		if x <= 0 {
			continue
		}
		count++
		if x < v {
			below++
		}
	}
	if count <= 1 {
		return 50
	}
	return 100 * float64(below) / float64(count-1)
}
