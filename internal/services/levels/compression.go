package levels

import (
	"Sniper/internal/services/features"
)

// CompressionScore ranks the current ATR against its own trailing
// distribution: 0 means the tightest volatility seen in the window, 100
// the widest. Low values flag coiling markets where breakout setups are
// worth more and spread gates need to be stricter.
func CompressionScore(atrSeries []float64) float64 {
	cur := features.Last(atrSeries)
	if cur <= 0 {
		return 50
	}
	return features.PercentileRank(atrSeries, cur)
}
