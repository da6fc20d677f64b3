// Package snapshot turns trailing bar windows into the per-symbol,
// per-bar-close derived state the classifier and detectors consume.
package snapshot

import (
	"Sniper/internal/domain/models"
	"Sniper/internal/services/features"
	"Sniper/internal/services/levels"
	"Sniper/pkg/config"
)

const (
	atrPeriod   = 14
	emaFast     = 20
	emaSlow     = 50
	minimumBars = 30
)

// Builder computes Snapshots. Pure and stateless: the same window and
// spread always yield an identical snapshot.
type Builder struct {
	pivotLookback int
	slopeHorizon  int
	clusterTolATR float64
	minWindowBars int
}

// NewBuilder creates a Builder from config.
func NewBuilder(cfg *config.Config) *Builder {
	minBars := cfg.Pipeline.MinBars
	if minBars < minimumBars {
		minBars = minimumBars
	}
	return &Builder{
		pivotLookback: cfg.Pipeline.PivotLookback,
		slopeHorizon:  cfg.Pipeline.EMASlopeHorizon,
		clusterTolATR: cfg.Classifier.ClusterTolATR,
		minWindowBars: minBars,
	}
}

// Build derives a Snapshot from the closed-bar window (oldest first) and
// the current spread. Fails closed: too few bars or a non-positive ATR
// returns nil and the caller skips the symbol for this cycle.
func (b *Builder) Build(symbol string, bars []models.Bar, spread float64) *models.Snapshot {
	if len(bars) < b.minWindowBars {
		return nil
	}

	atrSeries := features.ATRSeries(bars, atrPeriod)
	atr := features.Last(atrSeries)
	if atr <= 0 {
		return nil
	}

	ema20Series := features.EMASeries(bars, emaFast)
	ema50Series := features.EMASeries(bars, emaSlow)

	pivots := levels.FindPivots(bars, b.pivotLookback)

	snap := &models.Snapshot{
		Symbol:      symbol,
		BarTime:     bars[len(bars)-1].Time,
		Bars:        bars,
		ATR:         atr,
		EMA20:       features.Last(ema20Series),
		EMA50:       features.Last(ema50Series),
		EMA20Slope:  features.Slope(ema20Series, b.slopeHorizon),
		EMA50Slope:  features.Slope(ema50Series, b.slopeHorizon),
		Pivots:      pivots,
		TrendState:  levels.TrendStateFrom(pivots),
		Range:       levels.DetectRange(pivots, atr, b.clusterTolATR),
		Compression: levels.CompressionScore(atrSeries),
		Spread:      spread,
		SpreadATR:   spread / atr,
		MajorLevels: levels.MajorLevels(pivots, atr, b.clusterTolATR),
	}
	return snap
}
