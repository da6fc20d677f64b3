// Package classifier is the fast pass: cheap per-symbol regime
// classification and ranking that bounds the deep-pass workload to a
// fixed-size shortlist regardless of universe size.
package classifier

import (
	"math"
	"sort"

	"Sniper/internal/domain/models"
	"Sniper/pkg/config"
)

// Classifier scores Snapshots into FastCandidates.
type Classifier struct {
	cfg  *config.Config
	gate *AdaptiveGate
}

// New creates a Classifier sharing the process-wide adaptive gate.
func New(cfg *config.Config, gate *AdaptiveGate) *Classifier {
	return &Classifier{cfg: cfg, gate: gate}
}

// Classify runs the fast pass for one symbol. Hard gates run first and
// reject outright; everything after only shapes the ranking. Returns nil
// when the symbol is gated out.
func (c *Classifier) Classify(snap *models.Snapshot) *models.FastCandidate {
	if snap == nil || snap.ATR <= 0 {
		return nil
	}
	if snap.SpreadATR > c.cfg.MaxSpreadATR(snap.Symbol) {
		return nil
	}

	trendConf := c.trendConfidence(snap)
	rangeConf := c.rangeConfidence(snap)

	regime := models.RegimeTrend
	conf := trendConf
	if rangeConf > trendConf {
		regime = models.RegimeRange
		conf = rangeConf
	}
	if conf < c.gate.RegimeFloor() {
		regime = models.RegimeTransition
	}

	bias := c.bias(snap)

	score := 40.0
	if regime == models.RegimeTrend {
		score += 25
	} else {
		score += 20
	}
	score += 15 * spreadQuality(snap.SpreadATR, c.cfg.MaxSpreadATR(snap.Symbol))
	if bias != "" {
		score += 10
	}

	return &models.FastCandidate{
		Symbol:          snap.Symbol,
		Regime:          regime,
		Bias:            bias,
		QuickScore:      score,
		TrendConfidence: trendConf,
		RangeConfidence: rangeConf,
		Snapshot:        snap,
	}
}

// Shortlist ranks candidates by quick score and truncates to the
// configured size.
func (c *Classifier) Shortlist(cands []*models.FastCandidate) []*models.FastCandidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].QuickScore > cands[j].QuickScore
	})
	if len(cands) > c.cfg.Pipeline.ShortlistSize {
		cands = cands[:c.cfg.Pipeline.ShortlistSize]
	}
	return cands
}

// trendConfidence blends structure, EMA separation/slope, and
// compression into [0,1].
func (c *Classifier) trendConfidence(snap *models.Snapshot) float64 {
	structure := 0.3
	if snap.TrendState == models.TrendStateTrend {
		structure = 1.0
	}

	sep := math.Abs(snap.EMA20-snap.EMA50) / snap.ATR
	slope := math.Abs(snap.EMA20Slope) / snap.ATR * 10
	momentum := math.Min(1, (sep+slope)/2)

	expansion := math.Min(1, snap.Compression/60)

	return clamp01(0.5*structure + 0.3*momentum + 0.2*expansion)
}

// rangeConfidence blends range-width sanity, touch count, and a
// compression ceiling into [0,1].
func (c *Classifier) rangeConfidence(snap *models.Snapshot) float64 {
	r := snap.Range
	if r == nil {
		return 0
	}
	widthATR := r.Width / snap.ATR
	width := 0.0
	if widthATR >= c.cfg.Classifier.RangeMinWidthATR && widthATR <= c.cfg.Classifier.RangeMaxWidthATR {
		width = 1.0
	}

	touches := math.Min(1, float64(r.TouchHigh+r.TouchLow)/6)

	quiet := 0.0
	if snap.Compression <= c.gate.CompressionCeiling() {
		quiet = 1.0
	}

	return clamp01(0.45*width + 0.3*touches + 0.25*quiet)
}

// bias reads direction off the last two pivot pairs; neutral when the
// structure disagrees with the EMA order.
func (c *Classifier) bias(snap *models.Snapshot) models.Direction {
	highs := snap.LastPivots(models.PivotHigh, 2)
	lows := snap.LastPivots(models.PivotLow, 2)
	if len(highs) < 2 || len(lows) < 2 {
		return ""
	}
	up := highs[1].Price > highs[0].Price && lows[1].Price > lows[0].Price
	down := highs[1].Price < highs[0].Price && lows[1].Price < lows[0].Price
	switch {
	case up && snap.EMA20 >= snap.EMA50:
		return models.Buy
	case down && snap.EMA20 <= snap.EMA50:
		return models.Sell
	default:
		return ""
	}
}

// spreadQuality maps spread/ATR onto [0,1]: 1 at zero spread, 0 at the
// gate ceiling.
func spreadQuality(spreadATR, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return clamp01(1 - spreadATR/ceiling)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
