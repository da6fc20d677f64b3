// Package detectors holds the three deep-pass setup detectors: trend
// pullback reclaim (TPR), range breakout hold (RBH), and EMA cycle
// reversion (ECR). Each implements service.Detector over the shared
// Snapshot/SymbolState types, keeps its own setup sub-state alive across
// cycles, and evaluates its bar-close trigger itself. "No result" is the
// dominant outcome and is never an error.
package detectors

import (
	"math"

	"Sniper/internal/domain/models"
)

// scoreWeights blends component scores into a setup confidence.
type scoreWeights struct {
	structure float64
	alignment float64
	depth     float64
	spread    float64
	momentum  float64
}

func (w scoreWeights) blend(b models.ScoreBreakdown) float64 {
	total := w.structure*b["structure"] +
		w.alignment*b["alignment"] +
		w.depth*b["depth"] +
		w.spread*b["spread"] +
		w.momentum*b["momentum"]
	return clamp01(total)
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

// bodyATR returns the bar body in ATR units.
func bodyATR(b models.Bar, atr float64) float64 {
	if atr <= 0 {
		return 0
	}
	return b.Body() / atr
}

// spreadScore maps spread/ATR into [0,1]; tighter is better.
func spreadScore(spreadATR, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return clamp01(1 - spreadATR/ceiling)
}

// stopDistanceOK enforces the minimum stop distance invariant: the gap
// between entry and stop must be at least minStopATR ATRs.
func stopDistanceOK(entry, stop, atr, minStopATR float64) bool {
	return math.Abs(entry-stop) >= minStopATR*atr
}

// nearestLevelBeyond returns the closest major level strictly beyond
// price in the trade direction, or 0 when none exists.
func nearestLevelBeyond(levels []float64, price float64, dir models.Direction) float64 {
	best := 0.0
	for _, lv := range levels {
		if dir == models.Buy && lv > price {
			if best == 0 || lv < best {
				best = lv
			}
		}
		if dir == models.Sell && lv < price {
			if best == 0 || lv > best {
				best = lv
			}
		}
	}
	return best
}
