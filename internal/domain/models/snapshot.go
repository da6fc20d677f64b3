package models

import "time"

// PivotKind discriminates pivot highs from pivot lows.
type PivotKind string

const (
	PivotHigh PivotKind = "high"
	PivotLow  PivotKind = "low"
)

// PivotPoint is a local extremum bar relative to a symmetric lookback
// window. Recomputed fresh from the bar window every cycle.
type PivotPoint struct {
	Kind     PivotKind
	BarIndex int
	Time     time.Time
	Price    float64
}

// TrendState classifies structure from the last two pivot highs/lows.
// This is structure-vs-chop, not directional bias.
type TrendState string

const (
	TrendStateTrend      TrendState = "trend"
	TrendStateRange      TrendState = "range"
	TrendStateTransition TrendState = "transition"
)

// RangeInfo describes a detected horizontal range: clustered pivot
// highs and lows reported by their medians.
type RangeInfo struct {
	High      float64
	Low       float64
	Width     float64
	TouchHigh int
	TouchLow  int
}

// Snapshot is the per-symbol, per-bar-close derived state every pipeline
// stage consumes. It is a pure function of the trailing bar window plus
// current spread and is never mutated after creation; identity is
// (Symbol, BarTime).
type Snapshot struct {
	Symbol  string
	BarTime time.Time

	// Trailing window, oldest first. The closing bar is Bars[len-1].
	Bars []Bar

	ATR        float64
	EMA20      float64
	EMA50      float64
	EMA20Slope float64 // per-bar slope over a short horizon, price units
	EMA50Slope float64

	Pivots     []PivotPoint // ordered by bar index
	TrendState TrendState
	Range      *RangeInfo // nil when no acceptable range

	// Compression percentile ranks current ATR against its own trailing
	// distribution: 0 = tightest in window, 100 = widest.
	Compression float64

	Spread    float64
	SpreadATR float64 // spread / ATR, instrument-agnostic

	MajorLevels []float64 // cached structural levels from pivot clusters
}

// Close returns the close of the just-closed bar.
func (s *Snapshot) Close() float64 { return s.Bars[len(s.Bars)-1].Close }

// LastBar returns the just-closed bar.
func (s *Snapshot) LastBar() Bar { return s.Bars[len(s.Bars)-1] }

// LastPivots returns the most recent n pivots of the given kind, newest last.
func (s *Snapshot) LastPivots(kind PivotKind, n int) []PivotPoint {
	out := make([]PivotPoint, 0, n)
	for i := len(s.Pivots) - 1; i >= 0 && len(out) < n; i-- {
		if s.Pivots[i].Kind == kind {
			out = append(out, s.Pivots[i])
		}
	}
	// reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
