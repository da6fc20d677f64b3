package classifier

import (
	"sync"

	"Sniper/pkg/config"
)

// AdaptiveGate is the process-wide permissiveness controller. The relax
// value grows by one step for every idle-bar-threshold cycles without a
// signal, capped at max, and snaps back to zero the cycle any signal
// fires. Relax lowers the regime-confidence floor and raises the
// compression ceiling, both within their own caps.
type AdaptiveGate struct {
	mu        sync.Mutex
	idleBars  int
	relax     float64
	step      float64
	max       float64
	threshold int

	regimeFloor  float64
	floorMin     float64
	ceiling      float64
	ceilingMax   float64
	ceilingScale float64
}

// NewAdaptiveGate creates the gate from config.
func NewAdaptiveGate(cfg *config.Config) *AdaptiveGate {
	return &AdaptiveGate{
		step:         cfg.Gating.Step,
		max:          cfg.Gating.Max,
		threshold:    cfg.Gating.IdleBars,
		regimeFloor:  cfg.Classifier.RegimeFloor,
		floorMin:     cfg.Gating.FloorMin,
		ceiling:      cfg.Classifier.CompressionCeiling,
		ceilingMax:   cfg.Gating.CeilingMax,
		ceilingScale: cfg.Gating.CeilingScale,
	}
}

// OnCycle advances the gate by one bar-close cycle. fired reports whether
// any signal fired during the cycle just completed.
func (g *AdaptiveGate) OnCycle(fired bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fired {
		g.idleBars = 0
		g.relax = 0
		return
	}
	g.idleBars++
	r := g.step * float64(g.idleBars/g.threshold)
	if r > g.max {
		r = g.max
	}
	g.relax = r
}

// OnFire resets the gate outside the bar-close cadence. Intrabar fires
// count as signals too.
func (g *AdaptiveGate) OnFire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idleBars = 0
	g.relax = 0
}

// Relax returns the current relax value, always within [0, max].
func (g *AdaptiveGate) Relax() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.relax
}

// RegimeFloor returns the currently relaxed regime-confidence floor.
func (g *AdaptiveGate) RegimeFloor() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	f := g.regimeFloor - g.relax
	if f < g.floorMin {
		f = g.floorMin
	}
	return f
}

// CompressionCeiling returns the currently relaxed compression ceiling.
func (g *AdaptiveGate) CompressionCeiling() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.ceiling + g.relax*g.ceilingScale
	if c > g.ceilingMax {
		c = g.ceilingMax
	}
	return c
}

// IdleBars returns bars elapsed since the last signal.
func (g *AdaptiveGate) IdleBars() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idleBars
}
