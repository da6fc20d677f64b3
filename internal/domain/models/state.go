package models

import "time"

// SymbolState is the only long-lived mutable entity in the pipeline: one
// record per symbol holding regime hysteresis and at most one active
// setup. Created lazily on first shortlist sighting; written exactly once
// per symbol per bar-close cycle by the deep pass, with the intrabar path
// allowed only to clear the active TPR setup on its own fire.
type SymbolState struct {
	Symbol           string
	Regime           Regime
	RegimeStreak     int
	RegimeConfidence float64

	Active Setup // nil | *TPRSetup | *RBHSetup | *ECRSetup

	LastSignalTime time.Time
	LastBarTime    time.Time
}

// ObserveRegime folds a new regime observation into the hysteresis
// fields: the streak grows while the regime holds and resets to exactly 1
// on any change.
func (s *SymbolState) ObserveRegime(r Regime, confidence float64) {
	if s.Regime == r {
		s.RegimeStreak++
	} else {
		s.Regime = r
		s.RegimeStreak = 1
	}
	s.RegimeConfidence = confidence
}

// RegimeConfirmed reports whether hysteresis allows deep-pass routing by
// the regime itself: streak at the hysteresis bar count and confidence at
// the (possibly relaxed) floor.
func (s *SymbolState) RegimeConfirmed(hysteresisBars int, floor float64) bool {
	return s.RegimeStreak >= hysteresisBars && s.RegimeConfidence >= floor
}

// ClearSetup drops the active setup (trigger fire, invalidation, expiry).
func (s *SymbolState) ClearSetup() { s.Active = nil }
