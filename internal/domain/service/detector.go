package service

import (
	"Sniper/internal/domain/models"
)

// Detector is the shared deep-pass interface implemented once per setup
// type. Detect consumes the cycle's snapshot and the symbol's mutable
// state, returns the setup to keep for the next cycle (nil to clear) and
// an optional bar-close trigger. "No result" is (nil, nil), never an
// error: insufficient data, invalidation, and expiry are normal outcomes.
type Detector interface {
	Type() models.SetupType
	Detect(snap *models.Snapshot, st *models.SymbolState, barIndex int) (models.Setup, *models.TriggerEvent)
}

// DetectorFor maps a confirmed regime to its detector. Pure dispatch:
// trend routes to TPR, range to RBH, transition to ECR.
func DetectorFor(regime models.Regime, tpr, rbh, ecr Detector) Detector {
	switch regime {
	case models.RegimeTrend:
		return tpr
	case models.RegimeRange:
		return rbh
	default:
		return ecr
	}
}
