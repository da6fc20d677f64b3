package models

import "time"

// Regime classifies short-term market character for routing.
type Regime string

const (
	RegimeTrend      Regime = "trend"
	RegimeRange      Regime = "range"
	RegimeTransition Regime = "transition"
)

// FastCandidate is the transient ranking record the fast pass produces.
// It lives for one cycle only.
type FastCandidate struct {
	Symbol          string
	Regime          Regime
	Bias            Direction // "" when neutral
	QuickScore      float64
	TrendConfidence float64
	RangeConfidence float64
	Snapshot        *Snapshot
}

// TriggerEvent records a setup firing. Produced and consumed within a
// single cycle; never stored.
type TriggerEvent struct {
	SetupType SetupType
	Symbol    string
	Direction Direction
	Time      time.Time
	Price     float64
	Momentum  float64
	Intrabar  bool
	Reasons   []string

	// Fired carries the setup that produced the trigger so the emitter
	// can read its levels after the symbol state is cleared.
	Fired Setup
}

// EntryType selects the order mechanics of an intent.
type EntryType string

const (
	EntryMarket       EntryType = "market"
	EntryPendingStop  EntryType = "pending_stop"
	EntryPendingLimit EntryType = "pending_limit"
)

// ExecutionIntent is the pipeline's sole output: a fully specified,
// risk-bounded order intent handed to the external sizing/execution
// layer. Immutable once emitted.
type ExecutionIntent struct {
	ID         string
	SetupType  SetupType
	Symbol     string
	Direction  Direction
	EntryType  EntryType
	EntryPrice float64
	StopLoss   float64
	TP1        float64
	TP2        float64
	ExpiryBars int     // pending-order lifetime
	RiskFactor float64 // in [0,1], from setup confidence
	CreatedAt  time.Time
	Reasons    []string
}
