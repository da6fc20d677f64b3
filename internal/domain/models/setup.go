package models

import "time"

// Direction is the trade side of a setup or intent.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// SetupType identifies one of the three deep-pass setups.
type SetupType string

const (
	SetupTPR SetupType = "tpr" // trend pullback reclaim
	SetupRBH SetupType = "rbh" // range breakout hold
	SetupECR SetupType = "ecr" // ema cycle reversion
)

// ScoreBreakdown records the components behind a setup confidence score.
type ScoreBreakdown map[string]float64

// SetupCore carries the fields every setup shares. Setups are created by
// their detector, mutated bar-by-bar by that detector only, and destroyed
// on fire, invalidation, or expiry.
type SetupCore struct {
	Symbol     string
	Direction  Direction
	DetectedAt time.Time
	ExpiryBar  int // bar index in pipeline bar counting; past it the setup is discarded

	// Structural levels that define the setup.
	TriggerLevel float64
	Invalidation float64 // close beyond this kills the setup
	NoChase      float64 // price beyond this voids a nominal trigger

	StopLoss    float64
	TakeProfit1 float64
	TakeProfit2 float64

	Confidence float64
	Scores     ScoreBreakdown
}

// Setup is the tagged-union view of an active setup. Exactly one of
// {none, TPR, RBH, ECR} is active per symbol at any time; SymbolState
// holds a single Setup (nil meaning none), which makes the mutual
// exclusivity structural.
type Setup interface {
	Type() SetupType
	Core() *SetupCore
}

// TPRSetup is a trend pullback reclaim in progress.
type TPRSetup struct {
	SetupCore
	DefiningPivot  PivotPoint // the pivot whose loss invalidates the trend leg
	PullbackHigh   float64
	PullbackLow    float64
	RejectionEntry bool // trigger fired off a rejection wick rather than a reclaim body
}

func (s *TPRSetup) Type() SetupType  { return SetupTPR }
func (s *TPRSetup) Core() *SetupCore { return &s.SetupCore }

// RBHPhase enumerates the range-breakout state machine. Transitions are
// strictly awaiting-break -> break-confirmed -> one of the terminal
// outcomes; anything else is rejected by Advance.
type RBHPhase string

const (
	RBHAwaitingBreak   RBHPhase = "awaiting_break"
	RBHBreakConfirmed  RBHPhase = "break_confirmed"
	RBHRetestConfirmed RBHPhase = "retest_confirmed"
	RBHInvalid         RBHPhase = "invalid"
	RBHExpired         RBHPhase = "expired"
)

// Terminal reports whether the phase ends the setup.
func (p RBHPhase) Terminal() bool {
	return p == RBHRetestConfirmed || p == RBHInvalid || p == RBHExpired
}

// RBHSetup is a range breakout awaiting its retest hold.
type RBHSetup struct {
	SetupCore
	Phase        RBHPhase
	Range        RangeInfo
	BrokenLevel  float64 // boundary the break closed beyond
	BreakBar     int     // pipeline bar index of the confirming close
	BreakExtreme float64 // high (buy) / low (sell) of the break bar
	RetestDue    int     // last bar index of the retest window
}

func (s *RBHSetup) Type() SetupType  { return SetupRBH }
func (s *RBHSetup) Core() *SetupCore { return &s.SetupCore }

// Advance moves the state machine to next, rejecting illegal transitions.
func (s *RBHSetup) Advance(next RBHPhase) bool {
	switch s.Phase {
	case RBHAwaitingBreak:
		if next == RBHBreakConfirmed || next == RBHInvalid || next == RBHExpired {
			s.Phase = next
			return true
		}
	case RBHBreakConfirmed:
		if next.Terminal() {
			s.Phase = next
			return true
		}
	}
	return false
}

// ECRSetup is a counter-trend mean reversion toward the target EMA.
type ECRSetup struct {
	SetupCore
	SlowCrossBar   int     // window index of the EMA13/EMA50 cross
	FastCycleCount int     // EMA5/EMA13 crosses since the slow cross
	TargetEMA      float64 // EMA200 value at detection
}

func (s *ECRSetup) Type() SetupType  { return SetupECR }
func (s *ECRSetup) Core() *SetupCore { return &s.SetupCore }
