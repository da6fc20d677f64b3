package repository

import (
	"context"
	"time"

	"Sniper/internal/domain/models"
)

// BarSource provides closed-bar windows for the universe. The connector
// owns its own timeout/retry; a failed fetch is treated by the pipeline
// as insufficient data for that symbol, that cycle.
type BarSource interface {
	// LatestWindow returns up to n closed bars for symbol, oldest first.
	LatestWindow(ctx context.Context, symbol string, n int) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}

// TickStream streams live best-bid/best-ask quotes for the intrabar path
// and spread computation.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// IntentSink receives emitted execution intents. Implementations publish
// to Kafka, push to a Redis outbox, or just log for dry runs.
type IntentSink interface {
	Emit(ctx context.Context, intent *models.ExecutionIntent) error
	Close() error
}

// IntentArchive persists emitted intents for research and audit. Optional:
// the pipeline works without one.
type IntentArchive interface {
	Store(ctx context.Context, intent *models.ExecutionIntent) error
	Recent(ctx context.Context, limit int) ([]*models.ExecutionIntent, error)
	Health(ctx context.Context) error
	Close() error
}

// StateRepository persists and restores per-symbol state across restarts.
// The core never requires it; the host wires it when durability matters.
type StateRepository interface {
	Save(ctx context.Context, st *models.SymbolState) error
	Load(ctx context.Context, symbol string) (*models.SymbolState, error)
	LoadAll(ctx context.Context) ([]*models.SymbolState, error)
	Close() error
}

// ProfileSource resolves static per-symbol calibration profiles.
type ProfileSource interface {
	Profile(symbol string) models.SymbolProfile
}

// Metrics is the pipeline's observability seam.
type Metrics interface {
	RecordIntent(setupType, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordRelax(v float64)
	RecordShortlist(n int)
	RecordActiveSetups(n int)
}

// CycleClock yields bar-close instants. Split out so tests can drive the
// pipeline without real time.
type CycleClock interface {
	Next(ctx context.Context) (time.Time, error)
}
