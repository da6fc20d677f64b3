package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"Sniper/internal/domain/models"
	drepo "Sniper/internal/domain/repository"
	"Sniper/pkg/config"
	"Sniper/pkg/logger"
)

// Emitter turns trigger events into execution intents and hands them to
// the configured sink. The execution style decides the order mechanics:
// market styles enter at the trigger close, pending styles park an order
// at the setup's entry level, hybrid picks per trigger kind.
type Emitter struct {
	cfg     *config.Config
	log     *logger.Logger
	sink    drepo.IntentSink
	archive drepo.IntentArchive // nil when archiving is off
	metrics drepo.Metrics
}

// NewEmitter creates an Emitter. archive may be nil.
func NewEmitter(cfg *config.Config, log *logger.Logger, sink drepo.IntentSink, archive drepo.IntentArchive, metrics drepo.Metrics) *Emitter {
	return &Emitter{cfg: cfg, log: log, sink: sink, archive: archive, metrics: metrics}
}

// AllowIntrabar reports whether the execution style permits intrabar
// market entries.
func (e *Emitter) AllowIntrabar() bool {
	s := e.cfg.Execution.Style
	return s == "market_intrabar" || s == "hybrid"
}

// Close releases the downstream sink.
func (e *Emitter) Close() error { return e.sink.Close() }

// Emit builds the intent for trig and publishes it. One trigger, one
// intent; the sink owns delivery semantics.
func (e *Emitter) Emit(ctx context.Context, trig *models.TriggerEvent) (*models.ExecutionIntent, error) {
	if trig == nil || trig.Fired == nil {
		return nil, fmt.Errorf("trigger without fired setup")
	}
	intent := e.build(trig)

	start := time.Now()
	if err := e.sink.Emit(ctx, intent); err != nil {
		e.metrics.RecordError("intent_sink")
		return nil, fmt.Errorf("emit intent: %w", err)
	}
	e.metrics.RecordLatency("intent_emit", time.Since(start).Seconds())
	e.metrics.RecordIntent(string(intent.SetupType), intent.Symbol)

	if e.archive != nil {
		if err := e.archive.Store(ctx, intent); err != nil {
			// archive failure never blocks the signal path
			e.metrics.RecordError("intent_archive")
			e.log.Warn("intent archive failed", logger.String("symbol", intent.Symbol), logger.Error(err))
		}
	}

	e.log.Info("intent emitted",
		logger.String("id", intent.ID),
		logger.String("symbol", intent.Symbol),
		logger.String("setup", string(intent.SetupType)),
		logger.String("direction", string(intent.Direction)),
		logger.String("entry_type", string(intent.EntryType)),
		logger.Any("entry_price", intent.EntryPrice),
		logger.Any("risk_factor", intent.RiskFactor),
	)
	return intent, nil
}

func (e *Emitter) build(trig *models.TriggerEvent) *models.ExecutionIntent {
	core := trig.Fired.Core()
	entryType, entryPrice := e.entry(trig, core)

	expiry := 0
	if entryType != models.EntryMarket {
		expiry = e.cfg.Execution.PendingExpiryBars
	}

	risk := core.Confidence
	if trig.SetupType == models.SetupECR {
		// counter-trend risk is calibrated per asset class
		risk *= e.cfg.RiskMultiplier(trig.Symbol)
	}
	if risk > 1 {
		risk = 1
	}

	return &models.ExecutionIntent{
		ID:         uuid.NewString(),
		SetupType:  trig.SetupType,
		Symbol:     trig.Symbol,
		Direction:  trig.Direction,
		EntryType:  entryType,
		EntryPrice: entryPrice,
		StopLoss:   core.StopLoss,
		TP1:        core.TakeProfit1,
		TP2:        core.TakeProfit2,
		ExpiryBars: expiry,
		RiskFactor: risk,
		CreatedAt:  trig.Time,
		Reasons:    trig.Reasons,
	}
}

// entry maps the execution style and trigger kind onto order mechanics.
func (e *Emitter) entry(trig *models.TriggerEvent, core *models.SetupCore) (models.EntryType, float64) {
	style := e.cfg.Execution.Style
	if style == "market_close" || style == "market_intrabar" || trig.Intrabar {
		return models.EntryMarket, trig.Price
	}

	// pending and hybrid
	switch trig.SetupType {
	case models.SetupTPR:
		if len(trig.Reasons) > 0 && trig.Reasons[0] == "tpr_rejection_wick" {
			if style == "hybrid" {
				// rejection entries are already at a good price
				return models.EntryMarket, trig.Price
			}
			return models.EntryPendingStop, core.TriggerLevel
		}
		return models.EntryPendingStop, core.TriggerLevel
	case models.SetupRBH:
		return models.EntryPendingLimit, core.TriggerLevel
	case models.SetupECR:
		return models.EntryPendingLimit, trig.Price
	}
	return models.EntryMarket, trig.Price
}
