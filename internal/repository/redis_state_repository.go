package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Sniper/internal/domain/models"
	"Sniper/pkg/cache"
)

// stateTTL keeps stale symbol records from outliving a dead deployment.
const stateTTL = 7 * 24 * time.Hour

// setupEnvelope serializes the active-setup union. Exactly one concrete
// field is set, matching Type.
type setupEnvelope struct {
	Type models.SetupType `json:"type"`
	TPR  *models.TPRSetup `json:"tpr,omitempty"`
	RBH  *models.RBHSetup `json:"rbh,omitempty"`
	ECR  *models.ECRSetup `json:"ecr,omitempty"`
}

func envelope(s models.Setup) *setupEnvelope {
	switch v := s.(type) {
	case *models.TPRSetup:
		return &setupEnvelope{Type: models.SetupTPR, TPR: v}
	case *models.RBHSetup:
		return &setupEnvelope{Type: models.SetupRBH, RBH: v}
	case *models.ECRSetup:
		return &setupEnvelope{Type: models.SetupECR, ECR: v}
	}
	return nil
}

func (e *setupEnvelope) setup() models.Setup {
	if e == nil {
		return nil
	}
	switch e.Type {
	case models.SetupTPR:
		if e.TPR != nil {
			return e.TPR
		}
	case models.SetupRBH:
		if e.RBH != nil {
			return e.RBH
		}
	case models.SetupECR:
		if e.ECR != nil {
			return e.ECR
		}
	}
	return nil
}

type stateDoc struct {
	Symbol           string         `json:"symbol"`
	Regime           models.Regime  `json:"regime"`
	RegimeStreak     int            `json:"regime_streak"`
	RegimeConfidence float64        `json:"regime_confidence"`
	Setup            *setupEnvelope `json:"setup,omitempty"`
	LastSignalTime   time.Time      `json:"last_signal_time"`
	LastBarTime      time.Time      `json:"last_bar_time"`
}

// RedisStateRepository persists per-symbol state so restarts keep
// hysteresis streaks and live setups. Keys are prefix+symbol; the
// universe comes from config, so LoadAll is a multi-get over it.
type RedisStateRepository struct {
	c       cache.Service
	prefix  string
	symbols []string
}

func NewRedisStateRepository(c cache.Service, prefix string, symbols []string) *RedisStateRepository {
	return &RedisStateRepository{c: c, prefix: prefix, symbols: symbols}
}

func (r *RedisStateRepository) key(symbol string) string { return cache.GenerateKey(r.prefix, symbol) }

func (r *RedisStateRepository) Save(ctx context.Context, st *models.SymbolState) error {
	doc := stateDoc{
		Symbol:           st.Symbol,
		Regime:           st.Regime,
		RegimeStreak:     st.RegimeStreak,
		RegimeConfidence: st.RegimeConfidence,
		Setup:            envelope(st.Active),
		LastSignalTime:   st.LastSignalTime,
		LastBarTime:      st.LastBarTime,
	}
	if err := r.c.Set(ctx, r.key(st.Symbol), doc, stateTTL); err != nil {
		return fmt.Errorf("save state %s: %w", st.Symbol, err)
	}
	return nil
}

func (r *RedisStateRepository) Load(ctx context.Context, symbol string) (*models.SymbolState, error) {
	var doc stateDoc
	if err := r.c.Get(ctx, r.key(symbol), &doc); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load state %s: %w", symbol, err)
	}
	return docToState(doc), nil
}

func (r *RedisStateRepository) LoadAll(ctx context.Context) ([]*models.SymbolState, error) {
	keys := make([]string, len(r.symbols))
	for i, s := range r.symbols {
		keys[i] = r.key(s)
	}
	docs, err := cache.MGetTyped[stateDoc](ctx, r.c, keys...)
	if err != nil {
		return nil, fmt.Errorf("load states: %w", err)
	}
	out := make([]*models.SymbolState, 0, len(docs))
	for _, doc := range docs {
		if doc.Symbol == "" {
			continue
		}
		out = append(out, docToState(doc))
	}
	return out, nil
}

func (r *RedisStateRepository) Close() error { return nil }

func docToState(doc stateDoc) *models.SymbolState {
	return &models.SymbolState{
		Symbol:           doc.Symbol,
		Regime:           doc.Regime,
		RegimeStreak:     doc.RegimeStreak,
		RegimeConfidence: doc.RegimeConfidence,
		Active:           doc.Setup.setup(),
		LastSignalTime:   doc.LastSignalTime,
		LastBarTime:      doc.LastBarTime,
	}
}
