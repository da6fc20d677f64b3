package usecase

import (
	"context"
	"fmt"
	"sync"

	"Sniper/internal/domain/models"
	drepo "Sniper/internal/domain/repository"
)

// StateStore keeps the per-symbol state records. States are created
// lazily on first sighting and optionally persisted through a
// StateRepository so restarts keep hysteresis streaks and live setups.
type StateStore struct {
	mu     sync.Mutex
	states map[string]*models.SymbolState
	repo   drepo.StateRepository // nil means memory only
}

// NewStateStore creates a StateStore. repo may be nil.
func NewStateStore(repo drepo.StateRepository) *StateStore {
	return &StateStore{
		states: make(map[string]*models.SymbolState),
		repo:   repo,
	}
}

// Restore loads persisted states into memory. Safe to call on an empty
// backend.
func (s *StateStore) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	all, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("restore states: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range all {
		s.states[st.Symbol] = st
	}
	return nil
}

// Get returns the state for symbol, creating it on first sighting.
func (s *StateStore) Get(symbol string) *models.SymbolState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[symbol]
	if !ok {
		st = &models.SymbolState{Symbol: symbol}
		s.states[symbol] = st
	}
	return st
}

// Peek returns the state for symbol without creating one.
func (s *StateStore) Peek(symbol string) (*models.SymbolState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[symbol]
	return st, ok
}

// ActiveSetups returns the states currently holding a setup.
func (s *StateStore) ActiveSetups() []*models.SymbolState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SymbolState
	for _, st := range s.states {
		if st.Active != nil {
			out = append(out, st)
		}
	}
	return out
}

// Persist writes the state for symbol through the repository when one is
// configured.
func (s *StateStore) Persist(ctx context.Context, st *models.SymbolState) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(ctx, st); err != nil {
		return fmt.Errorf("persist state %s: %w", st.Symbol, err)
	}
	return nil
}

// Close releases the backing repository.
func (s *StateStore) Close() error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Close()
}
