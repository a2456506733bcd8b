package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"LiqSweep/internal/domain/models"
	domrepo "LiqSweep/internal/domain/repository"
	"LiqSweep/pkg/cache"
)

// ErrStateLocked is returned when another writer holds the symbol's state.
var ErrStateLocked = errors.New("day state locked by another writer")

// StateStore keeps DayState as JSON in a cache.Service (Redis in
// production, memory in tests).
type StateStore struct {
	c       cache.Service
	ttl     time.Duration
	lockTTL time.Duration
}

func NewStateStore(c cache.Service, ttl time.Duration) *StateStore {
	return &StateStore{c: c, ttl: ttl, lockTTL: 5 * time.Second}
}

func stateKey(symbol string) string { return cache.Key("state", symbol) }

func lockKey(symbol string) string { return cache.Key("state", symbol, "lock") }

// Load returns nil without error when nothing was saved for symbol.
func (s *StateStore) Load(ctx context.Context, symbol string) (*models.DayState, error) {
	raw, err := s.c.Get(ctx, stateKey(symbol))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load state %s: %w", symbol, err)
	}
	var st models.DayState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", symbol, err)
	}
	return &st, nil
}

func (s *StateStore) Save(ctx context.Context, st *models.DayState) error {
	if st == nil || st.Symbol == "" {
		return fmt.Errorf("state without symbol")
	}
	token, ok, err := s.c.TryLock(ctx, lockKey(st.Symbol), s.lockTTL)
	if err != nil {
		return fmt.Errorf("lock state %s: %w", st.Symbol, err)
	}
	if !ok {
		return ErrStateLocked
	}
	defer func() { _ = s.c.Unlock(ctx, lockKey(st.Symbol), token) }()

	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", st.Symbol, err)
	}
	if err := s.c.Set(ctx, stateKey(st.Symbol), b, s.ttl); err != nil {
		return fmt.Errorf("save state %s: %w", st.Symbol, err)
	}
	return nil
}

var _ domrepo.StateStore = (*StateStore)(nil)
