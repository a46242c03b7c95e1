package store

import (
	"context"
	"sync"

	"ladder_maker/internal/core"
)

// MemoryStore keeps snapshots in memory, for tests and for runs with no
// state path configured.
type MemoryStore struct {
	states map[string]*core.StateSnapshot
	mu     sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*core.StateSnapshot)}
}

func (s *MemoryStore) Save(ctx context.Context, state *core.StateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.StrategyID] = state
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, strategyID string) (*core.StateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[strategyID], nil
}

// ForStrategy scopes the store to one strategy id.
func (s *MemoryStore) ForStrategy(strategyID string) core.IStateStore {
	return &scopedMemory{backend: s, strategyID: strategyID}
}

type scopedMemory struct {
	backend    *MemoryStore
	strategyID string
}

func (s *scopedMemory) SaveState(ctx context.Context, state *core.StateSnapshot) error {
	return s.backend.Save(ctx, state)
}

func (s *scopedMemory) LoadState(ctx context.Context) (*core.StateSnapshot, error) {
	return s.backend.Load(ctx, s.strategyID)
}
