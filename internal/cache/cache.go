package cache

import (
	"context"
	"sync"
	"time"

	"github.com/example/ride-tracker/internal/models"
)

// CachedState is the persisted slice of the engine's sync state: enough to
// resume a ride after a cold start, nothing more. Connectivity and the
// staleness clock are runtime-only and rebuilt on resume.
type CachedState struct {
	Snapshot          models.RideSnapshot `json:"snapshot"`
	LastAppliedStatus models.RideStatus   `json:"last_applied_status"`
	SavedAt           time.Time           `json:"saved_at"`
}

// Cache is best-effort durable persistence keyed by ride id. Implementations
// must tolerate failures; callers swallow errors and never treat them as
// fatal. The cache is not a source of truth: a live fetch always overwrites
// whatever was loaded.
type Cache interface {
	Save(ctx context.Context, rideID string, st CachedState) error
	Load(ctx context.Context, rideID string) (CachedState, bool, error)
	Clear(ctx context.Context, rideID string) error
}

// Memory is an in-process Cache used in tests and offline-only runs.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]CachedState
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]CachedState)}
}

func (m *Memory) Save(_ context.Context, rideID string, st CachedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[rideID] = st
	return nil
}

func (m *Memory) Load(_ context.Context, rideID string) (CachedState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.entries[rideID]
	return st, ok, nil
}

func (m *Memory) Clear(_ context.Context, rideID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, rideID)
	return nil
}
