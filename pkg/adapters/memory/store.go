// Package memory provides the in-memory snapshot store used for single
// process deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/quickfin/loanvoice/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]domain.Snapshot
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Snapshot),
	}
}

// Save persists the snapshot. The state bag is copied so later mutation of
// the caller's map cannot leak into the store.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	copied := snap
	copied.State = make(map[string]string, len(snap.State))
	for k, v := range snap.State {
		copied.State[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.SessionID] = copied
	return nil
}

// Load retrieves the snapshot, copying the state bag on the way out.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[sessionID]
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}

	ret := snap
	ret.State = make(map[string]string, len(snap.State))
	for k, v := range snap.State {
		ret.State[k] = v
	}
	return ret, nil
}

// Delete removes the snapshot. Unknown IDs are a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the IDs of stored sessions.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
