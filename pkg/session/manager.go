package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quickfin/loanvoice/internal/logging"
	"github.com/quickfin/loanvoice/pkg/domain"
	"github.com/quickfin/loanvoice/pkg/ports"
)

// lockEntry holds one session's mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager implements ports.Registry over a SnapshotStore, serializing
// concurrent access per session. It uses reference counting to garbage
// collect unused locks.
type Manager struct {
	store ports.SnapshotStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for internal events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session registry backed by the given store.
func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count, deleting the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// withLock executes fn while holding the session's lock.
func (m *Manager) withLock(sessionID string, fn func() error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()
	return fn()
}

// Register stores the initial snapshot for a new call.
func (m *Manager) Register(ctx context.Context, snap domain.Snapshot) error {
	return m.withLock(snap.SessionID, func() error {
		if err := m.store.Save(ctx, snap); err != nil {
			return fmt.Errorf("failed to register session: %w", err)
		}
		return nil
	})
}

// UpdateCurrentNode records a node advancement for observers. Unknown
// session IDs are a no-op: a call that disconnected mid-turn may still emit
// one trailing update, and that must never error.
func (m *Manager) UpdateCurrentNode(ctx context.Context, sessionID, nodeID string, state map[string]string) error {
	return m.withLock(sessionID, func() error {
		snap, err := m.store.Load(ctx, sessionID)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				m.logger.Debug("dropping stale node update", "session_id", sessionID, "node_id", nodeID)
				return nil
			}
			return fmt.Errorf("failed to load session: %w", err)
		}

		snap.CurrentNodeID = nodeID
		if state != nil {
			snap.State = state
		}
		if err := m.store.Save(ctx, snap); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return nil
	})
}

// Get returns the snapshot for a session, or domain.ErrSessionNotFound.
func (m *Manager) Get(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.withLock(sessionID, func() error {
		var err error
		snap, err = m.store.Load(ctx, sessionID)
		return err
	})
	return snap, err
}

// Remove deletes the session. Removing an unknown ID is a no-op.
func (m *Manager) Remove(ctx context.Context, sessionID string) error {
	return m.withLock(sessionID, func() error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List returns the IDs of all registered sessions.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}
