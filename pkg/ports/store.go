package ports

import (
	"context"

	"github.com/quickfin/loanvoice/pkg/domain"
)

// SnapshotStore persists observer-facing session snapshots.
type SnapshotStore interface {
	// Save persists the snapshot under its session ID.
	Save(ctx context.Context, snap domain.Snapshot) error

	// Load retrieves the snapshot for a session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (domain.Snapshot, error)

	// Delete removes the snapshot. Deleting an unknown ID is a no-op.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}

// Registry is the session registry contract the flow engine publishes to and
// observers (dashboard) read from. Updates against unknown session IDs are
// no-ops so stale notifications never error.
type Registry interface {
	Register(ctx context.Context, snap domain.Snapshot) error
	UpdateCurrentNode(ctx context.Context, sessionID, nodeID string, state map[string]string) error
	Get(ctx context.Context, sessionID string) (domain.Snapshot, error)
	Remove(ctx context.Context, sessionID string) error
}
