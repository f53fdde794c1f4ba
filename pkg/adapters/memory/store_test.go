package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickfin/loanvoice/pkg/adapters/memory"
	"github.com/quickfin/loanvoice/pkg/domain"
)

func TestStore_SaveLoadDelete(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	snap := domain.Snapshot{
		SessionID:     "call-1",
		CurrentNodeID: "greeting",
		State:         map[string]string{"identity_confirmed": "true"},
		StartedAt:     time.Now(),
		VoiceBackend:  "deepgram",
	}

	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "greeting", got.CurrentNodeID)
	assert.Equal(t, "true", got.State["identity_confirmed"])

	require.NoError(t, store.Delete(ctx, "call-1"))
	_, err = store.Load(ctx, "call-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	snap := domain.Snapshot{
		SessionID: "call-1",
		State:     map[string]string{"plan": "full"},
	}
	require.NoError(t, store.Save(ctx, snap))

	// Mutating the caller's map must not leak into the store.
	snap.State["plan"] = "partial"

	got, err := store.Load(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "full", got.State["plan"])

	// Mutating a loaded snapshot must not leak either.
	got.State["plan"] = "partial"
	again, err := store.Load(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "full", again.State["plan"])
}

func TestStore_DeleteUnknownIsNoop(t *testing.T) {
	store := memory.NewStore()
	assert.NoError(t, store.Delete(context.Background(), "nope"))
}

func TestStore_List(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.Save(ctx, domain.Snapshot{SessionID: "a"}))
	require.NoError(t, store.Save(ctx, domain.Snapshot{SessionID: "b"}))

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
