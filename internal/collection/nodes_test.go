package collection_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickfin/loanvoice/internal/collection"
	"github.com/quickfin/loanvoice/internal/runtime"
	"github.com/quickfin/loanvoice/pkg/adapters/memory"
	"github.com/quickfin/loanvoice/pkg/domain"
	"github.com/quickfin/loanvoice/pkg/flow"
	"github.com/quickfin/loanvoice/pkg/session"
)

func newGraph(t *testing.T) *flow.Graph {
	t.Helper()
	g, err := collection.NewGraph(collection.DefaultBorrower)
	require.NoError(t, err)
	return g
}

func TestNewGraph_Valid(t *testing.T) {
	g := newGraph(t)
	assert.Equal(t, collection.NodeGreeting, g.Entry())
	assert.Equal(t, 9, g.Len())

	// Building twice yields independent graphs with identical static content.
	g2 := newGraph(t)
	for _, n := range g.Nodes() {
		n2, ok := g2.Node(n.ID)
		require.True(t, ok)
		assert.Equal(t, n.Prompt, n2.Prompt)
		assert.Equal(t, len(n.Transitions), len(n2.Transitions))
	}
}

func TestNewGraph_TerminalsEndConversation(t *testing.T) {
	g := newGraph(t)
	for _, id := range []string{collection.NodeEnd, collection.NodeWrongPersonEnd, collection.NodeCallbackEnd} {
		n, ok := g.Node(id)
		require.True(t, ok, id)
		assert.True(t, n.Terminal(), id)
		assert.True(t, n.EndsConversation(), id)
	}
}

// startCall is a helper that boots an engine with a registry and starts one
// session at the greeting node.
func startCall(t *testing.T) (*runtime.Engine, *session.Manager, context.Context) {
	t.Helper()
	registry := session.NewManager(memory.NewStore())
	eng := runtime.New(newGraph(t), runtime.WithRegistry(registry))
	ctx := context.Background()
	_, err := eng.StartSession(ctx, "call-1", "deepgram")
	require.NoError(t, err)
	return eng, registry, ctx
}

func invoke(t *testing.T, eng *runtime.Engine, ctx context.Context, name string, args domain.Args) runtime.Result {
	t.Helper()
	res, err := eng.Invoke(ctx, "call-1", name, args)
	require.NoError(t, err)
	return res
}

func TestFlow_ConfirmIdentity(t *testing.T) {
	eng, _, ctx := startCall(t)

	res := invoke(t, eng, ctx, "confirm_identity", nil)
	assert.Equal(t, collection.NodeOverdueInfo, res.Node.ID)

	snap, err := eng.Snapshot("call-1")
	require.NoError(t, err)
	assert.Equal(t, "true", snap.State[collection.KeyIdentityConfirmed])
}

func TestFlow_DenyIdentityEndsCall(t *testing.T) {
	eng, registry, ctx := startCall(t)

	res := invoke(t, eng, ctx, "deny_identity", nil)
	assert.Equal(t, collection.NodeWrongPersonEnd, res.Node.ID)
	assert.True(t, res.Done)

	// The registry retains the final node until the call tears down.
	snap, err := registry.Get(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, collection.NodeWrongPersonEnd, snap.CurrentNodeID)
}

func TestFlow_RecordSituation(t *testing.T) {
	eng, _, ctx := startCall(t)

	invoke(t, eng, ctx, "confirm_identity", nil)
	invoke(t, eng, ctx, "acknowledge_overdue", nil)

	res := invoke(t, eng, ctx, "record_situation", domain.Args{"reason": "lost job"})
	assert.Equal(t, collection.NodePaymentOptions, res.Node.ID)

	snap, err := eng.Snapshot("call-1")
	require.NoError(t, err)
	assert.Equal(t, "lost job", snap.State[collection.KeyReason])
}

func TestFlow_RecordSituationRequiresReason(t *testing.T) {
	eng, _, ctx := startCall(t)

	invoke(t, eng, ctx, "confirm_identity", nil)
	invoke(t, eng, ctx, "acknowledge_overdue", nil)

	_, err := eng.Invoke(ctx, "call-1", "record_situation", nil)
	var missing *domain.MissingArgumentError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "reason", missing.Param)

	snap, err := eng.Snapshot("call-1")
	require.NoError(t, err)
	assert.Equal(t, collection.NodeUnderstandSituation, snap.CurrentNodeID)
	_, hasReason := snap.State[collection.KeyReason]
	assert.False(t, hasReason)
}

func TestFlow_PartialPlanToPTP(t *testing.T) {
	eng, _, ctx := startCall(t)

	invoke(t, eng, ctx, "confirm_identity", nil)
	invoke(t, eng, ctx, "acknowledge_overdue", nil)
	invoke(t, eng, ctx, "record_situation", domain.Args{"reason": "salary delayed"})

	res := invoke(t, eng, ctx, "select_partial_plan", nil)
	assert.Equal(t, collection.NodeCommitment, res.Node.ID)

	snap, err := eng.Snapshot("call-1")
	require.NoError(t, err)
	assert.Equal(t, "Rs. 5,000 now + remaining in 2 installments", snap.State[collection.KeyPlan])

	res = invoke(t, eng, ctx, "confirm_commitment", domain.Args{"payment_date": "Feb 10"})
	assert.Equal(t, collection.NodePromiseToPay, res.Node.ID)

	snap, err = eng.Snapshot("call-1")
	require.NoError(t, err)
	assert.Equal(t, "Feb 10", snap.State[collection.KeyPaymentDate])
}

func TestFlow_RevisePlanBackEdgeRetainsState(t *testing.T) {
	eng, _, ctx := startCall(t)

	invoke(t, eng, ctx, "confirm_identity", nil)
	invoke(t, eng, ctx, "acknowledge_overdue", nil)
	invoke(t, eng, ctx, "record_situation", domain.Args{"reason": "medical expenses"})
	invoke(t, eng, ctx, "select_partial_plan", nil)
	invoke(t, eng, ctx, "confirm_commitment", domain.Args{"payment_date": "Feb 10"})

	// Back-edge: the borrower changes their mind before confirming.
	res := invoke(t, eng, ctx, "revise_plan", nil)
	assert.Equal(t, collection.NodePaymentOptions, res.Node.ID)
	assert.False(t, res.Done)

	// Prior-pass facts stay readable until overwritten.
	snap, err := eng.Snapshot("call-1")
	require.NoError(t, err)
	assert.Equal(t, collection.PlanPartial, snap.State[collection.KeyPlan])
	assert.Equal(t, "Feb 10", snap.State[collection.KeyPaymentDate])

	// Second pass overwrites the plan.
	invoke(t, eng, ctx, "select_single_emi", nil)
	snap, err = eng.Snapshot("call-1")
	require.NoError(t, err)
	assert.Equal(t, collection.PlanSingleEMI, snap.State[collection.KeyPlan])
	assert.Equal(t, "Feb 10", snap.State[collection.KeyPaymentDate], "unrelated keys untouched")
}

func TestFlow_ConfirmPTPCompletesCall(t *testing.T) {
	eng, registry, ctx := startCall(t)

	invoke(t, eng, ctx, "confirm_identity", nil)
	invoke(t, eng, ctx, "acknowledge_overdue", nil)
	invoke(t, eng, ctx, "record_situation", domain.Args{"reason": "lost job"})
	invoke(t, eng, ctx, "select_full_payment", nil)
	invoke(t, eng, ctx, "confirm_commitment", domain.Args{"payment_date": "March 1"})

	res := invoke(t, eng, ctx, "confirm_ptp", nil)
	assert.Equal(t, collection.NodeEnd, res.Node.ID)
	assert.True(t, res.Done)

	snap, err := registry.Get(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, collection.NodeEnd, snap.CurrentNodeID)
	assert.Equal(t, "true", snap.State[collection.KeyPTPConfirmed])

	// After teardown the session accepts no further invokes.
	require.NoError(t, eng.EndSession(ctx, "call-1"))
	_, err = eng.Invoke(ctx, "call-1", "confirm_ptp", nil)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestFlow_ConfirmPTPWithoutPlanRoutesBack(t *testing.T) {
	// confirm_ptp is conditionally branching: without a plan on record it
	// refuses to close and routes back to the options node.
	g := newGraph(t)
	node, ok := g.Node(collection.NodePromiseToPay)
	require.True(t, ok)
	tr, ok := node.Transition("confirm_ptp")
	require.True(t, ok)

	sess := domain.NewSession("s", collection.NodePromiseToPay, "")
	narration, next, err := tr.Handler(nil, sess)
	require.NoError(t, err)
	assert.Equal(t, collection.NodePaymentOptions, next)
	assert.Contains(t, narration, "no plan")
}

func TestFlow_RequestCallbackIsPerNodeScoped(t *testing.T) {
	// request_callback is declared on three nodes with distinct handlers;
	// per-node scoping means each invocation runs its own node's handler.
	eng, _, ctx := startCall(t)

	res := invoke(t, eng, ctx, "request_callback", domain.Args{"callback_time": "kal subah"})
	assert.Equal(t, collection.NodeCallbackEnd, res.Node.ID)
	assert.True(t, res.Done)

	snap, err := eng.Snapshot("call-1")
	require.NoError(t, err)
	assert.Equal(t, "true", snap.State[collection.KeyCallbackRequested])
	assert.Equal(t, "kal subah", snap.State[collection.KeyCallbackTime])
}

func TestFlow_CallbackTimeDefaultsWhenAbsent(t *testing.T) {
	eng, _, ctx := startCall(t)

	res := invoke(t, eng, ctx, "request_callback", nil)
	assert.Equal(t, collection.NodeCallbackEnd, res.Node.ID)

	snap, err := eng.Snapshot("call-1")
	require.NoError(t, err)
	assert.Equal(t, "not specified", snap.State[collection.KeyCallbackTime])
}
