// Package runtime implements the flow engine: per-call session state and
// transition dispatch over a validated conversation graph.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/quickfin/loanvoice/internal/logging"
	"github.com/quickfin/loanvoice/internal/metrics"
	"github.com/quickfin/loanvoice/pkg/domain"
	"github.com/quickfin/loanvoice/pkg/flow"
	"github.com/quickfin/loanvoice/pkg/ports"
)

// Engine drives conversation sessions over a flow graph. One engine serves
// all calls of the process; sessions are isolated and invocations are
// serialized per session.
type Engine struct {
	graph    *flow.Graph
	registry ports.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// sessionEntry pairs a live session with its invocation lock.
type sessionEntry struct {
	mu   sync.Mutex
	sess *domain.Session
}

// Option configures the Engine.
type Option func(*Engine)

// WithRegistry publishes session progress to the given registry.
func WithRegistry(r ports.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithLogger configures the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics instruments transition dispatch.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine over the given graph.
func New(g *flow.Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:    g,
		logger:   logging.NewNop(),
		sessions: make(map[string]*sessionEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result reports the outcome of an invocation.
type Result struct {
	// Narration is a short audit string describing what happened.
	Narration string

	// Node is the node that became current.
	Node domain.Node

	// Done indicates the new node ends the conversation; the caller should
	// speak the node's prompt and then terminate the call.
	Done bool
}

// StartSession creates a session at the graph's entry node and registers it
// with the session registry.
func (e *Engine) StartSession(ctx context.Context, sessionID, voiceBackend string) (domain.View, error) {
	sess := domain.NewSession(sessionID, e.graph.Entry(), voiceBackend)

	e.mu.Lock()
	if _, exists := e.sessions[sessionID]; exists {
		e.mu.Unlock()
		return domain.View{}, fmt.Errorf("session %q already exists", sessionID)
	}
	e.sessions[sessionID] = &sessionEntry{sess: sess}
	e.mu.Unlock()

	if e.registry != nil {
		if err := e.registry.Register(ctx, sess.Snapshot()); err != nil {
			e.logger.Warn("failed to register session", "session_id", sessionID, "err", err)
		}
	}

	e.logger.Info("session started", "session_id", sessionID, "node", sess.CurrentNodeID, "voice", voiceBackend)

	entry, _ := e.graph.Node(sess.CurrentNodeID)
	return domain.ViewOf(entry), nil
}

// Describe returns the driver-facing view of the session's current node.
func (e *Engine) Describe(sessionID string) (domain.View, error) {
	entry, err := e.lookup(sessionID)
	if err != nil {
		return domain.View{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	node, ok := e.graph.Node(entry.sess.CurrentNodeID)
	if !ok {
		return domain.View{}, fmt.Errorf("session %q is on unknown node %q", sessionID, entry.sess.CurrentNodeID)
	}
	return domain.ViewOf(node), nil
}

// Snapshot returns the observer view of the live session.
func (e *Engine) Snapshot(sessionID string) (domain.Snapshot, error) {
	entry, err := e.lookup(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.sess.Snapshot(), nil
}

// Invoke executes the named transition on the session's current node.
//
// The transition must be declared on the current node and all required
// arguments must be present; either violation leaves the session unchanged.
// On success the session advances to the handler's chosen node and the
// registry is notified.
func (e *Engine) Invoke(ctx context.Context, sessionID, name string, args domain.Args) (Result, error) {
	entry, err := e.lookup(sessionID)
	if err != nil {
		return Result{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	sess := entry.sess
	current, ok := e.graph.Node(sess.CurrentNodeID)
	if !ok {
		return Result{}, fmt.Errorf("session %q is on unknown node %q", sessionID, sess.CurrentNodeID)
	}

	transition, ok := current.Transition(name)
	if !ok {
		e.countError("invalid_transition")
		return Result{}, &domain.InvalidTransitionError{NodeID: current.ID, Transition: name}
	}

	if missing := missingRequired(transition, args); missing != "" {
		e.countError("missing_argument")
		return Result{}, &domain.MissingArgumentError{Transition: name, Param: missing}
	}

	narration, nextID, err := transition.Handler(args, sess)
	if err != nil {
		e.countError("handler")
		return Result{}, fmt.Errorf("transition %q on node %q failed: %w", name, current.ID, err)
	}

	next, ok := e.graph.Node(nextID)
	if !ok {
		e.countError("unknown_target")
		return Result{}, fmt.Errorf("transition %q on node %q returned unknown node %q", name, current.ID, nextID)
	}

	sess.CurrentNodeID = next.ID
	sess.History = append(sess.History, next.ID)

	if e.metrics != nil {
		e.metrics.Transitions.WithLabelValues(current.ID, name).Inc()
	}
	if e.registry != nil {
		snap := sess.Snapshot()
		if err := e.registry.UpdateCurrentNode(ctx, sessionID, next.ID, snap.State); err != nil {
			e.logger.Warn("failed to publish node update", "session_id", sessionID, "err", err)
		}
	}

	done := next.EndsConversation()
	e.logger.Info("transition invoked",
		"session_id", sessionID,
		"from", current.ID,
		"transition", name,
		"to", next.ID,
		"narration", narration,
		"done", done,
	)

	return Result{Narration: narration, Node: next, Done: done}, nil
}

// EndSession discards the session's in-memory state and removes it from the
// registry. Ending an unknown session is a no-op.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	_, exists := e.sessions[sessionID]
	delete(e.sessions, sessionID)
	e.mu.Unlock()

	if !exists {
		return nil
	}

	if e.registry != nil {
		if err := e.registry.Remove(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to remove session from registry: %w", err)
		}
	}
	e.logger.Info("session ended", "session_id", sessionID)
	return nil
}

// Graph exposes the underlying graph for introspection (visualization,
// dashboard node lists).
func (e *Engine) Graph() *flow.Graph {
	return e.graph
}

func (e *Engine) lookup(sessionID string) (*sessionEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, domain.ErrSessionNotFound)
	}
	return entry, nil
}

func (e *Engine) countError(kind string) {
	if e.metrics != nil {
		e.metrics.FlowErrors.WithLabelValues(kind).Inc()
	}
}

// missingRequired returns the first required parameter absent from args, in
// lexical order so the error is deterministic.
func missingRequired(t domain.Transition, args domain.Args) string {
	required := t.RequiredParams()
	sort.Strings(required)
	for _, name := range required {
		if v, ok := args[name]; !ok || v == "" {
			return name
		}
	}
	return ""
}
