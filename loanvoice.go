package loanvoice

import (
	"fmt"
	"log/slog"

	"github.com/quickfin/loanvoice/internal/collection"
	"github.com/quickfin/loanvoice/internal/logging"
	"github.com/quickfin/loanvoice/internal/metrics"
	"github.com/quickfin/loanvoice/internal/runtime"
	"github.com/quickfin/loanvoice/pkg/adapters/memory"
	"github.com/quickfin/loanvoice/pkg/flow"
	"github.com/quickfin/loanvoice/pkg/ports"
	"github.com/quickfin/loanvoice/pkg/session"
)

// Version is the release version, overridable at build time via -ldflags.
var Version = "0.1.0"

// Service bundles the conversation engine with its graph and registry.
type Service struct {
	Engine   *runtime.Engine
	Graph    *flow.Graph
	Registry ports.Registry
}

// Option configures the service.
type Option func(*settings)

type settings struct {
	borrower collection.Borrower
	registry ports.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// WithBorrower sets the account the collection flow is built around.
func WithBorrower(b collection.Borrower) Option {
	return func(s *settings) { s.borrower = b }
}

// WithRegistry injects a session registry (e.g. Redis-backed) instead of the
// default in-memory one.
func WithRegistry(r ports.Registry) Option {
	return func(s *settings) { s.registry = r }
}

// WithLogger sets a structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMetrics attaches Prometheus metrics to the engine.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// New builds the collection flow and its engine.
func New(opts ...Option) (*Service, error) {
	s := settings{
		borrower: collection.DefaultBorrower,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.registry == nil {
		s.registry = session.NewManager(memory.NewStore(), session.WithLogger(s.logger))
	}

	graph, err := collection.NewGraph(s.borrower)
	if err != nil {
		return nil, fmt.Errorf("loanvoice: build flow: %w", err)
	}

	engineOpts := []runtime.Option{
		runtime.WithRegistry(s.registry),
		runtime.WithLogger(s.logger),
	}
	if s.metrics != nil {
		engineOpts = append(engineOpts, runtime.WithMetrics(s.metrics))
	}

	return &Service{
		Engine:   runtime.New(graph, engineOpts...),
		Graph:    graph,
		Registry: s.registry,
	}, nil
}
