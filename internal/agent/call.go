// Package agent runs one voice call end to end: final transcripts go to the
// decision driver, chosen transitions go through the flow engine, and the
// reply text is synthesized back into the audio path.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quickfin/loanvoice/internal/logging"
	"github.com/quickfin/loanvoice/internal/metrics"
	"github.com/quickfin/loanvoice/internal/runtime"
	"github.com/quickfin/loanvoice/pkg/domain"
	"github.com/quickfin/loanvoice/pkg/ports"
)

const defaultRecoveryLine = "Maaf kijiye, thoda network issue tha. Aap kya keh rahe the?"

// Config wires one call's collaborators.
type Config struct {
	SessionID    string
	VoiceBackend string

	Engine      *runtime.Engine
	Driver      ports.Driver
	Transcriber ports.Transcriber
	Synthesizer ports.Synthesizer

	// Sink receives synthesized PCM chunks for the outbound audio path.
	Sink func(pcm []byte)

	// OnDone fires once when the conversation reaches a terminal node or the
	// call is closed, so the transport can tear the connection down.
	OnDone func()

	// RecoveryLine is spoken when a turn fails. Empty selects the default.
	RecoveryLine string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Call orchestrates a single live conversation.
type Call struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	history []domain.Message

	started  time.Time
	done     chan struct{}
	teardown sync.Once
}

// NewCall validates the wiring and builds a call.
func NewCall(cfg Config) (*Call, error) {
	switch {
	case cfg.SessionID == "":
		return nil, fmt.Errorf("agent: session id required")
	case cfg.Engine == nil:
		return nil, fmt.Errorf("agent: engine required")
	case cfg.Driver == nil:
		return nil, fmt.Errorf("agent: driver required")
	case cfg.Transcriber == nil:
		return nil, fmt.Errorf("agent: transcriber required")
	case cfg.Synthesizer == nil:
		return nil, fmt.Errorf("agent: synthesizer required")
	case cfg.Sink == nil:
		return nil, fmt.Errorf("agent: audio sink required")
	}
	if cfg.RecoveryLine == "" {
		cfg.RecoveryLine = defaultRecoveryLine
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	return &Call{
		cfg:    cfg,
		logger: cfg.Logger.With("session_id", cfg.SessionID),
		done:   make(chan struct{}),
	}, nil
}

// Start opens the flow session and the STT stream, speaks the opening line,
// then consumes transcripts until the conversation ends or ctx is canceled.
func (c *Call) Start(ctx context.Context) error {
	if _, err := c.cfg.Engine.StartSession(ctx, c.cfg.SessionID, c.cfg.VoiceBackend); err != nil {
		return fmt.Errorf("agent: start session: %w", err)
	}
	if err := c.cfg.Transcriber.Connect(ctx); err != nil {
		_ = c.cfg.Engine.EndSession(ctx, c.cfg.SessionID)
		return fmt.Errorf("agent: connect stt: %w", err)
	}

	c.started = time.Now()
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ActiveCalls.Inc()
	}

	go c.run(ctx)
	return nil
}

// Done is closed when the call has ended.
func (c *Call) Done() <-chan struct{} { return c.done }

// SendPCM forwards microphone audio to the STT stream. Audio arriving after
// the call ended is dropped.
func (c *Call) SendPCM(pcm []byte) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	return c.cfg.Transcriber.SendPCM(pcm)
}

// Transcript returns a copy of the conversation so far.
func (c *Call) Transcript() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Close ends the call. Safe to call more than once.
func (c *Call) Close() {
	c.finish(context.Background())
}

func (c *Call) run(ctx context.Context) {
	// Opening turn: the borrower has not spoken yet.
	c.turn(ctx, "")

	for {
		select {
		case <-ctx.Done():
			c.finish(context.Background())
			return
		case <-c.done:
			return
		case tr, ok := <-c.cfg.Transcriber.Transcripts():
			if !ok {
				c.finish(ctx)
				return
			}
			if !tr.Final {
				continue
			}
			c.logger.Info("utterance", "text", tr.Text)
			c.turn(ctx, tr.Text)
		}
	}
}

// turn runs one decision cycle for an utterance. An empty utterance is the
// opening turn.
func (c *Call) turn(ctx context.Context, utterance string) {
	view, err := c.cfg.Engine.Describe(c.cfg.SessionID)
	if err != nil {
		c.logger.Warn("turn on dead session", "err", err)
		c.finish(ctx)
		return
	}

	// The driver owns appending the utterance to the request, so the history
	// it receives must stop before it.
	history := c.Transcript()
	if utterance != "" {
		c.append(domain.RoleUser, utterance)
	}

	start := time.Now()
	decision, err := c.cfg.Driver.Decide(ctx, view, history, utterance)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.DriverLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.logger.Error("driver decision failed", "err", err)
		c.speak(ctx, c.cfg.RecoveryLine)
		return
	}

	spoken := decision.Say
	ended := false
	if decision.Transition != "" {
		result, err := c.cfg.Engine.Invoke(ctx, c.cfg.SessionID, decision.Transition, decision.Args)
		if err != nil {
			c.logger.Warn("transition rejected", "transition", decision.Transition, "err", err)
			c.speak(ctx, c.cfg.RecoveryLine)
			return
		}
		c.logger.Info("transition", "name", decision.Transition, "node", result.Node.ID)
		if spoken == "" {
			spoken = result.Narration
		}
		ended = result.Done
	}

	if spoken != "" {
		c.append(domain.RoleModel, spoken)
		c.speak(ctx, spoken)
	}
	if ended {
		c.finish(ctx)
	}
}

// speak synthesizes text and feeds the PCM to the sink. Blocks until the
// synthesis stream ends.
func (c *Call) speak(ctx context.Context, text string) {
	pcmCh, errCh := c.cfg.Synthesizer.Synthesize(ctx, text)
	for chunk := range pcmCh {
		c.cfg.Sink(chunk)
	}
	if err, ok := <-errCh; ok && err != nil {
		c.logger.Error("synthesis failed", "err", err)
	}
}

func (c *Call) append(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, domain.Message{Role: role, Content: content, At: time.Now()})
}

func (c *Call) finish(ctx context.Context) {
	c.teardown.Do(func() {
		close(c.done)
		_ = c.cfg.Transcriber.Close()
		_ = c.cfg.Engine.EndSession(ctx, c.cfg.SessionID)
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.ActiveCalls.Dec()
			if !c.started.IsZero() {
				c.cfg.Metrics.CallDuration.Observe(time.Since(c.started).Seconds())
			}
		}
		if c.cfg.OnDone != nil {
			c.cfg.OnDone()
		}
		c.logger.Info("call ended")
	})
}
