// Package http exposes the call signaling and dashboard API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quickfin/loanvoice/internal/config"
	"github.com/quickfin/loanvoice/internal/logging"
	"github.com/quickfin/loanvoice/internal/metrics"
	"github.com/quickfin/loanvoice/internal/rtc"
	"github.com/quickfin/loanvoice/pkg/domain"
	"github.com/quickfin/loanvoice/pkg/flow"
	"github.com/quickfin/loanvoice/pkg/ports"
)

// CallService is the call lifecycle surface the API needs; implemented by
// the rtc handler.
type CallService interface {
	HandleOffer(ctx context.Context, offer rtc.SessionDescription, ttsBackend string) (rtc.SessionDescription, string, error)
	Disconnect(callID string) error
	Transcript(callID string) ([]domain.Message, bool)
	ActiveCalls() int
}

// Server serves signaling, the dashboard API, and metrics.
type Server struct {
	calls    CallService
	registry ports.Registry
	graph    *flow.Graph
	cfg      config.Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewServer wires the API surface.
func NewServer(calls CallService, registry ports.Registry, graph *flow.Graph, cfg config.Config, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		calls:    calls,
		registry: registry,
		graph:    graph,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Route("/api", func(r chi.Router) {
		r.Post("/offer", s.handleOffer)
		r.Post("/disconnect", s.handleDisconnect)
		r.Get("/session-data/{id}", s.handleSessionData)
		r.Get("/ice-servers", s.handleICEServers)
		r.Get("/health", s.handleHealth)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SDP == "" {
		respondError(w, http.StatusBadRequest, "missing SDP offer")
		return
	}
	if req.Type == "" {
		req.Type = "offer"
	}

	backend := req.TTSType
	if backend == "" {
		backend = s.cfg.DefaultTTS
	}

	answer, callID, err := s.calls.HandleOffer(r.Context(), req.toSession(), backend)
	if err != nil {
		s.logger.Error("offer failed", "err", err)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("offer failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, offerResponse{SDP: answer.SDP, PCID: callID, Type: answer.Type})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req disconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PCID == "" {
		respondError(w, http.StatusBadRequest, "missing pc_id")
		return
	}

	if err := s.calls.Disconnect(req.PCID); err != nil {
		if errors.Is(err, rtc.ErrUnknownCall) {
			respondJSON(w, http.StatusNotFound, statusResponse{Status: "not_found"})
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "disconnected"})
}

func (s *Server) handleSessionData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	transcript, _ := s.calls.Transcript(id)
	if transcript == nil {
		transcript = []domain.Message{}
	}

	respondJSON(w, http.StatusOK, sessionDataResponse{
		Transcript:     transcript,
		CurrentNode:    snap.CurrentNodeID,
		State:          snap.State,
		VoiceBackend:   snap.VoiceBackend,
		ElapsedSeconds: snap.Elapsed().Seconds(),
		Nodes:          nodeViews(s.graph),
		Metrics:        s.sessionMetrics(snap, transcript),
	})
}

func (s *Server) handleICEServers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, iceServersFor(s.cfg))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:            "healthy",
		ActiveConnections: s.calls.ActiveCalls(),
		GoogleAPI:         configured(s.cfg.GoogleAPIKey),
		DeepgramAPI:       configured(s.cfg.DeepgramAPIKey),
		TURN:              configured(s.cfg.TURN.URL),
	})
}

// nodeViews maps the flow graph to the dashboard pipeline: the entry node
// first, the rest in ID order. The entry node is "start" and terminals are
// "end".
func nodeViews(g *flow.Graph) []nodeView {
	views := make([]nodeView, 0, g.Len())
	for _, n := range g.Nodes() {
		kind := "process"
		switch {
		case n.ID == g.Entry():
			kind = "start"
		case n.EndsConversation():
			kind = "end"
		}
		label := n.Label
		if label == "" {
			label = n.ID
		}
		v := nodeView{ID: n.ID, Label: label, Type: kind}
		if kind == "start" {
			views = append([]nodeView{v}, views...)
			continue
		}
		views = append(views, v)
	}
	return views
}

func (s *Server) sessionMetrics(snap domain.Snapshot, transcript []domain.Message) sessionMetrics {
	m := sessionMetrics{
		LLM: "Google Gemini (" + s.cfg.GeminiModel + ")",
		STT: "Deepgram " + s.cfg.STTModel,
	}
	if snap.VoiceBackend == config.TTSEdge {
		m.TTS = "Edge TTS (" + s.cfg.EdgeVoice + ")"
	} else {
		m.TTS = "Deepgram " + s.cfg.DeepgramVoice
	}

	words := 0
	for _, msg := range transcript {
		switch msg.Role {
		case domain.RoleUser:
			m.UserMessages++
		case domain.RoleModel:
			m.AssistantMessages++
		}
		words += len(strings.Fields(msg.Content))
	}
	m.TotalMessages = len(transcript)
	// Rough subword-tokenization estimate.
	m.EstTokens = int(float64(words) * 1.3)
	return m
}

// iceServersFor builds the client ICE configuration: a public STUN server
// plus the TURN relay when one is configured.
func iceServersFor(cfg config.Config) []iceServer {
	servers := []iceServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	if cfg.TURN.URL != "" && cfg.TURN.Username != "" && cfg.TURN.Credential != "" {
		urls := strings.Split(cfg.TURN.URL, ",")
		for i := range urls {
			urls[i] = strings.TrimSpace(urls[i])
		}
		servers = append(servers, iceServer{
			URLs:       urls,
			Username:   cfg.TURN.Username,
			Credential: cfg.TURN.Credential,
		})
	}
	return servers
}

func configured(v string) string {
	if v == "" {
		return "missing"
	}
	return "configured"
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// cors allows the dashboard to be served from a different origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
