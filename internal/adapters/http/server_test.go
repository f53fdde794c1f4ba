package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickfin/loanvoice/internal/collection"
	"github.com/quickfin/loanvoice/internal/config"
	"github.com/quickfin/loanvoice/internal/rtc"
	"github.com/quickfin/loanvoice/pkg/adapters/memory"
	"github.com/quickfin/loanvoice/pkg/domain"
	"github.com/quickfin/loanvoice/pkg/flow"
	"github.com/quickfin/loanvoice/pkg/session"
)

type fakeCalls struct {
	offerErr    error
	lastBackend string
	disconnects []string
	transcripts map[string][]domain.Message
	active      int
}

func (f *fakeCalls) HandleOffer(_ context.Context, offer rtc.SessionDescription, backend string) (rtc.SessionDescription, string, error) {
	if f.offerErr != nil {
		return rtc.SessionDescription{}, "", f.offerErr
	}
	f.lastBackend = backend
	return rtc.SessionDescription{Type: "answer", SDP: "v=0 answer"}, "pc-123", nil
}

func (f *fakeCalls) Disconnect(id string) error {
	for _, known := range f.disconnects {
		if known == id {
			return nil
		}
	}
	return rtc.ErrUnknownCall
}

func (f *fakeCalls) Transcript(id string) ([]domain.Message, bool) {
	msgs, ok := f.transcripts[id]
	return msgs, ok
}

func (f *fakeCalls) ActiveCalls() int { return f.active }

func testServer(t *testing.T, calls *fakeCalls, cfg config.Config) (*Server, *session.Manager, *flow.Graph) {
	t.Helper()
	graph, err := collection.NewGraph(collection.DefaultBorrower)
	require.NoError(t, err)
	reg := session.NewManager(memory.NewStore())
	return NewServer(calls, reg, graph, cfg, nil, nil), reg, graph
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOffer(t *testing.T) {
	calls := &fakeCalls{}
	srv, _, _ := testServer(t, calls, config.Default())
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/offer", offerRequest{SDP: "v=0 offer", Type: "offer"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp offerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "answer", resp.Type)
	assert.Equal(t, "pc-123", resp.PCID)
	assert.NotEmpty(t, resp.SDP)
	assert.Equal(t, config.TTSDeepgram, calls.lastBackend, "backend defaults from config")
}

func TestOffer_ExplicitBackend(t *testing.T) {
	calls := &fakeCalls{}
	srv, _, _ := testServer(t, calls, config.Default())
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/offer", offerRequest{SDP: "v=0", TTSType: "edge"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edge", calls.lastBackend)
}

func TestOffer_MissingSDP(t *testing.T) {
	srv, _, _ := testServer(t, &fakeCalls{}, config.Default())
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/offer", offerRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisconnect(t *testing.T) {
	calls := &fakeCalls{disconnects: []string{"pc-1"}}
	srv, _, _ := testServer(t, calls, config.Default())
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/disconnect", disconnectRequest{PCID: "pc-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"disconnected"}`, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/disconnect", disconnectRequest{PCID: "pc-gone"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"not_found"}`, rec.Body.String())
}

func TestSessionData(t *testing.T) {
	calls := &fakeCalls{transcripts: map[string][]domain.Message{
		"pc-1": {
			{Role: domain.RoleModel, Content: "Namaste, main Priya bol rahi hoon.", At: time.Now()},
			{Role: domain.RoleUser, Content: "haan boliye", At: time.Now()},
		},
	}}
	srv, reg, graph := testServer(t, calls, config.Default())

	require.NoError(t, reg.Register(context.Background(), domain.Snapshot{
		SessionID:     "pc-1",
		CurrentNodeID: collection.NodeOverdueInfo,
		State:         map[string]string{collection.KeyIdentityConfirmed: "true"},
		StartedAt:     time.Now(),
		VoiceBackend:  config.TTSEdge,
	}))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/session-data/pc-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionDataResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, collection.NodeOverdueInfo, resp.CurrentNode)
	assert.Equal(t, "true", resp.State[collection.KeyIdentityConfirmed])
	assert.Equal(t, config.TTSEdge, resp.VoiceBackend)
	assert.GreaterOrEqual(t, resp.ElapsedSeconds, 0.0)
	assert.Len(t, resp.Transcript, 2)
	assert.Len(t, resp.Nodes, graph.Len())
	assert.Equal(t, nodeView{ID: collection.NodeGreeting, Label: "Greeting", Type: "start"}, resp.Nodes[0])

	assert.Equal(t, 2, resp.Metrics.TotalMessages)
	assert.Equal(t, 1, resp.Metrics.UserMessages)
	assert.Equal(t, 1, resp.Metrics.AssistantMessages)
	assert.Contains(t, resp.Metrics.TTS, "Edge TTS")
	assert.Positive(t, resp.Metrics.EstTokens)
}

func TestSessionData_NotFound(t *testing.T) {
	srv, _, _ := testServer(t, &fakeCalls{}, config.Default())
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/session-data/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestICEServers(t *testing.T) {
	cfg := config.Default()
	srv, _, _ := testServer(t, &fakeCalls{}, cfg)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/ice-servers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var servers []iceServer
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&servers))
	require.Len(t, servers, 1, "no TURN configured")
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, servers[0].URLs)
}

func TestICEServers_WithTURN(t *testing.T) {
	cfg := config.Default()
	cfg.TURN = config.TURN{URL: "turn:relay.example.com:3478, turns:relay.example.com:5349", Username: "u", Credential: "c"}
	srv, _, _ := testServer(t, &fakeCalls{}, cfg)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/ice-servers", nil)
	var servers []iceServer
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&servers))
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"turn:relay.example.com:3478", "turns:relay.example.com:5349"}, servers[1].URLs)
	assert.Equal(t, "u", servers[1].Username)
}

func TestHealth(t *testing.T) {
	cfg := config.Default()
	cfg.GoogleAPIKey = "g"
	calls := &fakeCalls{active: 2}
	srv, _, _ := testServer(t, calls, cfg)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 2, resp.ActiveConnections)
	assert.Equal(t, "configured", resp.GoogleAPI)
	assert.Equal(t, "missing", resp.DeepgramAPI)
	assert.Equal(t, "missing", resp.TURN)
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := testServer(t, &fakeCalls{}, config.Default())
	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
