package http

import (
	"github.com/quickfin/loanvoice/internal/rtc"
	"github.com/quickfin/loanvoice/pkg/domain"
)

type offerRequest struct {
	SDP     string `json:"sdp"`
	Type    string `json:"type"`
	PCID    string `json:"pc_id,omitempty"`
	TTSType string `json:"tts_type,omitempty"`
}

type offerResponse struct {
	SDP  string `json:"sdp"`
	PCID string `json:"pc_id"`
	Type string `json:"type"`
}

type disconnectRequest struct {
	PCID string `json:"pc_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// iceServer mirrors the RTCIceServer shape the browser expects.
type iceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// nodeView is one dashboard pipeline node.
type nodeView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// sessionMetrics summarizes the call for the dashboard.
type sessionMetrics struct {
	LLM               string `json:"llm"`
	STT               string `json:"stt"`
	TTS               string `json:"tts"`
	TotalMessages     int    `json:"total_messages"`
	UserMessages      int    `json:"user_messages"`
	AssistantMessages int    `json:"assistant_messages"`
	EstTokens         int    `json:"est_tokens"`
}

type sessionDataResponse struct {
	Transcript     []domain.Message  `json:"transcript"`
	CurrentNode    string            `json:"current_node"`
	State          map[string]string `json:"state,omitempty"`
	VoiceBackend   string            `json:"voice_backend,omitempty"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
	Nodes          []nodeView        `json:"nodes"`
	Metrics        sessionMetrics    `json:"metrics"`
}

type healthResponse struct {
	Status            string `json:"status"`
	ActiveConnections int    `json:"active_connections"`
	GoogleAPI         string `json:"google_api"`
	DeepgramAPI       string `json:"deepgram_api"`
	TURN              string `json:"turn"`
}

func (r offerRequest) toSession() rtc.SessionDescription {
	return rtc.SessionDescription{Type: r.Type, SDP: r.SDP}
}
