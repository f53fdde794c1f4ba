// Package rtc terminates WebRTC calls: SDP negotiation, Opus decode of the
// borrower's microphone into the STT stream, and paced Opus encode of the
// agent's synthesized speech onto the outbound track.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"gopkg.in/hraban/opus.v2"

	"github.com/quickfin/loanvoice/internal/agent"
	"github.com/quickfin/loanvoice/internal/logging"
	"github.com/quickfin/loanvoice/internal/metrics"
	"github.com/quickfin/loanvoice/internal/runtime"
	"github.com/quickfin/loanvoice/pkg/domain"
	"github.com/quickfin/loanvoice/pkg/ports"
)

const (
	sttSampleRate = 16000
	// 100ms of 16-bit mono PCM at the STT rate per send.
	sttChunkBytes = sttSampleRate / 10 * 2
	// Grace period before closing the peer so the farewell line drains.
	hangupDrain = 800 * time.Millisecond
)

// ErrUnknownCall is returned for operations on a call ID that is not live.
var ErrUnknownCall = errors.New("rtc: unknown call")

// SessionDescription is a transport DTO so handlers do not expose webrtc
// types.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Deps supplies everything a call needs besides the media plumbing.
type Deps struct {
	Engine *runtime.Engine
	Driver ports.Driver

	// NewTranscriber builds a fresh STT stream per call.
	NewTranscriber func() ports.Transcriber

	// NewSynthesizer builds the TTS backend named by the offer.
	NewSynthesizer func(backend string) (ports.Synthesizer, error)

	ICEServers []webrtc.ICEServer
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Handler owns the live calls.
type Handler struct {
	deps   Deps
	logger *slog.Logger

	mu    sync.Mutex
	calls map[string]*liveCall
}

type liveCall struct {
	id      string
	backend string
	pc      *webrtc.PeerConnection
	agent   *agent.Call
	writer  *OpusWriter
}

// NewHandler creates the call handler.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		deps:   deps,
		logger: logger,
		calls:  make(map[string]*liveCall),
	}
}

// HandleOffer negotiates a new call from an SDP offer and returns the answer
// plus the call ID. ttsBackend selects the synthesis voice for this call.
func (h *Handler) HandleOffer(ctx context.Context, offer SessionDescription, ttsBackend string) (SessionDescription, string, error) {
	if offer.Type != "offer" || offer.SDP == "" {
		return SessionDescription{}, "", errors.New("rtc: invalid offer")
	}

	callID := uuid.NewString()
	logger := h.logger.With("call_id", callID)

	synth, err := h.deps.NewSynthesizer(ttsBackend)
	if err != nil {
		return SessionDescription{}, "", fmt.Errorf("rtc: tts backend: %w", err)
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return SessionDescription{}, "", err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, ir); err != nil {
		return SessionDescription{}, "", err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(ir))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: h.deps.ICEServers})
	if err != nil {
		return SessionDescription{}, "", err
	}

	outTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: trackSampleRate, Channels: 1},
		"agent-audio", "agent")
	if err != nil {
		_ = pc.Close()
		return SessionDescription{}, "", err
	}
	if _, err := pc.AddTrack(outTrack); err != nil {
		_ = pc.Close()
		return SessionDescription{}, "", err
	}

	writer, err := NewOpusWriter(outTrack, synth.SampleRate())
	if err != nil {
		_ = pc.Close()
		return SessionDescription{}, "", err
	}

	call, err := agent.NewCall(agent.Config{
		SessionID:    callID,
		VoiceBackend: ttsBackend,
		Engine:       h.deps.Engine,
		Driver:       h.deps.Driver,
		Transcriber:  h.deps.NewTranscriber(),
		Synthesizer:  synth,
		Sink:         writer.WritePCM,
		OnDone: func() {
			// Let the farewell line drain before tearing the peer down.
			writer.FlushTail()
			time.AfterFunc(hangupDrain, func() { _ = h.Disconnect(callID) })
		},
		Logger:  h.deps.Logger,
		Metrics: h.deps.Metrics,
	})
	if err != nil {
		_ = pc.Close()
		return SessionDescription{}, "", err
	}

	lc := &liveCall{id: callID, backend: ttsBackend, pc: pc, agent: call, writer: writer}

	var startOnce sync.Once
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		logger.Info("remote audio track", "codec", remote.Codec().MimeType)
		startOnce.Do(func() {
			if err := call.Start(context.Background()); err != nil {
				logger.Error("call start failed", "err", err)
				_ = h.Disconnect(callID)
				return
			}
			go h.readMic(remote, call, logger)
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info("peer state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			_ = h.Disconnect(callID)
		}
	})

	remoteOffer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
	if err := pc.SetRemoteDescription(remoteOffer); err != nil {
		_ = pc.Close()
		return SessionDescription{}, "", err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return SessionDescription{}, "", err
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return SessionDescription{}, "", err
	}
	<-gatherComplete

	local := pc.LocalDescription()
	if local == nil {
		_ = pc.Close()
		return SessionDescription{}, "", errors.New("rtc: no local description")
	}

	h.mu.Lock()
	h.calls[callID] = lc
	h.mu.Unlock()

	logger.Info("call negotiated", "tts", ttsBackend)
	return SessionDescription{Type: "answer", SDP: local.SDP}, callID, nil
}

// Disconnect tears a call down. Safe to call for an already-gone ID during
// teardown races; unknown IDs from the API surface get ErrUnknownCall.
func (h *Handler) Disconnect(callID string) error {
	h.mu.Lock()
	lc, ok := h.calls[callID]
	if ok {
		delete(h.calls, callID)
	}
	h.mu.Unlock()
	if !ok {
		return ErrUnknownCall
	}

	lc.agent.Close()
	lc.writer.Close()
	_ = lc.pc.Close()
	h.logger.Info("call disconnected", "call_id", callID)
	return nil
}

// Transcript returns the conversation of a live call.
func (h *Handler) Transcript(callID string) ([]domain.Message, bool) {
	h.mu.Lock()
	lc, ok := h.calls[callID]
	h.mu.Unlock()
	if !ok {
		return nil, false
	}
	return lc.agent.Transcript(), true
}

// ActiveCalls reports how many calls are live.
func (h *Handler) ActiveCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// readMic decodes the borrower's Opus stream to 16kHz PCM and forwards it to
// the STT stream in fixed-size chunks.
func (h *Handler) readMic(remote *webrtc.TrackRemote, call *agent.Call, logger *slog.Logger) {
	dec, err := opus.NewDecoder(sttSampleRate, 1)
	if err != nil {
		logger.Error("opus decoder", "err", err)
		return
	}

	buf := make([]byte, 1500)
	packet := &rtp.Packet{}
	pcmSamples := make([]int16, 1920)
	pending := make([]byte, 0, sttChunkBytes*4)

	for {
		select {
		case <-call.Done():
			return
		default:
		}

		n, _, err := remote.Read(buf)
		if err != nil {
			logger.Info("mic stream ended", "err", err)
			return
		}
		if err := packet.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if len(packet.Payload) == 0 {
			continue
		}

		decoded, err := dec.Decode(packet.Payload, pcmSamples)
		if err != nil {
			continue
		}
		pending = append(pending, samplesToBytes(pcmSamples[:decoded])...)

		for len(pending) >= sttChunkBytes {
			if err := call.SendPCM(pending[:sttChunkBytes]); err != nil {
				logger.Warn("stt send failed", "err", err)
			}
			pending = append(pending[:0], pending[sttChunkBytes:]...)
		}
	}
}
