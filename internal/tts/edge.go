package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quickfin/loanvoice/pkg/ports"
)

const (
	edgeURL = "wss://speech.platform.bing.com/consumer/speech/synthesize/" +
		"readaloud/edge/v1?TrustedClientToken=6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	edgeSampleRate   = 24000
	edgeOutputFormat = "raw-24khz-16bit-mono-pcm"
	defaultEdgeVoice = "hi-IN-SwaraNeural"
)

// Edge synthesizes speech through Microsoft Edge's readaloud websocket.
// It needs no API key, which makes it the zero-config default backend.
type Edge struct {
	voice string
	url   string
}

var _ ports.Synthesizer = (*Edge)(nil)

// EdgeOption customizes the client.
type EdgeOption func(*Edge)

// WithEdgeURL overrides the websocket endpoint, used in tests.
func WithEdgeURL(url string) EdgeOption {
	return func(e *Edge) { e.url = url }
}

// NewEdge creates an Edge TTS client. An empty voice selects the default
// Hindi voice.
func NewEdge(voice string, opts ...EdgeOption) *Edge {
	if voice == "" {
		voice = defaultEdgeVoice
	}
	e := &Edge{voice: voice, url: edgeURL}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SampleRate reports the PCM rate of the synthesized audio.
func (e *Edge) SampleRate() int { return edgeSampleRate }

// Synthesize streams PCM for text. The protocol is one speech.config message
// followed by one SSML message; the service answers with binary audio frames
// and a turn.end text message.
func (e *Edge) Synthesize(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(pcmCh)
		defer close(errCh)

		if text == "" {
			return
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, e.url, nil)
		if err != nil {
			errCh <- fmt.Errorf("edge tts: connection failed: %w", err)
			return
		}
		defer conn.Close()

		requestID := strings.ReplaceAll(uuid.NewString(), "-", "")

		config := fmt.Sprintf(
			"X-Timestamp:%s\r\nContent-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n"+
				`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"%s"}}}}`,
			edgeTimestamp(), edgeOutputFormat)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(config)); err != nil {
			errCh <- fmt.Errorf("edge tts: send config: %w", err)
			return
		}

		ssml := fmt.Sprintf(
			`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'><voice name='%s'>%s</voice></speak>`,
			e.voice, escapeSSML(text))
		request := fmt.Sprintf(
			"X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nX-Timestamp:%s\r\nPath:ssml\r\n\r\n%s",
			requestID, edgeTimestamp(), ssml)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(request)); err != nil {
			errCh <- fmt.Errorf("edge tts: send ssml: %w", err)
			return
		}

		for {
			if ctx.Err() != nil {
				return
			}
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				errCh <- fmt.Errorf("edge tts: read: %w", err)
				return
			}

			switch msgType {
			case websocket.TextMessage:
				if strings.Contains(string(data), "Path:turn.end") {
					return
				}
			case websocket.BinaryMessage:
				audio, ok := edgeAudioPayload(data)
				if !ok || len(audio) == 0 {
					continue
				}
				select {
				case pcmCh <- audio:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return pcmCh, errCh
}

// edgeAudioPayload strips the message header from a binary frame. The frame
// starts with a 2-byte big-endian header length followed by the header text.
func edgeAudioPayload(data []byte) ([]byte, bool) {
	if len(data) < 2 {
		return nil, false
	}
	headerLen := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+headerLen {
		return nil, false
	}
	header := data[2 : 2+headerLen]
	if !bytes.Contains(header, []byte("Path:audio")) {
		return nil, false
	}
	payload := make([]byte, len(data)-2-headerLen)
	copy(payload, data[2+headerLen:])
	return payload, true
}

func edgeTimestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

func escapeSSML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}
