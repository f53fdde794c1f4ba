// Package deepgram implements the realtime STT boundary on Deepgram's
// streaming websocket API (nova-2, configured for Hindi/English calls).
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quickfin/loanvoice/internal/logging"
	"github.com/quickfin/loanvoice/pkg/ports"
)

const defaultURL = "wss://api.deepgram.com/v1/listen"

// Config holds the streaming connection settings.
type Config struct {
	APIKey         string
	Model          string // default "nova-2"
	Language       string // default "hi"
	SampleRate     int    // default 16000
	UtteranceEndMs int    // default 1000
	URL            string // override for tests
	Logger         *slog.Logger
}

// Client is a Deepgram realtime STT client. It accepts 16-bit little-endian
// mono PCM and emits interim and final transcripts.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	out  chan ports.Transcript
	done chan struct{}
}

var _ ports.Transcriber = (*Client)(nil)

// NewClient creates a client; Connect establishes the stream.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "hi"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.UtteranceEndMs == 0 {
		cfg.UtteranceEndMs = 1000
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		out:    make(chan ports.Transcript, 32),
		done:   make(chan struct{}),
	}
}

// transcriptResponse is the subset of Deepgram's result message we consume.
type transcriptResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Connect establishes the websocket stream and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if c.cfg.APIKey == "" {
		return fmt.Errorf("deepgram: api key missing")
	}

	url := fmt.Sprintf("%s?model=%s&language=%s&encoding=linear16&sample_rate=%d&channels=1&smart_format=true&interim_results=true&utterance_end_ms=%d",
		c.cfg.URL, c.cfg.Model, c.cfg.Language, c.cfg.SampleRate, c.cfg.UtteranceEndMs)

	header := http.Header{"Authorization": {"Token " + c.cfg.APIKey}}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("deepgram: connection failed: %w", err)
	}

	c.conn = conn
	c.connected = true

	go c.readLoop()
	go c.keepAlive()
	return nil
}

// SendPCM streams one chunk of 16-bit LE mono PCM.
func (c *Client) SendPCM(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("deepgram: not connected")
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

// Transcripts returns the transcript stream. The channel is closed when the
// connection ends.
func (c *Client) Transcripts() <-chan ports.Transcript {
	return c.out
}

// Close signals end of stream and tears the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	close(c.done)

	// Best effort: tell Deepgram the stream is over before closing.
	_ = c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.out)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("stt read ended", "err", err)
			}
			return
		}

		var resp transcriptResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn("stt: unparseable message", "err", err)
			continue
		}
		if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
			continue
		}
		text := resp.Channel.Alternatives[0].Transcript
		if text == "" {
			continue
		}

		select {
		case c.out <- ports.Transcript{Text: text, Final: resp.IsFinal}:
		case <-c.done:
			return
		}
	}
}

// keepAlive pings Deepgram during silence so the stream is not reaped.
func (c *Client) keepAlive() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.connected {
				_ = c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			}
			c.mu.Unlock()
		}
	}
}
