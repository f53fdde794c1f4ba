// Package tts provides the speech synthesis backends. Both return raw
// 16-bit little-endian mono PCM so the realtime pipeline can encode and
// pace the audio itself.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quickfin/loanvoice/pkg/ports"
)

const (
	deepgramSpeakURL    = "https://api.deepgram.com/v1/speak"
	deepgramSampleRate  = 24000
	defaultSpeakModel   = "aura-asteria-en"
	speakRequestTimeout = 30 * time.Second
)

// Deepgram synthesizes speech through Deepgram's Aura REST endpoint and
// streams the PCM response as it arrives.
type Deepgram struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ ports.Synthesizer = (*Deepgram)(nil)

// DeepgramOption customizes the client.
type DeepgramOption func(*Deepgram)

// WithSpeakBaseURL overrides the API endpoint, used in tests.
func WithSpeakBaseURL(url string) DeepgramOption {
	return func(d *Deepgram) { d.baseURL = url }
}

// WithSpeakHTTPClient overrides the HTTP client.
func WithSpeakHTTPClient(c *http.Client) DeepgramOption {
	return func(d *Deepgram) { d.httpClient = c }
}

// NewDeepgram creates an Aura TTS client. An empty model selects the default
// voice.
func NewDeepgram(apiKey, model string, opts ...DeepgramOption) *Deepgram {
	if model == "" {
		model = defaultSpeakModel
	}
	d := &Deepgram{
		apiKey:     apiKey,
		model:      model,
		baseURL:    deepgramSpeakURL,
		httpClient: &http.Client{Timeout: speakRequestTimeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SampleRate reports the PCM rate of the synthesized audio.
func (d *Deepgram) SampleRate() int { return deepgramSampleRate }

// Synthesize streams PCM for text. The audio channel closes when synthesis
// ends; at most one error is delivered.
func (d *Deepgram) Synthesize(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(pcmCh)
		defer close(errCh)

		if d.apiKey == "" {
			errCh <- fmt.Errorf("deepgram tts: api key missing")
			return
		}
		if text == "" {
			return
		}

		url := fmt.Sprintf("%s?model=%s&encoding=linear16&sample_rate=%d&container=none",
			d.baseURL, d.model, deepgramSampleRate)

		body, err := json.Marshal(map[string]string{"text": text})
		if err != nil {
			errCh <- fmt.Errorf("deepgram tts: encode request: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			errCh <- fmt.Errorf("deepgram tts: build request: %w", err)
			return
		}
		req.Header.Set("Authorization", "Token "+d.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.httpClient.Do(req)
		if err != nil {
			errCh <- fmt.Errorf("deepgram tts: request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			errCh <- fmt.Errorf("deepgram tts: status %d: %s", resp.StatusCode, msg)
			return
		}

		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case pcmCh <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("deepgram tts: read audio: %w", err)
				return
			}
		}
	}()

	return pcmCh, errCh
}
