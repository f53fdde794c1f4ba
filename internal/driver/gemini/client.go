// Package gemini implements the decision driver on Google's Gemini API.
//
// The current node's transitions are presented to the model as function
// declarations; the model replies with the next spoken line and, at most,
// one function call naming the transition to invoke.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/quickfin/loanvoice/pkg/domain"
	"github.com/quickfin/loanvoice/pkg/ports"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client talks to the Gemini generateContent endpoint.
type Client struct {
	httpClient   *http.Client
	apiKey       string
	model        string
	baseURL      string
	systemPrompt string
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (used in tests).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Gemini driver client.
func NewClient(apiKey, model, systemPrompt string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		apiKey:       apiKey,
		model:        model,
		baseURL:      defaultBaseURL,
		systemPrompt: systemPrompt,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ ports.Driver = (*Client)(nil)

// Decide asks the model for the next spoken line and, optionally, exactly
// one transition to invoke. An empty utterance means the call has just
// connected and the model should speak its opening line.
func (c *Client) Decide(ctx context.Context, view domain.View, history []domain.Message, utterance string) (ports.Decision, error) {
	if c.apiKey == "" {
		return ports.Decision{}, fmt.Errorf("gemini: api key missing")
	}

	req := generateContentRequest{
		SystemInstruction: &content{Parts: []part{{Text: c.stageInstruction(view)}}},
		Contents:          buildContents(history, utterance),
	}
	if decls := functionDeclarations(view); len(decls) > 0 {
		req.Tools = []tool{{FunctionDeclarations: decls}}
		req.ToolConfig = &toolConfig{FunctionCallingConfig: functionCallingConfig{Mode: "AUTO"}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return ports.Decision{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.Decision{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ports.Decision{}, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ports.Decision{}, fmt.Errorf("gemini: status=%d body=%s", resp.StatusCode, string(b))
	}

	var gr generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return ports.Decision{}, fmt.Errorf("gemini: decode response: %w", err)
	}
	return parseDecision(gr)
}

// stageInstruction combines the persona with the current stage's prompt and
// the invocation rules.
func (c *Client) stageInstruction(view domain.View) string {
	var sb strings.Builder
	sb.WriteString(c.systemPrompt)
	sb.WriteString("\n\nCURRENT STAGE: ")
	sb.WriteString(view.Prompt)
	if len(view.Transitions) > 0 {
		sb.WriteString("\n\nWhen the borrower's reply completes this stage, call exactly one of the provided functions to advance the conversation. If their reply does not complete the stage, call no function and keep the conversation on topic.")
	}
	return sb.String()
}

func buildContents(history []domain.Message, utterance string) []content {
	contents := make([]content, 0, len(history)+1)
	for _, m := range history {
		role := m.Role
		if role == domain.RoleSystem {
			continue // persona travels in system_instruction
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	if utterance == "" {
		utterance = "(The call has just connected. Speak your opening line.)"
	}
	contents = append(contents, content{Role: domain.RoleUser, Parts: []part{{Text: utterance}}})
	return contents
}

// functionDeclarations maps the node's transitions to the Gemini tool schema.
func functionDeclarations(view domain.View) []functionDeclaration {
	decls := make([]functionDeclaration, 0, len(view.Transitions))
	for _, t := range view.Transitions {
		decl := functionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.Params) > 0 {
			props := make(map[string]schemaProperty, len(t.Params))
			var required []string
			for name, p := range t.Params {
				props[name] = schemaProperty{Type: "string", Description: p.Description}
				if p.Required {
					required = append(required, name)
				}
			}
			decl.Parameters = &schema{Type: "object", Properties: props, Required: required}
		}
		decls = append(decls, decl)
	}
	return decls
}

func parseDecision(gr generateContentResponse) (ports.Decision, error) {
	if len(gr.Candidates) == 0 {
		return ports.Decision{}, fmt.Errorf("gemini: empty candidates")
	}

	var d ports.Decision
	var say []string
	for _, p := range gr.Candidates[0].Content.Parts {
		if p.Text != "" {
			say = append(say, strings.TrimSpace(p.Text))
		}
		if p.FunctionCall != nil && d.Transition == "" {
			d.Transition = p.FunctionCall.Name
			args := domain.Args{}
			// Gemini argument values arrive as any JSON scalar; decode them
			// weakly into the string-typed args the engine expects.
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:           &args,
				WeaklyTypedInput: true,
			})
			if err != nil {
				return ports.Decision{}, fmt.Errorf("gemini: build args decoder: %w", err)
			}
			if err := dec.Decode(p.FunctionCall.Args); err != nil {
				return ports.Decision{}, fmt.Errorf("gemini: decode args for %q: %w", p.FunctionCall.Name, err)
			}
			d.Args = args
		}
	}
	d.Say = strings.TrimSpace(strings.Join(say, " "))
	return d, nil
}
