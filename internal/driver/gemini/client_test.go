package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickfin/loanvoice/internal/driver/gemini"
	"github.com/quickfin/loanvoice/pkg/domain"
)

func testView() domain.View {
	return domain.View{
		NodeID: "understand_situation",
		Prompt: "Ask why the payment got delayed.",
		Transitions: []domain.TransitionView{
			{
				Name:        "record_situation",
				Description: "The borrower explained the delay.",
				Params: map[string]domain.Param{
					"reason": {Type: domain.ParamString, Description: "The stated reason.", Required: true},
				},
			},
			{Name: "request_callback", Description: "The borrower asks for a callback."},
		},
	}
}

func TestDecide_ParsesFunctionCall(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"role": "model",
						"parts": []any{
							map[string]any{"text": "Samajh sakti hoon, job jaana mushkil hota hai."},
							map[string]any{"functionCall": map[string]any{
								"name": "record_situation",
								"args": map[string]any{"reason": "lost job"},
							}},
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := gemini.NewClient("test-key", "gemini-2.5-flash", "You are Priya.", gemini.WithBaseURL(srv.URL))
	history := []domain.Message{
		{Role: domain.RoleModel, Content: "Kya main Rajesh Kumar ji se baat kar rahi hoon?"},
	}

	decision, err := client.Decide(context.Background(), testView(), history, "haan, meri job chali gayi")
	require.NoError(t, err)
	assert.Equal(t, "record_situation", decision.Transition)
	assert.Equal(t, "lost job", decision.Args["reason"])
	assert.Contains(t, decision.Say, "Samajh sakti hoon")

	// The request must carry the node's transitions as function declarations
	// with the required parameter listed.
	tools := captured["tools"].([]any)
	require.Len(t, tools, 1)
	decls := tools[0].(map[string]any)["function_declarations"].([]any)
	require.Len(t, decls, 2)
	first := decls[0].(map[string]any)
	assert.Equal(t, "record_situation", first["name"])
	params := first["parameters"].(map[string]any)
	assert.Equal(t, []any{"reason"}, params["required"])

	// The utterance is appended by the client and must appear exactly once:
	// one history entry plus the borrower's latest line.
	contents := captured["contents"].([]any)
	require.Len(t, contents, 2)
	var utteranceCount int
	for _, c := range contents {
		ps := c.(map[string]any)["parts"].([]any)
		if ps[0].(map[string]any)["text"] == "haan, meri job chali gayi" {
			utteranceCount++
		}
	}
	assert.Equal(t, 1, utteranceCount)

	// The stage prompt travels in the system instruction, not the contents.
	sys := captured["system_instruction"].(map[string]any)
	parts := sys["parts"].([]any)
	text := parts[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "You are Priya.")
	assert.Contains(t, text, "Ask why the payment got delayed.")
}

func TestDecide_NoFunctionCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"role":  "model",
						"parts": []any{map[string]any{"text": "Koi baat nahi, bataiye kya hua?"}},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := gemini.NewClient("k", "m", "sys", gemini.WithBaseURL(srv.URL))
	decision, err := client.Decide(context.Background(), testView(), nil, "ek minute")
	require.NoError(t, err)
	assert.Empty(t, decision.Transition)
	assert.Equal(t, "Koi baat nahi, bataiye kya hua?", decision.Say)
}

func TestDecide_WeaklyTypedArgs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"parts": []any{map[string]any{"functionCall": map[string]any{
							"name": "confirm_commitment",
							// Models occasionally emit numbers for string params.
							"args": map[string]any{"payment_date": 10},
						}}},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := gemini.NewClient("k", "m", "sys", gemini.WithBaseURL(srv.URL))
	decision, err := client.Decide(context.Background(), domain.View{}, nil, "x")
	require.NoError(t, err)
	assert.Equal(t, "10", decision.Args["payment_date"])
}

func TestDecide_ErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := gemini.NewClient("k", "m", "sys", gemini.WithBaseURL(srv.URL))
	_, err := client.Decide(context.Background(), testView(), nil, "hello")
	assert.ErrorContains(t, err, "status=429")
}

func TestDecide_MissingKey(t *testing.T) {
	client := gemini.NewClient("", "m", "sys")
	_, err := client.Decide(context.Background(), testView(), nil, "hello")
	assert.ErrorContains(t, err, "api key missing")
}
