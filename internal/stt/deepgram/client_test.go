package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_StreamsTranscripts(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotAuth, gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Wait for the first audio chunk, then answer with an interim and a
		// final result.
		_, _, err = conn.ReadMessage()
		require.NoError(t, err)

		interim := `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"haan main"}]}}`
		final := `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"haan main Rajesh bol raha hoon"}]}}`
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(interim)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(final)))

		// Hold the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewClient(Config{
		APIKey: "dg-test-key",
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	require.NoError(t, c.SendPCM(make([]byte, 640)))

	var got []string
	var finals []bool
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case tr := <-c.Transcripts():
			got = append(got, tr.Text)
			finals = append(finals, tr.Final)
		case <-timeout:
			t.Fatal("timed out waiting for transcripts")
		}
	}

	assert.Equal(t, "Token dg-test-key", gotAuth)
	assert.Contains(t, gotQuery, "model=nova-2")
	assert.Contains(t, gotQuery, "language=hi")
	assert.Contains(t, gotQuery, "encoding=linear16")
	assert.Contains(t, gotQuery, "sample_rate=16000")
	assert.Equal(t, []string{"haan main", "haan main Rajesh bol raha hoon"}, got)
	assert.Equal(t, []bool{false, true}, finals)
}

func TestClient_ConnectRequiresKey(t *testing.T) {
	c := NewClient(Config{})
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	assert.Error(t, c.SendPCM([]byte{0, 0}))
}
