package chatgpt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_CreateChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Drink water. "},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`))
	}))
	defer srv.Close()

	client, err := NewClient("secret", srv.URL+"/v1/", 0)
	require.NoError(t, err)

	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{
		Model: "gpt-4o-mini",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "tips?"},
		},
	})
	require.NoError(t, err)
	content, ok := resp.Content()
	require.True(t, ok)
	require.Equal(t, "Drink water.", content)
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient("secret", srv.URL, 0)
	require.NoError(t, err)

	_, err = client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=429")
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("  ", "", 0)
	require.Error(t, err)
}
