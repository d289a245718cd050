package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecorderExportsCollectors(t *testing.T) {
	rec := NewRecorder()
	rec.ObserveHTTP(http.MethodGet, "/api/v1/health", http.StatusOK, 15*time.Millisecond)
	rec.AddSamples("step_count", 7)
	rec.CacheLookup(true)
	rec.ChatBackendFailure("remote")
	rec.ChatUsage(TokenUsage{PromptTokens: 10, TotalTokens: 12})

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	require.Contains(t, text, `http_requests_total{method="GET",route="/api/v1/health",status="200"} 1`)
	require.Contains(t, text, `health_samples_aggregated_total{metric="step_count"} 7`)
	require.Contains(t, text, `health_snapshot_cache_lookups_total{result="hit"} 1`)
	require.Contains(t, text, `chat_backend_failures_total{backend="remote"} 1`)
	require.Contains(t, text, `chat_tokens_total 12`)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	require.NotPanics(t, func() {
		rec.ObserveHTTP(http.MethodPost, "/chat", http.StatusBadGateway, time.Second)
		rec.AddSamples("sleep", 3)
		rec.MetricFailure("sleep")
		rec.CacheLookup(false)
		rec.ChatBackendFailure("llm")
		rec.ChatUsage(TokenUsage{TotalTokens: 1})
	})
}

func TestTokenUsageAdd(t *testing.T) {
	total := TokenUsage{PromptTokens: 3, TotalTokens: 3}.Add(TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})
	require.Equal(t, TokenUsage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}, total)
	require.True(t, TokenUsage{}.IsZero())
	require.False(t, total.IsZero())
}
