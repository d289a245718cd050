package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/health-insight/internal/domain/auth"
	"github.com/yanqian/health-insight/internal/domain/chat"
	"github.com/yanqian/health-insight/internal/domain/healthdata"
	"github.com/yanqian/health-insight/internal/infra/config"
	apperrors "github.com/yanqian/health-insight/pkg/errors"
	"github.com/yanqian/health-insight/pkg/metrics"
)

const testToken = "valid-token"

func TestRouter_HealthSnapshotSuccess(t *testing.T) {
	health := &stubHealth{
		snapshotFn: func(ctx context.Context, userID int64, req healthdata.SnapshotRequest) (healthdata.Snapshot, error) {
			require.Equal(t, int64(7), userID)
			require.Equal(t, "2025-06-07", req.Date)
			require.Equal(t, 3, req.Days)
			return healthdata.Snapshot{Date: req.Date, Days: req.Days, Available: true, Source: healthdata.SourceProvider}, nil
		},
	}
	server := newRouterUnderTest(t, health, &stubChat{})

	recorder := performRequest(server, http.MethodGet, "/api/v1/health?date=2025-06-07&days=3", "", testToken)
	require.Equal(t, http.StatusOK, recorder.Code)

	var got healthdata.Snapshot
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, 3, got.Days)
	require.True(t, got.Available)
}

func TestRouter_RequiresAuthorization(t *testing.T) {
	server := newRouterUnderTest(t, &stubHealth{}, &stubChat{})

	recorder := performRequest(server, http.MethodGet, "/api/v1/health", "", "")
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Equal(t, "unauthorized", decodeErrorBody(t, recorder.Body.Bytes()).Error.Code)

	recorder = performRequest(server, http.MethodGet, "/api/v1/health", "", "stale")
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Equal(t, apperrors.CodeInvalidToken, decodeErrorBody(t, recorder.Body.Bytes()).Error.Code)
}

func TestRouter_DomainErrorEnvelope(t *testing.T) {
	health := &stubHealth{
		snapshotFn: func(context.Context, int64, healthdata.SnapshotRequest) (healthdata.Snapshot, error) {
			return healthdata.Snapshot{}, apperrors.Wrap(apperrors.CodeInvalidInput, "date must not be in the future", nil)
		},
	}
	server := newRouterUnderTest(t, health, &stubChat{})

	recorder := performRequest(server, http.MethodGet, "/api/v1/health?date=2999-01-01", "", testToken)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	body := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, apperrors.CodeInvalidInput, body.Error.Code)
	require.Equal(t, "date must not be in the future", body.Error.Message)
	require.Equal(t, body.Error.Message, body.Detail)
}

func TestRouter_InvalidQuery(t *testing.T) {
	server := newRouterUnderTest(t, &stubHealth{}, &stubChat{})

	recorder := performRequest(server, http.MethodGet, "/api/v1/health?days=many", "", testToken)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "invalid_request", decodeErrorBody(t, recorder.Body.Bytes()).Error.Code)
}

func TestRouter_MetricByName(t *testing.T) {
	health := &stubHealth{
		metricFn: func(_ context.Context, _ int64, name string, _ healthdata.SnapshotRequest) (healthdata.MetricResult, error) {
			if name != healthdata.MetricStepCount {
				return healthdata.MetricResult{}, apperrors.Wrap(apperrors.CodeNotFound, "unknown metric", nil)
			}
			return healthdata.MetricResult{Name: name, Kind: healthdata.KindSeries}, nil
		},
	}
	server := newRouterUnderTest(t, health, &stubChat{})

	recorder := performRequest(server, http.MethodGet, "/api/v1/health/metrics/"+healthdata.MetricStepCount, "", testToken)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = performRequest(server, http.MethodGet, "/api/v1/health/metrics/unknown", "", testToken)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestRouter_IngestSamples(t *testing.T) {
	health := &stubHealth{
		ingestFn: func(_ context.Context, userID int64, req healthdata.IngestRequest) (healthdata.IngestResponse, error) {
			require.Equal(t, int64(7), userID)
			require.Len(t, req.Samples, 1)
			require.Equal(t, "HKQuantityTypeIdentifierStepCount", req.Samples[0].Identifier)
			return healthdata.IngestResponse{Accepted: 1}, nil
		},
	}
	server := newRouterUnderTest(t, health, &stubChat{})

	body := `{"samples":[{"identifier":"HKQuantityTypeIdentifierStepCount","startDate":"2025-06-07T08:00:00Z","endDate":"2025-06-07T08:10:00Z","value":120}]}`
	recorder := performRequest(server, http.MethodPost, "/api/v1/health/samples", body, testToken)
	require.Equal(t, http.StatusOK, recorder.Code)

	var got healthdata.IngestResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, 1, got.Accepted)
}

func TestRouter_LegacyChatPath(t *testing.T) {
	chatSvc := &stubChat{
		sendFn: func(_ context.Context, userID int64, req chat.SendRequest) (chat.Response, error) {
			require.Equal(t, int64(7), userID)
			require.Equal(t, "how did I sleep?", req.Message)
			return chat.Response{Response: "About 7 hours."}, nil
		},
	}
	server := newRouterUnderTest(t, &stubHealth{}, chatSvc)

	recorder := performRequest(server, http.MethodPost, "/chat", `{"message":"how did I sleep?"}`, testToken)
	require.Equal(t, http.StatusOK, recorder.Code)

	var got chat.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, "About 7 hours.", got.Response)
}

func TestRouter_ResetChat(t *testing.T) {
	chatSvc := &stubChat{}
	server := newRouterUnderTest(t, &stubHealth{}, chatSvc)

	recorder := performRequest(server, http.MethodDelete, "/api/v1/chat/history", "", testToken)
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.True(t, chatSvc.resetCalled)
}

func TestRouter_LoginConflictAndCredentials(t *testing.T) {
	authSvc := &stubAuth{
		loginFn: func(_ context.Context, req auth.LoginRequest) (auth.LoginResponse, error) {
			if req.Password != "correct horse" {
				return auth.LoginResponse{}, apperrors.Wrap(apperrors.CodeInvalidCredentials, "invalid username or password", nil)
			}
			return auth.LoginResponse{Token: "t", RefreshToken: "r"}, nil
		},
	}
	server := newRouterWithAuth(t, authSvc, &stubHealth{}, &stubChat{})

	recorder := performRequest(server, http.MethodPost, "/auth/login", `{"username":"alex","password":"nope"}`, "")
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = performRequest(server, http.MethodPost, "/api/v1/auth/login", `{"username":"alex","password":"correct horse"}`, "")
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_GoogleCallbackRejectsMissingState(t *testing.T) {
	server := newRouterUnderTest(t, &stubHealth{}, &stubChat{})

	recorder := performRequest(server, http.MethodGet, "/api/v1/auth/google/callback?code=abc&state=xyz", "", "")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "invalid_state", decodeErrorBody(t, recorder.Body.Bytes()).Error.Code)
}

func TestRouter_Healthz(t *testing.T) {
	server := newRouterUnderTest(t, &stubHealth{}, &stubChat{})

	recorder := performRequest(server, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}

func TestFromDomainError_StatusMapping(t *testing.T) {
	cases := []struct {
		code   string
		status int
	}{
		{apperrors.CodeInvalidInput, http.StatusBadRequest},
		{apperrors.CodeInvalidCredentials, http.StatusUnauthorized},
		{apperrors.CodeInvalidToken, http.StatusForbidden},
		{"user_not_found", http.StatusNotFound},
		{"username_exists", http.StatusConflict},
		{apperrors.CodeUpstream, http.StatusBadGateway},
		{"chat_error", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		httpErr := fromDomainError(apperrors.Wrap(tc.code, "boom", nil))
		require.Equal(t, tc.status, httpErr.Status, tc.code)
		require.Equal(t, tc.code, httpErr.Code)
	}
}

func TestIPRateLimiter_Burst(t *testing.T) {
	limiter := newIPRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2})
	now := time.Date(2025, time.June, 7, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	require.True(t, limiter.allow("10.0.0.1"))
	require.True(t, limiter.allow("10.0.0.1"))
	require.False(t, limiter.allow("10.0.0.1"))
	require.True(t, limiter.allow("10.0.0.2"))

	now = now.Add(time.Minute)
	require.True(t, limiter.allow("10.0.0.1"))
}

func performRequest(server *http.Server, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRouterUnderTest(t *testing.T, health healthdata.Service, chatSvc chat.Service) *http.Server {
	t.Helper()
	return newRouterWithAuth(t, &stubAuth{}, health, chatSvc)
}

func newRouterWithAuth(t *testing.T, authSvc auth.Service, health healthdata.Service, chatSvc chat.Service) *http.Server {
	t.Helper()
	logger := newTestLogger()
	handler := NewHandler(authSvc, health, chatSvc, "", logger)
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
	return NewRouter(cfg, handler, authSvc, metrics.NewRecorder(), logger)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Detail string `json:"detail"`
}

func decodeErrorBody(t *testing.T, raw []byte) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

type stubAuth struct {
	loginFn func(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error)
}

func (s *stubAuth) Register(context.Context, auth.RegisterRequest) (auth.UserView, error) {
	return auth.UserView{}, nil
}

func (s *stubAuth) Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, req)
	}
	return auth.LoginResponse{}, nil
}

func (s *stubAuth) GoogleAuthURL(context.Context, string, string) (string, error) {
	return "https://accounts.example.com/auth", nil
}

func (s *stubAuth) GoogleCallback(context.Context, string, string) (auth.LoginResponse, error) {
	return auth.LoginResponse{}, nil
}

func (s *stubAuth) ValidateToken(_ context.Context, token string) (auth.Claims, error) {
	if token != testToken {
		return auth.Claims{}, apperrors.Wrap(apperrors.CodeInvalidToken, "invalid token", nil)
	}
	return auth.Claims{UserID: 7, Username: "alex", TokenType: "access"}, nil
}

func (s *stubAuth) Refresh(context.Context, string) (auth.LoginResponse, error) {
	return auth.LoginResponse{}, nil
}

func (s *stubAuth) Profile(context.Context, int64) (auth.UserView, error) {
	return auth.UserView{}, nil
}

func (s *stubAuth) Logout(context.Context, int64) error { return nil }

type stubHealth struct {
	snapshotFn func(ctx context.Context, userID int64, req healthdata.SnapshotRequest) (healthdata.Snapshot, error)
	metricFn   func(ctx context.Context, userID int64, name string, req healthdata.SnapshotRequest) (healthdata.MetricResult, error)
	ingestFn   func(ctx context.Context, userID int64, req healthdata.IngestRequest) (healthdata.IngestResponse, error)
}

func (s *stubHealth) Snapshot(ctx context.Context, userID int64, req healthdata.SnapshotRequest) (healthdata.Snapshot, error) {
	if s.snapshotFn != nil {
		return s.snapshotFn(ctx, userID, req)
	}
	return healthdata.Snapshot{}, nil
}

func (s *stubHealth) Metric(ctx context.Context, userID int64, name string, req healthdata.SnapshotRequest) (healthdata.MetricResult, error) {
	if s.metricFn != nil {
		return s.metricFn(ctx, userID, name, req)
	}
	return healthdata.MetricResult{}, nil
}

func (s *stubHealth) Ingest(ctx context.Context, userID int64, req healthdata.IngestRequest) (healthdata.IngestResponse, error) {
	if s.ingestFn != nil {
		return s.ingestFn(ctx, userID, req)
	}
	return healthdata.IngestResponse{}, nil
}

type stubChat struct {
	sendFn      func(ctx context.Context, userID int64, req chat.SendRequest) (chat.Response, error)
	resetCalled bool
}

func (s *stubChat) Send(ctx context.Context, userID int64, req chat.SendRequest) (chat.Response, error) {
	if s.sendFn != nil {
		return s.sendFn(ctx, userID, req)
	}
	return chat.Response{}, nil
}

func (s *stubChat) History(context.Context, int64) (chat.HistoryResponse, error) {
	return chat.HistoryResponse{}, nil
}

func (s *stubChat) Reset(context.Context, int64) error {
	s.resetCalled = true
	return nil
}
