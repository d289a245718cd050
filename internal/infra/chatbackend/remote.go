package chatbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/health-insight/internal/domain/chat"
)

const defaultRemoteTimeout = 30 * time.Second

type remoteMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type remotePayload struct {
	UserID              string          `json:"user_id"`
	Messages            []remoteMessage `json:"messages"`
	UseHarmGuardrail    bool            `json:"use_harm_guardrail"`
	UseMICheckGuardrail bool            `json:"use_mi_check_guardrail"`
}

type remoteReply struct {
	Response string `json:"response"`
	Message  string `json:"message"`
}

// Remote relays conversations to an external chat service over POST /chat.
type Remote struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemote builds a Remote backend rooted at baseURL.
func NewRemote(baseURL string, timeout time.Duration) (*Remote, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("remote chat base url cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Remote{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies the backend in logs and metrics.
func (r *Remote) Name() string { return "remote" }

// Reply posts the conversation and reads the reply text.
func (r *Remote) Reply(ctx context.Context, req chat.BackendRequest) (chat.BackendReply, error) {
	payload := remotePayload{
		UserID:              fmt.Sprintf("%d", req.UserID),
		Messages:            make([]remoteMessage, 0, len(req.Messages)),
		UseHarmGuardrail:    req.UseHarmGuardrail,
		UseMICheckGuardrail: req.UseMICheckGuardrail,
	}
	// The remote service only understands user and assistant turns.
	for _, m := range req.Messages {
		if m.Role == chat.RoleSystem {
			continue
		}
		role := chat.RoleAssistant
		if m.Role == chat.RoleUser {
			role = chat.RoleUser
		}
		payload.Messages = append(payload.Messages, remoteMessage{Role: role, Content: m.Content})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return chat.BackendReply{}, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return chat.BackendReply{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return chat.BackendReply{}, fmt.Errorf("request chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return chat.BackendReply{}, fmt.Errorf("chat request failed: status=%d body=%s", resp.StatusCode, string(snippet))
	}

	var out remoteReply
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return chat.BackendReply{}, fmt.Errorf("decode chat reply: %w", err)
	}
	content := strings.TrimSpace(out.Response)
	if content == "" {
		content = strings.TrimSpace(out.Message)
	}
	if content == "" {
		content = chat.FallbackReplyText
	}
	return chat.BackendReply{Content: content}, nil
}
