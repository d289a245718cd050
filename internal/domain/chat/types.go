package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/health-insight/pkg/metrics"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Fixed assistant texts shown by the client.
const (
	GreetingText      = "👋 Hi there! How can I help you today?"
	DegradedReplyText = "⚠️ There was an issue connecting to the server. Please try again later."
	FallbackReplyText = "Sorry, I couldn’t understand that right now."
)

// Config drives the chat relay.
type Config struct {
	MaxHistoryTokens int
	HistoryLimit     int
	HealthContext    bool
	SystemPrompt     string
	BackendTimeout   time.Duration
}

// Message is one turn of a conversation.
type Message struct {
	ID         uuid.UUID `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	TokenCount int       `json:"tokenCount,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SendRequest is a user message. Messages carries the client's full history
// in the legacy payload; only its last user turn is used.
type SendRequest struct {
	Message             string    `json:"message"`
	Messages            []Message `json:"messages,omitempty"`
	UseHarmGuardrail    *bool     `json:"use_harm_guardrail,omitempty"`
	UseMICheckGuardrail *bool     `json:"use_mi_check_guardrail,omitempty"`
}

// Response carries the assistant reply.
type Response struct {
	Response string             `json:"response"`
	Reply    Message            `json:"reply"`
	Degraded bool               `json:"degraded"`
	Usage    metrics.TokenUsage `json:"usage"`
}

// HistoryResponse lists a conversation, oldest first.
type HistoryResponse struct {
	Messages []Message `json:"messages"`
}

// BackendRequest is what a Backend needs to produce a reply.
type BackendRequest struct {
	UserID              int64
	Messages            []Message
	UseHarmGuardrail    bool
	UseMICheckGuardrail bool
}

// BackendReply is a Backend's answer.
type BackendReply struct {
	Content string
	Usage   metrics.TokenUsage
}
