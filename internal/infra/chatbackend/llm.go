package chatbackend

import (
	"context"
	"errors"
	"fmt"

	"github.com/yanqian/health-insight/internal/domain/chat"
	"github.com/yanqian/health-insight/internal/infra/llm/chatgpt"
	"github.com/yanqian/health-insight/pkg/metrics"
)

type completionClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// LLM answers with an OpenAI compatible chat completion.
type LLM struct {
	client      completionClient
	model       string
	temperature float32
}

// NewLLM wraps a completion client.
func NewLLM(client completionClient, model string, temperature float32) (*LLM, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if model == "" {
		return nil, errors.New("llm model is required")
	}
	return &LLM{client: client, model: model, temperature: temperature}, nil
}

// Name identifies the backend in logs and metrics.
func (l *LLM) Name() string { return "llm" }

// Reply sends the conversation as chat messages.
func (l *LLM) Reply(ctx context.Context, req chat.BackendRequest) (chat.BackendReply, error) {
	messages := make([]chatgpt.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, chatgpt.Message{Role: m.Role, Content: m.Content})
	}
	resp, err := l.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:       l.model,
		Messages:    messages,
		Temperature: l.temperature,
		User:        fmt.Sprintf("user-%d", req.UserID),
	})
	if err != nil {
		return chat.BackendReply{}, err
	}
	content, ok := resp.Content()
	if !ok {
		return chat.BackendReply{}, errors.New("llm returned no choices")
	}
	return chat.BackendReply{
		Content: content,
		Usage: metrics.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
