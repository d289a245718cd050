package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/health-insight/internal/domain/healthdata"
	apperrors "github.com/yanqian/health-insight/pkg/errors"
)

// Service relays user messages to the configured chat backend.
type Service interface {
	Send(ctx context.Context, userID int64, req SendRequest) (Response, error)
	History(ctx context.Context, userID int64) (HistoryResponse, error)
	Reset(ctx context.Context, userID int64) error
}

const (
	defaultMaxHistoryTokens = 3000
	defaultHistoryLimit     = 50
)

type service struct {
	cfg      Config
	backend  Backend
	log      MessageLog
	counter  TokenCounter
	health   HealthContextProvider
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the chat domain. health may be nil to disable context.
func NewService(cfg Config, backend Backend, log MessageLog, counter TokenCounter, health HealthContextProvider, observer Observer, logger *slog.Logger) Service {
	if cfg.MaxHistoryTokens <= 0 {
		cfg.MaxHistoryTokens = defaultMaxHistoryTokens
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &service{
		cfg:      cfg,
		backend:  backend,
		log:      log,
		counter:  counter,
		health:   health,
		observer: observer,
		logger:   logger.With("component", "chat.service"),
		now:      time.Now,
	}
}

func (s *service) Send(ctx context.Context, userID int64, req SendRequest) (Response, error) {
	content := strings.TrimSpace(req.Message)
	if content == "" {
		content = lastUserTurn(req.Messages)
	}
	if content == "" {
		return Response{}, apperrors.Wrap(apperrors.CodeInvalidInput, "message cannot be empty", nil)
	}

	history, err := s.log.List(ctx, userID, s.cfg.HistoryLimit)
	if err != nil {
		return Response{}, apperrors.Wrap("chat_error", "failed to load history", err)
	}
	var pending []Message
	if len(history) == 0 {
		greeting := s.newMessage(RoleAssistant, GreetingText)
		history = append(history, greeting)
		pending = append(pending, greeting)
	}
	userMsg := s.newMessage(RoleUser, content)
	pending = append(pending, userMsg)

	conversation := trimToBudget(append(history, userMsg), s.cfg.MaxHistoryTokens)
	if system, ok := s.systemMessage(ctx, userID); ok {
		conversation = append([]Message{system}, conversation...)
	}

	backendReq := BackendRequest{
		UserID:              userID,
		Messages:            conversation,
		UseHarmGuardrail:    boolOr(req.UseHarmGuardrail, true),
		UseMICheckGuardrail: boolOr(req.UseMICheckGuardrail, true),
	}
	resp := Response{}
	reply, err := s.callBackend(ctx, backendReq)
	if err != nil {
		s.logger.Error("chat backend failed", "backend", s.backend.Name(), "userId", userID, "error", err)
		s.observer.ChatBackendFailure(s.backend.Name())
		resp.Degraded = true
		resp.Reply = s.newMessage(RoleAssistant, DegradedReplyText)
	} else {
		resp.Reply = s.newMessage(RoleAssistant, reply.Content)
		resp.Usage = reply.Usage
		s.observer.ChatUsage(reply.Usage)
		pending = append(pending, resp.Reply)
	}
	resp.Response = resp.Reply.Content

	if err := s.log.Append(ctx, userID, pending...); err != nil {
		return Response{}, apperrors.Wrap("chat_error", "failed to save conversation", err)
	}
	s.logger.Info("chat reply", "userId", userID, "backend", s.backend.Name(), "degraded", resp.Degraded, "turns", len(conversation), "tokens", resp.Usage.TotalTokens)
	return resp, nil
}

func (s *service) History(ctx context.Context, userID int64) (HistoryResponse, error) {
	messages, err := s.log.List(ctx, userID, s.cfg.HistoryLimit)
	if err != nil {
		return HistoryResponse{}, apperrors.Wrap("chat_error", "failed to load history", err)
	}
	if len(messages) == 0 {
		messages = []Message{{Role: RoleAssistant, Content: GreetingText, CreatedAt: s.now().UTC()}}
	}
	return HistoryResponse{Messages: messages}, nil
}

func (s *service) Reset(ctx context.Context, userID int64) error {
	if err := s.log.Clear(ctx, userID); err != nil {
		return apperrors.Wrap("chat_error", "failed to clear history", err)
	}
	return nil
}

func (s *service) callBackend(ctx context.Context, req BackendRequest) (BackendReply, error) {
	if s.cfg.BackendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BackendTimeout)
		defer cancel()
	}
	reply, err := s.backend.Reply(ctx, req)
	if err != nil {
		return BackendReply{}, err
	}
	if strings.TrimSpace(reply.Content) == "" {
		return BackendReply{}, fmt.Errorf("%s backend returned an empty reply", s.backend.Name())
	}
	return reply, nil
}

func (s *service) newMessage(role, content string) Message {
	msg := Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if s.counter != nil {
		msg.TokenCount = s.counter.Count(content)
	}
	return msg
}

func (s *service) systemMessage(ctx context.Context, userID int64) (Message, bool) {
	var parts []string
	if prompt := strings.TrimSpace(s.cfg.SystemPrompt); prompt != "" {
		parts = append(parts, prompt)
	}
	if s.cfg.HealthContext && s.health != nil {
		snapshot, err := s.health.Snapshot(ctx, userID, healthdata.SnapshotRequest{})
		if err != nil {
			s.logger.Warn("health context unavailable", "userId", userID, "error", err)
		} else if summary := summarizeSnapshot(snapshot); summary != "" {
			parts = append(parts, summary)
		}
	}
	if len(parts) == 0 {
		return Message{}, false
	}
	return s.newMessage(RoleSystem, strings.Join(parts, "\n\n")), true
}

// trimToBudget keeps the newest messages whose token counts fit in budget.
// The last message is always kept.
func trimToBudget(messages []Message, budget int) []Message {
	if len(messages) == 0 {
		return messages
	}
	used := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := messages[i].TokenCount
		if start < len(messages) && used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	return messages[start:]
}

func summarizeSnapshot(snapshot healthdata.Snapshot) string {
	if len(snapshot.Metrics) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "User health metrics for the %d days ending %s", snapshot.Days, snapshot.Date)
	if snapshot.Source == healthdata.SourceSample {
		b.WriteString(" (example data, no device connected)")
	}
	b.WriteString(":")
	for _, m := range snapshot.Metrics {
		switch {
		case m.Error != "":
			continue
		case m.Series != nil:
			fmt.Fprintf(&b, "\n- %s: daily average %.1f %s", m.Name, m.Series.Average, m.Unit)
		case m.Latest != nil:
			fmt.Fprintf(&b, "\n- %s: latest %.1f %s", m.Name, m.Latest.Value, m.Unit)
		}
	}
	return b.String()
}

func lastUserTurn(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			if content := strings.TrimSpace(messages[i].Content); content != "" {
				return content
			}
		}
	}
	return ""
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
