package http

import (
	"log/slog"

	"github.com/yanqian/health-insight/internal/domain/auth"
	"github.com/yanqian/health-insight/internal/domain/chat"
	"github.com/yanqian/health-insight/internal/domain/healthdata"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	authSvc           auth.Service
	healthSvc         healthdata.Service
	chatSvc           chat.Service
	postLoginRedirect string
	logger            *slog.Logger
}

// NewHandler constructs the root HTTP handler. postLoginRedirect, when set,
// receives the tokens after Google sign-in instead of a JSON body.
func NewHandler(authSvc auth.Service, healthSvc healthdata.Service, chatSvc chat.Service, postLoginRedirect string, logger *slog.Logger) *Handler {
	return &Handler{
		authSvc:           authSvc,
		healthSvc:         healthSvc,
		chatSvc:           chatSvc,
		postLoginRedirect: postLoginRedirect,
		logger:            logger.With("component", "http.handler"),
	}
}
