package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/health-insight/internal/domain/chat"
)

// Chat relays one user turn. A backend outage still answers 200 with the
// degraded reply.
func (h *Handler) Chat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req chat.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.chatSvc.Send(c.Request.Context(), userID, req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ChatHistory lists the stored conversation.
func (h *Handler) ChatHistory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	resp, err := h.chatSvc.History(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ResetChat clears the stored conversation.
func (h *Handler) ResetChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.chatSvc.Reset(c.Request.Context(), userID); err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.Status(http.StatusNoContent)
}
