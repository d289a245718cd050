package http

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/health-insight/internal/domain/auth"
)

// Register creates an account.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	user, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login exchanges credentials for tokens.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh rotates an access token from a refresh token.
func (h *Handler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated profile.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	user, err := h.authSvc.Profile(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, user)
}

// Logout revokes any linked Google refresh token.
func (h *Handler) Logout(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.authSvc.Logout(c.Request.Context(), userID); err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// GoogleLogin starts the PKCE authorization code flow.
func (h *Handler) GoogleLogin(c *gin.Context) {
	state, verifier, challenge, err := auth.NewOAuthState()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "auth_error", "failed to start sign-in", err))
		return
	}
	target, err := h.authSvc.GoogleAuthURL(c.Request.Context(), state, challenge)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	setOAuthStateCookie(c, state, verifier)
	c.Redirect(http.StatusFound, target)
}

// GoogleCallback completes sign-in and hands the tokens to the client.
func (h *Handler) GoogleCallback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		clearOAuthStateCookie(c)
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "oauth_denied", reason, nil))
		return
	}
	verifier, ok := consumeOAuthState(c, c.Query("state"))
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_state", "sign-in state mismatch", nil))
		return
	}
	resp, err := h.authSvc.GoogleCallback(c.Request.Context(), c.Query("code"), verifier)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	if h.postLoginRedirect == "" {
		c.JSON(http.StatusOK, resp)
		return
	}
	fragment := url.Values{}
	fragment.Set("token", resp.Token)
	fragment.Set("refreshToken", resp.RefreshToken)
	c.Redirect(http.StatusFound, h.postLoginRedirect+"#"+fragment.Encode())
}
