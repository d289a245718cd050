package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/health-insight/internal/domain/auth"
	apperrors "github.com/yanqian/health-insight/pkg/errors"
)

func authMiddleware(svc auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing or malformed authorization header", nil))
			return
		}
		claims, err := svc.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if !apperrors.IsCode(err, apperrors.CodeInvalidToken) {
				abortWithError(c, NewHTTPError(http.StatusInternalServerError, "auth_failed", apperrors.MessageOf(err), err))
				return
			}
			abortWithError(c, fromDomainError(err))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
