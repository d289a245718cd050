package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/health-insight/internal/domain/auth"
)

const authClaimsKey = "auth_claims"

func setClaims(c *gin.Context, claims auth.Claims) {
	c.Set(authClaimsKey, claims)
}

func getClaims(c *gin.Context) (auth.Claims, bool) {
	value, ok := c.Get(authClaimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := value.(auth.Claims)
	return claims, ok
}

// requireUser returns the authenticated user id or aborts with 401.
func requireUser(c *gin.Context) (int64, bool) {
	claims, ok := getClaims(c)
	if !ok || claims.UserID <= 0 {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return 0, false
	}
	return claims.UserID, true
}
