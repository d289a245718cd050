package http

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	oauthStateCookieName = "health_oauth_state"
	oauthStateCookiePath = "/api/v1/auth/google"
	oauthStateMaxAge     = 300
)

type oauthStateCookie struct {
	State        string `json:"state"`
	CodeVerifier string `json:"verifier"`
}

func setOAuthStateCookie(c *gin.Context, state, codeVerifier string) {
	data, _ := json.Marshal(oauthStateCookie{State: state, CodeVerifier: codeVerifier})
	writeStateCookie(c, base64.RawURLEncoding.EncodeToString(data), oauthStateMaxAge)
}

func clearOAuthStateCookie(c *gin.Context) {
	writeStateCookie(c, "", -1)
}

func writeStateCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookieName, value, maxAge, oauthStateCookiePath, "", c.Request.TLS != nil, true)
}

// consumeOAuthState validates the callback state against the cookie and
// returns the PKCE verifier. The cookie is cleared either way.
func consumeOAuthState(c *gin.Context, state string) (string, bool) {
	value, err := c.Cookie(oauthStateCookieName)
	clearOAuthStateCookie(c)
	if err != nil || value == "" || state == "" {
		return "", false
	}
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", false
	}
	var payload oauthStateCookie
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", false
	}
	if payload.CodeVerifier == "" || subtle.ConstantTimeCompare([]byte(payload.State), []byte(state)) != 1 {
		return "", false
	}
	return payload.CodeVerifier, true
}
