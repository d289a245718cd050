package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yanqian/health-insight/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// statusByCode maps domain error codes onto transport status codes.
var statusByCode = map[string]int{
	apperrors.CodeInvalidInput:       http.StatusBadRequest,
	apperrors.CodeInvalidCredentials: http.StatusUnauthorized,
	"unauthorized":                   http.StatusUnauthorized,
	apperrors.CodeInvalidToken:       http.StatusForbidden,
	apperrors.CodeNotFound:           http.StatusNotFound,
	"user_not_found":                 http.StatusNotFound,
	"username_exists":                http.StatusConflict,
	"auth_not_configured":            http.StatusServiceUnavailable,
	"oauth_exchange_failed":          http.StatusBadGateway,
	apperrors.CodeUpstream:           http.StatusBadGateway,
	"llm_error":                      http.StatusBadGateway,
}

// fromDomainError converts a service error into its transport form.
func fromDomainError(err error) *HTTPError {
	code := apperrors.CodeOf(err)
	if code == "" {
		return asHTTPError(err)
	}
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return NewHTTPError(status, code, apperrors.MessageOf(err), err)
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    apperrors.CodeInternal,
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
