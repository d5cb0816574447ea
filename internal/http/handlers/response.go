// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the shared response helpers. Every failure goes through
// fail() so clients always get the same envelope: a stable machine-readable
// code, a human-readable message, and the request id for support.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "QUESTION_NOT_FOUND",
//	  "message": "question not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elinhq/go-ask-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints. Code is one
// of the constants in errors.go; RequestID echoes the X-Request-ID header.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"QUESTION_NOT_FOUND"`
	Message   string `json:"message" example:"question not found"`
}

// fail aborts the request with a structured error. Server-side failures
// (>= 500) are additionally logged through the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail for use outside the package, e.g. the
// router's NoRoute and NoMethod fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
