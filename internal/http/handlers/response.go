// Package handlers holds the gin handlers for the portal API: messages,
// notifications, users and the community actions that produce notifications.
//
// Every failure is answered with an ErrorResponse carrying a stable code and
// the request id, so a client report can be matched to the server log line:
//
//	HTTP/1.1 403 Forbidden
//	{"request_id":"6f1c…","code":"forbidden","message":"only the receiver can mark a message read"}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/alumni-portal/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID.
	RequestID string `json:"request_id,omitempty" example:"6f1c2a0e-8f8e-4c1b-9a53-0d6c3f1e2b7a"`
	// Machine-readable, stable across releases (see errors.go).
	Code string `json:"code" example:"forbidden"`
	// Safe to show to the user.
	Message string `json:"message" example:"only the receiver can mark a message read"`
}

// fail aborts with an ErrorResponse. Server-side failures are logged on the
// request logger, which already carries request_id and user_id.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("route", c.FullPath()).
			Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute, NoMethod and health failures with the
// same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func created(c *gin.Context, body any) { c.JSON(http.StatusCreated, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
