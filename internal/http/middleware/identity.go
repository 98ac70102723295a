package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// HeaderUserID carries the caller identity asserted by the upstream gateway.
const HeaderUserID = "X-User-ID"

// ctxKeyUser holds the resolved *domain.User.
const ctxKeyUser = "user"

// UserLookup resolves a user id with a point read; a missing user is
// gorm.ErrRecordNotFound.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Identity resolves X-User-ID against the store. A missing or unknown id is
// answered with 401; a lookup failure with 503. On success the id is stored
// under "userID", the user under "user", and the request logger gains a
// user_id field.
func Identity(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if id == "" {
			abortIdentity(c, http.StatusUnauthorized, "unauthorized", "missing "+HeaderUserID)
			return
		}
		u, err := users.GetUser(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortIdentity(c, http.StatusUnauthorized, "unauthorized", "unknown user")
				return
			}
			LoggerFrom(c).Error().Err(err).Msg("identity lookup failed")
			abortIdentity(c, http.StatusServiceUnavailable, "unavailable", "identity lookup failed")
			return
		}

		c.Set("userID", u.ID)
		c.Set(ctxKeyUser, u)
		l := LoggerFrom(c).With().Str("user_id", u.ID).Logger()
		c.Set("logger", &l)
		c.Next()
	}
}

// CurrentUser returns the user resolved by Identity, if any.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

func abortIdentity(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       code,
		"message":    msg,
	})
}
