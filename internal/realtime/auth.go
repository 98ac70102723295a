package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// ErrUnauthenticated is returned when a claimed identity cannot be admitted.
var ErrUnauthenticated = errors.New("realtime: unauthenticated")

// UserLookup resolves a user by id with a single point read. A missing user
// must surface as gorm.ErrRecordNotFound.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Claim is an identity assertion as it arrives from a client: a raw user id
// or, in signed mode, a token.
type Claim struct {
	UserID string
	Token  string
}

// ClaimFromRequest extracts a claim from the connect handshake. The query
// parameters user_id and token are consulted first, then the X-User-ID and
// Authorization: Bearer headers.
func ClaimFromRequest(r *http.Request) Claim {
	q := r.URL.Query()
	c := Claim{
		UserID: strings.TrimSpace(q.Get("user_id")),
		Token:  strings.TrimSpace(q.Get("token")),
	}
	if c.UserID == "" {
		c.UserID = strings.TrimSpace(r.Header.Get("X-User-ID"))
	}
	if c.Token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			c.Token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	return c
}

// Authenticator verifies claimed identities against the user store and
// admits verified connections into the Registry.
//
// When Secret is non-empty, claims must be HS256 tokens whose subject is the
// user id; raw ids are refused. ReleasePrevious controls re-authentication:
// when false a connection that authenticates as a second user keeps its entry
// for the first one until it disconnects.
type Authenticator struct {
	Users           UserLookup
	Registry        *Registry
	Secret          []byte
	ReleasePrevious bool
	Log             zerolog.Logger
}

// Verify resolves c to an existing user id. It performs at most one store
// read. Unknown or malformed identities yield ErrUnauthenticated; store
// failures are returned wrapped as they are.
func (a *Authenticator) Verify(ctx context.Context, c Claim) (string, error) {
	userID, err := a.subject(c)
	if err != nil {
		handshakes.WithLabelValues("refused").Inc()
		return "", err
	}

	u, err := a.Users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			handshakes.WithLabelValues("refused").Inc()
			return "", ErrUnauthenticated
		}
		handshakes.WithLabelValues("error").Inc()
		return "", fmt.Errorf("realtime: lookup user: %w", err)
	}
	handshakes.WithLabelValues("ok").Inc()
	return u.ID, nil
}

func (a *Authenticator) subject(c Claim) (string, error) {
	if len(a.Secret) == 0 {
		if c.UserID == "" {
			return "", ErrUnauthenticated
		}
		return c.UserID, nil
	}
	if c.Token == "" {
		return "", ErrUnauthenticated
	}
	tok, err := jwt.ParseWithClaims(c.Token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil || !tok.Valid {
		return "", ErrUnauthenticated
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrUnauthenticated
	}
	return sub, nil
}

// Admit registers c under userID and joins it to the user's channel.
// With ReleasePrevious set, the entry for the user c previously
// authenticated as is dropped.
func (a *Authenticator) Admit(userID string, c *Client) {
	prev := c.bind(userID)
	a.Registry.Register(userID, c)
	if a.ReleasePrevious && prev != "" && prev != userID {
		a.Registry.Release(prev, c)
		c.leave(prev)
	}
	a.Log.Info().Str("conn_id", c.ID()).Str("user_id", userID).Str("previous_user_id", prev).
		Strs("channels", c.Channels()).
		Msg("realtime: connection authenticated")
}

// IssueToken signs a handshake token for userID valid for ttl.
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("token secret is empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// UserChannel names the per-user logical channel a connection joins once
// authenticated.
func UserChannel(userID string) string { return "user:" + userID }
