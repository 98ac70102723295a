package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Gateway is the HTTP entry point for realtime connections. It verifies the
// claimed identity before upgrading, so an unknown user gets a plain 401 and
// never holds a websocket.
type Gateway struct {
	Auth           *Authenticator
	Registry       *Registry
	Options        ClientOptions
	AllowedOrigins []string
	Log            zerolog.Logger

	upgrader websocket.Upgrader
}

// NewGateway wires a Gateway. An empty allowedOrigins accepts any origin.
func NewGateway(auth *Authenticator, reg *Registry, opts ClientOptions, allowedOrigins []string, log zerolog.Logger) *Gateway {
	g := &Gateway{
		Auth:           auth,
		Registry:       reg,
		Options:        opts,
		AllowedOrigins: allowedOrigins,
		Log:            log,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		g.Log.Warn().Msg("realtime: connection rejected, missing Origin header")
		return false
	}
	for _, o := range g.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	g.Log.Warn().Str("origin", origin).Msg("realtime: connection rejected from unauthorized origin")
	return false
}

type refusal struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeRefusal(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	b, _ := json.Marshal(refusal{Code: code, Message: msg})
	_, _ = w.Write(b)
}

// ServeHTTP authenticates the connect handshake and upgrades the connection.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := g.Auth.Verify(r.Context(), ClaimFromRequest(r))
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			writeRefusal(w, http.StatusUnauthorized, "unauthorized", "unknown or missing user identity")
			return
		}
		g.Log.Error().Err(err).Msg("realtime: handshake lookup failed")
		writeRefusal(w, http.StatusServiceUnavailable, "unavailable", "identity check failed")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		g.Log.Debug().Err(err).Msg("realtime: upgrade failed")
		return
	}

	// The request context ends when this handler returns; the connection
	// outlives it but keeps its trace values.
	c := newClient(context.WithoutCancel(r.Context()), conn, g.Auth, g.Registry, g.Options, g.Log)
	g.Auth.Admit(userID, c)
	_ = c.Send(Event{Name: EventAuthenticated, Data: AuthenticatedPayload{UserID: userID}})
	c.Start()
}
