package realtime

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Defaults for ClientOptions fields left zero.
const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256
	authTimeout           = 5 * time.Second
)

var (
	// ErrClientClosed is returned by Send after the connection has shut down.
	ErrClientClosed = errors.New("realtime: client closed")
	// ErrSendBufferFull is returned by Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("realtime: send buffer full")
)

// clientSeq generates process-unique connection ids.
var clientSeq atomic.Uint64

// ClientOptions tunes a connection's timeouts and buffers.
type ClientOptions struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	return o
}

// pingPeriod must stay below PongWait.
func (o ClientOptions) pingPeriod() time.Duration { return (o.PongWait * 9) / 10 }

// Client is one websocket connection. It implements Handle.
//
// Outbound frames go through a buffered queue drained by a single writer
// goroutine; Send never blocks. The queue is never closed, shutdown is
// signalled through done instead so a late Send cannot panic.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once

	auth *Authenticator
	reg  *Registry
	opts ClientOptions
	log  zerolog.Logger
	ctx  context.Context

	mu       sync.Mutex
	userID   string
	channels map[string]struct{}
}

func newClient(ctx context.Context, conn *websocket.Conn, auth *Authenticator, reg *Registry, opts ClientOptions, log zerolog.Logger) *Client {
	opts = opts.withDefaults()
	id := "c" + strconv.FormatUint(clientSeq.Add(1), 10)
	return &Client{
		id:       id,
		conn:     conn,
		send:     make(chan Event, opts.SendBuffer),
		done:     make(chan struct{}),
		auth:     auth,
		reg:      reg,
		opts:     opts,
		log:      log.With().Str("conn_id", id).Logger(),
		ctx:      ctx,
		channels: make(map[string]struct{}),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// UserID returns the identity the connection last authenticated as.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Channels returns the logical channels joined so far, sorted.
func (c *Client) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Send enqueues ev without blocking.
func (c *Client) Send(ev Event) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- ev:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBufferFull
	}
}

// Close stops both pumps. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		openConns.Dec()
	})
}

// Start runs the read and write pumps.
func (c *Client) Start() {
	openConns.Inc()
	go c.writePump()
	go c.readPump()
}

// bind records userID as the current identity and returns the previous one.
func (c *Client) bind(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.userID
	c.userID = userID
	c.channels[UserChannel(userID)] = struct{}{}
	return prev
}

func (c *Client) leave(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, UserChannel(userID))
}

func (c *Client) readPump() {
	defer func() {
		n := c.reg.Unregister(c)
		c.Close()
		_ = c.conn.Close()
		c.log.Info().Int("entries_removed", n).Msg("realtime: connection closed")
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		c.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		in, err := decodeInbound(raw)
		if err != nil {
			c.log.Debug().Err(err).Msg("realtime: malformed frame ignored")
			continue
		}
		c.handle(in)
	}
}

func (c *Client) handle(in inbound) {
	switch in.Name {
	case EventPing:
		_ = c.Send(Event{Name: EventPong})
	case EventAuthenticate:
		var p AuthPayload
		if len(in.Data) > 0 {
			if err := json.Unmarshal(in.Data, &p); err != nil {
				_ = c.Send(Event{Name: EventAuthError, Data: AuthErrorPayload{Message: "malformed authenticate payload"}})
				return
			}
		}
		ctx, cancel := context.WithTimeout(c.ctx, authTimeout)
		defer cancel()
		userID, err := c.auth.Verify(ctx, Claim{UserID: p.UserID, Token: p.Token})
		if err != nil {
			msg := "authentication failed"
			if !errors.Is(err, ErrUnauthenticated) {
				msg = "authentication unavailable"
				c.log.Error().Err(err).Msg("realtime: re-authenticate lookup failed")
			}
			_ = c.Send(Event{Name: EventAuthError, Data: AuthErrorPayload{Message: msg}})
			return
		}
		c.auth.Admit(userID, c)
		_ = c.Send(Event{Name: EventAuthenticated, Data: AuthenticatedPayload{UserID: userID}})
	default:
		c.log.Debug().Str("event", in.Name).Msg("realtime: unknown frame ignored")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.log.Error().Err(err).Msg("failed to set write deadline")
				c.Close()
				return
			}
			b, err := encodeEvent(ev)
			if err != nil {
				c.log.Error().Err(err).Str("event", ev.Name).Msg("failed to encode frame")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Warn().Err(err).Str("event", ev.Name).Msg("failed to write frame")
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteWait))
			return
		}
	}
}
