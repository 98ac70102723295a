package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/alumni-portal/internal/conversation"
	"github.com/tbourn/alumni-portal/internal/domain"
)

// Stub services delegate to func fields; an unexpected call panics on the nil
// field, which fails the test.

type stubMessages struct {
	send          func(ctx context.Context, from, to, subject, content string) (*domain.Message, error)
	get           func(ctx context.Context, userID, id string) (*domain.Message, error)
	inbox         func(ctx context.Context, userID string) ([]domain.Message, error)
	sent          func(ctx context.Context, userID string) ([]domain.Message, error)
	markRead      func(ctx context.Context, userID, id string) error
	del           func(ctx context.Context, userID, id string) error
	conversations func(ctx context.Context, userID string) ([]conversation.Conversation, error)
}

func (s *stubMessages) Send(ctx context.Context, from, to, subject, content string) (*domain.Message, error) {
	return s.send(ctx, from, to, subject, content)
}
func (s *stubMessages) Get(ctx context.Context, userID, id string) (*domain.Message, error) {
	return s.get(ctx, userID, id)
}
func (s *stubMessages) Inbox(ctx context.Context, userID string) ([]domain.Message, error) {
	return s.inbox(ctx, userID)
}
func (s *stubMessages) Sent(ctx context.Context, userID string) ([]domain.Message, error) {
	return s.sent(ctx, userID)
}
func (s *stubMessages) MarkRead(ctx context.Context, userID, id string) error {
	return s.markRead(ctx, userID, id)
}
func (s *stubMessages) Delete(ctx context.Context, userID, id string) error {
	return s.del(ctx, userID, id)
}
func (s *stubMessages) Conversations(ctx context.Context, userID string) ([]conversation.Conversation, error) {
	return s.conversations(ctx, userID)
}

type stubNotifications struct {
	list        func(ctx context.Context, userID string, limit int, unreadOnly bool) ([]domain.Notification, error)
	markRead    func(ctx context.Context, userID, id string) error
	markAllRead func(ctx context.Context, userID string) (int64, error)
	unreadCount func(ctx context.Context, userID string) (int64, error)
}

func (s *stubNotifications) List(ctx context.Context, userID string, limit int, unreadOnly bool) ([]domain.Notification, error) {
	return s.list(ctx, userID, limit, unreadOnly)
}
func (s *stubNotifications) MarkRead(ctx context.Context, userID, id string) error {
	return s.markRead(ctx, userID, id)
}
func (s *stubNotifications) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.markAllRead(ctx, userID)
}
func (s *stubNotifications) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.unreadCount(ctx, userID)
}

type stubUsers struct {
	signup   func(ctx context.Context, email, first, last string) (*domain.User, error)
	profile  func(ctx context.Context, id string) (*domain.User, error)
	approve  func(ctx context.Context, adminID, userID string) (*domain.Notification, error)
	linkedIn func(ctx context.Context, adminID, userID, url string) (*domain.Notification, error)
}

func (s *stubUsers) Signup(ctx context.Context, email, first, last string) (*domain.User, error) {
	return s.signup(ctx, email, first, last)
}
func (s *stubUsers) Profile(ctx context.Context, id string) (*domain.User, error) {
	return s.profile(ctx, id)
}
func (s *stubUsers) ApproveSignup(ctx context.Context, adminID, userID string) (*domain.Notification, error) {
	return s.approve(ctx, adminID, userID)
}
func (s *stubUsers) RecordLinkedInSync(ctx context.Context, adminID, userID, url string) (*domain.Notification, error) {
	return s.linkedIn(ctx, adminID, userID, url)
}

type stubSocial struct {
	createPost  func(ctx context.Context, author, content string) (*domain.Post, error)
	likePost    func(ctx context.Context, user, post string) (*domain.PostLike, error)
	comment     func(ctx context.Context, user, post, parent, content string) (*domain.Comment, error)
	requestConn func(ctx context.Context, user, addressee string) (*domain.ConnectionRequest, error)
	respondConn func(ctx context.Context, user, id string, accept bool) (*domain.ConnectionRequest, error)
	createEvent func(ctx context.Context, user, title string, at time.Time) (*domain.Event, error)
	rsvp        func(ctx context.Context, user, event, status string) (*domain.EventRSVP, error)
	mentorship  func(ctx context.Context, user, mentor, note string) (*domain.MentorshipRequest, error)
}

func (s *stubSocial) CreatePost(ctx context.Context, author, content string) (*domain.Post, error) {
	return s.createPost(ctx, author, content)
}
func (s *stubSocial) LikePost(ctx context.Context, user, post string) (*domain.PostLike, error) {
	return s.likePost(ctx, user, post)
}
func (s *stubSocial) Comment(ctx context.Context, user, post, parent, content string) (*domain.Comment, error) {
	return s.comment(ctx, user, post, parent, content)
}
func (s *stubSocial) RequestConnection(ctx context.Context, user, addressee string) (*domain.ConnectionRequest, error) {
	return s.requestConn(ctx, user, addressee)
}
func (s *stubSocial) RespondConnection(ctx context.Context, user, id string, accept bool) (*domain.ConnectionRequest, error) {
	return s.respondConn(ctx, user, id, accept)
}
func (s *stubSocial) CreateEvent(ctx context.Context, user, title string, at time.Time) (*domain.Event, error) {
	return s.createEvent(ctx, user, title, at)
}
func (s *stubSocial) RSVP(ctx context.Context, user, event, status string) (*domain.EventRSVP, error) {
	return s.rsvp(ctx, user, event, status)
}
func (s *stubSocial) RequestMentorship(ctx context.Context, user, mentor, note string) (*domain.MentorshipRequest, error) {
	return s.mentorship(ctx, user, mentor, note)
}

// newTestRouter mounts h with a fixed request id and the caller taken from
// X-User-ID, the way Identity would after a successful lookup.
func newTestRouter(h *Handlers, mount func(r *gin.Engine, h *Handlers)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		if u := c.GetHeader("X-User-ID"); u != "" {
			c.Set("userID", u)
		}
		c.Next()
	})
	mount(r, h)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONWithHeader(t, r, method, path, user, body, "", "")
}

func doJSONWithHeader(t *testing.T, r http.Handler, method, path, user string, body any, hk, hv string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if hk != "" {
		req.Header.Set(hk, hv)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}
