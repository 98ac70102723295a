package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/alumni-portal/internal/config"
	"github.com/tbourn/alumni-portal/internal/domain"
	"github.com/tbourn/alumni-portal/internal/http/handlers"
	"github.com/tbourn/alumni-portal/internal/realtime"
	"github.com/tbourn/alumni-portal/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   50,
		Security:    config.SecurityConfig{EnableHSTS: false},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		Realtime:    config.RealtimeConfig{Path: "/ws"},
	}
}

func seedUsers(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		u := &domain.User{ID: id, Email: id + "@alumni.example", FirstName: strings.ToUpper(id[:1]) + id[1:], Status: domain.StatusApproved}
		if err := repo.CreateUser(context.Background(), db, u); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, Deps{DB: newTestDB(t)}, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all expected '*', got %q", got)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d; want 404", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d; want 405", w.Code)
	}
}

func TestRegisterRoutes_HealthReportsClosedDB(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, Deps{DB: db}, testConfig())

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /health on closed db = %d; want 503", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://alumni.example"}}
	RegisterRoutes(r, Deps{DB: newTestDB(t)}, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://alumni.example")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://alumni.example" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "http://evil.example" {
		t.Fatalf("unlisted origin echoed")
	}
}

func TestRegisterRoutes_IdentityAndSignup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	seedUsers(t, db, "alice")
	RegisterRoutes(r, Deps{DB: db}, testConfig())

	for _, user := range []string{"", "ghost"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
		if user != "" {
			req.Header.Set("X-User-ID", user)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("caller %q = %d; want 401", user, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("X-User-ID", "alice")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /users/me = %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("profile should not be cached; Cache-Control=%q", cc)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"email":"bob@alumni.example","first_name":"Bob"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("public signup = %d body=%s", w.Code, w.Body.String())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func Test_joinPath(t *testing.T) {
	if got := joinPath("/", "/messages"); got != "/messages" {
		t.Fatalf("root join = %q", got)
	}
	if got := joinPath("/api/v1", "/messages"); got != "/api/v1/messages" {
		t.Fatalf("prefixed join = %q", got)
	}
}

// --- end to end over a real listener ---

type portal struct {
	srv *httptest.Server
	reg *realtime.Registry
	db  *gorm.DB
}

func newPortal(t *testing.T, users ...string) *portal {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	seedUsers(t, db, users...)

	reg := realtime.NewRegistry()
	auth := &realtime.Authenticator{Users: repoUsers{db}, Registry: reg, Log: zerolog.Nop()}
	gw := realtime.NewGateway(auth, reg, realtime.ClientOptions{WriteWait: time.Second, PongWait: 5 * time.Second}, nil, zerolog.Nop())

	r := gin.New()
	RegisterRoutes(r, Deps{DB: db, Gateway: gw, Notifier: realtime.NewDispatcher(reg, zerolog.Nop())}, testConfig())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &portal{srv: srv, reg: reg, db: db}
}

type repoUsers struct{ db *gorm.DB }

func (u repoUsers) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return repo.GetUser(ctx, u.db, id)
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (p *portal) connect(t *testing.T, user string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(p.srv.URL, "http") + "/ws?user_id=" + user
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if resp != nil && resp.Body != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		t.Fatalf("decode frame %s: %v", b, err)
	}
	return f
}

func (p *portal) call(t *testing.T, method, path, user, body string, out any) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, p.srv.URL+"/api/v1"+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", user)
	resp, err := p.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEndToEnd_ConnectedReceiverGetsPush(t *testing.T) {
	p := newPortal(t, "alice", "bob")

	conn, _, err := p.connect(t, "bob")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if f := readFrame(t, conn); f.Event != realtime.EventAuthenticated {
		t.Fatalf("first frame = %q; want authenticated", f.Event)
	}
	waitFor(t, func() bool { _, ok := p.reg.Lookup("bob"); return ok })

	var sent handlers.MessageResponse
	if code := p.call(t, http.MethodPost, "/messages", "alice", `{"receiverId":"bob","content":"hi"}`, &sent); code != http.StatusCreated {
		t.Fatalf("send = %d", code)
	}

	f := readFrame(t, conn)
	if f.Event != realtime.EventNotification {
		t.Fatalf("frame = %q; want notification", f.Event)
	}
	var payload realtime.NotificationPayload
	if err := json.Unmarshal(f.Data, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Type != domain.NotifyMessage || payload.RelatedID != sent.Message.ID {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.RedirectURL != "/messages?with=alice" {
		t.Fatalf("redirect = %q", payload.RedirectURL)
	}

	// The sender is not notified about their own message.
	var mine handlers.NotificationsResponse
	p.call(t, http.MethodGet, "/notifications", "alice", "", &mine)
	if len(mine.Notifications) != 0 {
		t.Fatalf("sender got %d notifications", len(mine.Notifications))
	}
}

func TestEndToEnd_OfflineReceiverSeesItOnPoll(t *testing.T) {
	p := newPortal(t, "alice", "bob")

	var sent handlers.MessageResponse
	if code := p.call(t, http.MethodPost, "/messages", "alice", `{"receiverId":"bob","content":"While you were out"}`, &sent); code != http.StatusCreated {
		t.Fatalf("send = %d", code)
	}

	var notes handlers.NotificationsResponse
	if code := p.call(t, http.MethodGet, "/notifications?unread_only=true", "bob", "", &notes); code != http.StatusOK {
		t.Fatalf("notifications = %d", code)
	}
	if len(notes.Notifications) != 1 || notes.Notifications[0].RelatedID != sent.Message.ID {
		t.Fatalf("notifications = %+v", notes.Notifications)
	}

	var inbox handlers.MessagesResponse
	p.call(t, http.MethodGet, "/messages/inbox", "bob", "", &inbox)
	if len(inbox.Messages) != 1 || inbox.Messages[0].IsRead {
		t.Fatalf("inbox = %+v", inbox.Messages)
	}
}

func TestEndToEnd_ReadDecrementsUnreadByOne(t *testing.T) {
	p := newPortal(t, "alice", "bob")

	var first, second handlers.MessageResponse
	p.call(t, http.MethodPost, "/messages", "alice", `{"receiverId":"bob","content":"one"}`, &first)
	p.call(t, http.MethodPost, "/messages", "alice", `{"receiver_id":"bob","content":"two"}`, &second)

	var before handlers.ConversationsResponse
	p.call(t, http.MethodGet, "/messages/conversations", "bob", "", &before)
	if before.UnreadTotal != 2 || len(before.Conversations) != 1 {
		t.Fatalf("before = %+v", before)
	}

	if code := p.call(t, http.MethodPut, "/messages/"+first.Message.ID+"/read", "bob", "", nil); code != http.StatusNoContent {
		t.Fatalf("mark read = %d", code)
	}
	// Reading again changes nothing.
	if code := p.call(t, http.MethodPut, "/messages/"+first.Message.ID+"/read", "bob", "", nil); code != http.StatusNoContent {
		t.Fatalf("mark read again = %d", code)
	}

	var after handlers.ConversationsResponse
	p.call(t, http.MethodGet, "/messages/conversations", "bob", "", &after)
	if after.UnreadTotal != before.UnreadTotal-1 {
		t.Fatalf("unread %d -> %d; want exactly one fewer", before.UnreadTotal, after.UnreadTotal)
	}

	// Only the receiver may mark it.
	if code := p.call(t, http.MethodPut, "/messages/"+second.Message.ID+"/read", "alice", "", nil); code != http.StatusForbidden {
		t.Fatalf("sender mark read = %d; want 403", code)
	}
}

func TestEndToEnd_SendBodyKeys(t *testing.T) {
	p := newPortal(t, "alice", "bob")

	cases := []struct {
		name, body string
		want       int
	}{
		{"camelCase", `{"receiverId":"bob","content":"hi"}`, http.StatusCreated},
		{"snake_case alias", `{"receiver_id":"bob","content":"hi again"}`, http.StatusCreated},
		{"no receiver", `{"content":"hi"}`, http.StatusBadRequest},
		{"no content", `{"receiverId":"bob"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if code := p.call(t, http.MethodPost, "/messages", "alice", tc.body, nil); code != tc.want {
			t.Fatalf("%s: POST /messages = %d; want %d", tc.name, code, tc.want)
		}
	}

	var inbox handlers.MessagesResponse
	p.call(t, http.MethodGet, "/messages/inbox", "bob", "", &inbox)
	if len(inbox.Messages) != 2 {
		t.Fatalf("bob inbox = %d messages; want 2", len(inbox.Messages))
	}
	var notes handlers.NotificationsResponse
	p.call(t, http.MethodGet, "/notifications", "bob", "", &notes)
	if len(notes.Notifications) != 2 {
		t.Fatalf("bob notifications = %d; want 2", len(notes.Notifications))
	}
}

func TestEndToEnd_UnknownSocketUserRefused(t *testing.T) {
	p := newPortal(t, "alice")

	_, resp, err := p.connect(t, "ghost")
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake status = %v; want 401", resp)
	}
	if p.reg.Len() != 0 {
		t.Fatalf("registry should stay empty")
	}
}
