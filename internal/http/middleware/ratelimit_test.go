package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/messages/inbox", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	// An unverified header must not pick the bucket.
	c.Request.Header.Set(HeaderUserID, "mallory")

	key := KeyByUserOrIP()
	if got := key(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set("userID", "u123")
	if got := key(c); got != "user:u123" {
		t.Fatalf("identified key = %q", got)
	}
}

func TestRateLimiter_Buckets(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d; want coerced to 1", rl.burst)
	}
	if a, b := rl.getVisitor("user:alice"), rl.getVisitor("user:alice"); a != b {
		t.Fatalf("bucket not reused")
	}
	if rl.getVisitor("user:alice") == rl.getVisitor("user:bob") {
		t.Fatalf("users share a bucket")
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	rl.ttl = time.Nanosecond

	rl.mu.Lock()
	rl.visitors["user:gone"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = gcEvery - 1
	rl.mu.Unlock()

	_ = rl.getVisitor("user:new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["user:gone"]; ok {
		t.Fatalf("idle bucket survived the sweep")
	}
	if _, ok := rl.visitors["user:new"]; !ok {
		t.Fatalf("new bucket missing")
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/messages", nil)

	for _, tc := range []struct {
		val  any
		want bool
	}{{nil, false}, {true, true}, {"yes", false}} {
		if tc.val != nil {
			c.Set(ctxKeyRateBypass, tc.val)
		}
		if got := IsRateBypass(c); got != tc.want {
			t.Fatalf("IsRateBypass with %v = %v", tc.val, got)
		}
	}
}

func TestRateLimiter_Handler_DeniesThenBypassesReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-1")
		c.Set("userID", "alice")
		if c.GetHeader(HeaderIdempotencyKey) != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.POST("/messages", func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(key string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/messages", nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		r.ServeHTTP(w, req)
		return w
	}

	if w := send(""); w.Code != http.StatusCreated {
		t.Fatalf("first send = %d", w.Code)
	}
	w := send("")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second send = %d Retry-After=%q", w.Code, w.Header().Get("Retry-After"))
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != "rid-1" {
		t.Fatalf("unexpected body: %v", body)
	}

	// A recognized retry is served even with an empty bucket.
	if w := send("k-1"); w.Code != http.StatusCreated {
		t.Fatalf("replay = %d", w.Code)
	}
}

func TestRateLimiter_RetryAfterFollowsRefillRate(t *testing.T) {
	cases := []struct {
		rps  float64
		want string
	}{
		{10, "1"},
		{1, "1"},
		{0.5, "2"},
		{0.1, "10"},
		{0, "60"},
	}
	for _, tc := range cases {
		if got := NewRateLimiter(tc.rps, 1, KeyByUserOrIP()).retryAfter(); got != tc.want {
			t.Fatalf("retryAfter(rps=%v) = %q; want %q", tc.rps, got, tc.want)
		}
	}
}

func TestRateLimiter_SeparateBucketsPerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.01, 1, KeyByUserOrIP())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader(HeaderUserID); u != "" {
			c.Set("userID", u)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/notifications", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(user string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
		req.Header.Set(HeaderUserID, user)
		r.ServeHTTP(w, req)
		return w.Code
	}
	if do("alice") != http.StatusOK || do("bob") != http.StatusOK {
		t.Fatalf("first request per user should pass")
	}
	if got := do("alice"); got != http.StatusTooManyRequests {
		t.Fatalf("alice second request = %d; want 429", got)
	}
}
