// Package httpapi wires the HTTP transport (Gin) to the portal services, the
// realtime gateway, middleware, and route handlers.
//
// Layout:
//   - global middleware: tracing, correlation IDs, redacted access logs,
//     recovery, body cap, metrics, gzip, CORS, security headers
//   - operational routes: /health, /metrics, /swagger (optional)
//   - the websocket gateway at cfg.Realtime.Path; it authenticates its own
//     handshake and sits outside the API group
//   - the versioned API under cfg.APIBasePath: signup is public, every other
//     route runs behind Identity, then idempotency and rate limiting
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/alumni-portal/docs"
	"github.com/tbourn/alumni-portal/internal/config"
	"github.com/tbourn/alumni-portal/internal/http/handlers"
	"github.com/tbourn/alumni-portal/internal/http/middleware"
	"github.com/tbourn/alumni-portal/internal/repo"
	"github.com/tbourn/alumni-portal/internal/services"
)

// Deps are the long-lived collaborators built by the binary.
type Deps struct {
	DB *gorm.DB
	// Gateway serves the websocket handshake; nil leaves the path unmounted.
	Gateway http.Handler
	// Notifier pushes committed notifications; nil stores without pushing.
	Notifier services.Notifier
}

// RegisterRoutes attaches all middleware and HTTP endpoints to r and returns
// the handler set it mounted.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII and token scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. gzip (never on the websocket path)
//  8. CORS and security headers
//
// On the API group: Identity, then idempotency (needs the caller), then the
// per-user rate limiter (honors idempotent replays).
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) *handlers.Handlers {
	r.HandleMethodNotAllowed = true
	db := deps.DB
	apiBase := cfg.APIBasePath

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key", "Sec-WebSocket-Protocol"},
	}))
	r.Use(middleware.Recovery())

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(limitBody(maxBody))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{cfg.Realtime.Path, "/metrics"})))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		NoStorePrefixes: []string{
			joinPath(apiBase, "/messages"),
			joinPath(apiBase, "/notifications"),
			joinPath(apiBase, "/users/me"),
		},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeUnavailable, "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if deps.Gateway != nil {
		r.GET(cfg.Realtime.Path, gin.WrapH(deps.Gateway))
	}

	// Services share one producer so every notification path dispatches alike.
	producer := &services.Producer{DB: db, Log: log.Logger}
	if deps.Notifier != nil {
		producer.Notifier = deps.Notifier
	}
	userSvc := &services.UserService{DB: db, Producer: producer}
	h := handlers.New(
		&services.MessageService{
			DB:              db,
			Producer:        producer,
			MaxContentRunes: cfg.Messaging.MaxRunes,
			MailboxLimit:    cfg.Messaging.MailboxLimit,
		},
		&services.NotificationService{DB: db, PageMax: cfg.Messaging.NotificationMax},
		userSvc,
		&services.SocialService{DB: db, Producer: producer, MaxContentRunes: cfg.Messaging.MaxRunes},
	)
	h.DB = db
	if cfg.IdempotencyTTL > 0 {
		h.IdempotencyTTL = cfg.IdempotencyTTL
	}

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	api := groupWithPrefix(r, apiBase)

	// Signup happens before the caller has an account.
	api.POST("/users", rl.Handler(), h.Signup)

	authed := api.Group("")
	authed.Use(
		middleware.Identity(userSvc),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db)),
		rl.Handler(),
	)
	{
		authed.GET("/users/me", h.Me)

		authed.POST("/messages", h.SendMessage)
		authed.GET("/messages/inbox", h.Inbox)
		authed.GET("/messages/sent", h.Sent)
		authed.GET("/messages/conversations", h.Conversations)
		authed.PUT("/messages/:id/read", h.MarkMessageRead)
		authed.DELETE("/messages/:id", h.DeleteMessage)

		authed.GET("/notifications", h.ListNotifications)
		authed.GET("/notifications/unread-count", h.UnreadNotificationCount)
		authed.PUT("/notifications/read-all", h.MarkAllNotificationsRead)
		authed.PUT("/notifications/:id/read", h.MarkNotificationRead)

		authed.POST("/posts", h.CreatePost)
		authed.POST("/posts/:id/likes", h.LikePost)
		authed.POST("/posts/:id/comments", h.CommentOnPost)
		authed.POST("/connections", h.RequestConnection)
		authed.PUT("/connections/:id", h.RespondConnection)
		authed.POST("/events", h.CreateEvent)
		authed.POST("/events/:id/rsvp", h.RSVPEvent)
		authed.POST("/mentorship", h.RequestMentorship)

		authed.PUT("/admin/users/:id/approve", h.ApproveUser)
		authed.PUT("/admin/users/:id/linkedin", h.SyncLinkedIn)
	}
	return h
}

// idempotencyLookup reports whether a still-valid record exists. Lookup
// errors read as "no record" so a store hiccup never blocks a send.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

var (
	corsMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
		middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	corsExpose = []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
)

// corsMiddleware allows every origin when none are configured, otherwise
// echoes allow-listed origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// ACAO: * even without an Origin header, for probes and curl.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins: true,
				AllowMethods:    corsMethods,
				AllowHeaders:    corsHeaders,
				ExposeHeaders:   corsExpose,
				MaxAge:          12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  corsMethods,
			AllowHeaders:  corsHeaders,
			ExposeHeaders: corsExpose,
			MaxAge:        12 * time.Hour,
		}),
	}
}

// limitBody caps request bodies with http.MaxBytesReader; oversized reads
// fail in the binder and answer 400.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
