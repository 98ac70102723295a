// Package handlers exposes the alumni portal REST API.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services through the interfaces below, and translate results
// into the shared response envelope. Caller identity comes from the Identity
// middleware ("userID" in the Gin context).
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/conversation"
	"github.com/tbourn/alumni-portal/internal/domain"
)

//
// Service contracts (context-aware)
//

// MessageService covers direct messages and the conversation view.
type MessageService interface {
	Send(ctx context.Context, senderID, receiverID, subject, content string) (*domain.Message, error)
	Get(ctx context.Context, userID, id string) (*domain.Message, error)
	Inbox(ctx context.Context, userID string) ([]domain.Message, error)
	Sent(ctx context.Context, userID string) ([]domain.Message, error)
	MarkRead(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
	Conversations(ctx context.Context, userID string) ([]conversation.Conversation, error)
}

// NotificationService reads and marks a user's notifications.
type NotificationService interface {
	List(ctx context.Context, userID string, limit int, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// UserService covers signup, profile reads, and admin actions.
type UserService interface {
	Signup(ctx context.Context, email, firstName, lastName string) (*domain.User, error)
	Profile(ctx context.Context, id string) (*domain.User, error)
	ApproveSignup(ctx context.Context, adminID, userID string) (*domain.Notification, error)
	RecordLinkedInSync(ctx context.Context, adminID, userID, profileURL string) (*domain.Notification, error)
}

// SocialService covers the community actions that notify other users.
type SocialService interface {
	CreatePost(ctx context.Context, authorID, content string) (*domain.Post, error)
	LikePost(ctx context.Context, userID, postID string) (*domain.PostLike, error)
	Comment(ctx context.Context, userID, postID, parentID, content string) (*domain.Comment, error)
	RequestConnection(ctx context.Context, userID, addresseeID string) (*domain.ConnectionRequest, error)
	RespondConnection(ctx context.Context, userID, requestID string, accept bool) (*domain.ConnectionRequest, error)
	CreateEvent(ctx context.Context, userID, title string, startsAt time.Time) (*domain.Event, error)
	RSVP(ctx context.Context, userID, eventID, status string) (*domain.EventRSVP, error)
	RequestMentorship(ctx context.Context, userID, mentorID, note string) (*domain.MentorshipRequest, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. DB, when set, backs ETag computation and
// the idempotency store; both degrade to plain processing without it.
type Handlers struct {
	msgSvc    MessageService
	notifSvc  NotificationService
	userSvc   UserService
	socialSvc SocialService

	DB             *gorm.DB
	IdempotencyTTL time.Duration
}

// New constructs Handlers bound to the given services.
func New(msgSvc MessageService, notifSvc NotificationService, userSvc UserService, socialSvc SocialService) *Handlers {
	return &Handlers{
		msgSvc:         msgSvc,
		notifSvc:       notifSvc,
		userSvc:        userSvc,
		socialSvc:      socialSvc,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// userID returns the caller id set by the Identity middleware, falling back to
// the X-User-ID header for handlers mounted without it (tests).
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		return strings.TrimSpace(c.GetHeader("X-User-ID"))
	}
	return ""
}
