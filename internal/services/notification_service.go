package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/domain"
	"github.com/tbourn/alumni-portal/internal/repo"
	"github.com/tbourn/alumni-portal/internal/utils"
)

const (
	defaultNotificationPage = 50
	defaultNotificationMax  = 200
)

// NotificationService exposes a user's durable notifications. Rows are
// created only by the Producer; this service reads and marks them.
type NotificationService struct {
	DB *gorm.DB
	// PageMax caps List; <= 0 uses the default.
	PageMax int
}

// ClampLimit maps a requested page size onto [1, PageMax], 0 meaning default.
func (s *NotificationService) ClampLimit(limit int) int {
	max := s.PageMax
	if max <= 0 {
		max = defaultNotificationMax
	}
	if limit <= 0 {
		return utils.ClampInt(defaultNotificationPage, 1, max)
	}
	return utils.ClampInt(limit, 1, max)
}

// List returns userID's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, limit int, unreadOnly bool) ([]domain.Notification, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("limit", limit),
			attribute.Bool("unread_only", unreadOnly),
		),
	)
	defer span.End()
	return repo.ListNotifications(ctx, s.DB, userID, s.ClampLimit(limit), unreadOnly)
}

// MarkRead marks one of userID's notifications read. Repeating it is a no-op.
// Someone else's notification is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("notification.id", id)),
	)
	defer span.End()

	if err := repo.MarkNotificationRead(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

// MarkAllRead marks every unread notification of userID read and returns how
// many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "MarkAllRead", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	n, err := repo.MarkAllNotificationsRead(ctx, s.DB, userID)
	span.SetAttributes(attribute.Int64("updated", n))
	return n, err
}

// UnreadCount returns the number of unread notifications for userID.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return repo.CountUnreadNotifications(ctx, s.DB, userID)
}
