package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// CreateNotification inserts n, assigning an ID and CreatedAt when unset.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(n).Error
}

// ListNotifications returns the user's notifications newest first. When
// unreadOnly is set only rows with is_read = false are returned.
func ListNotifications(ctx context.Context, db *gorm.DB, userID string, limit int, unreadOnly bool) ([]domain.Notification, error) {
	out := []domain.Notification{}
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	q = q.Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MarkNotificationRead marks the notification read when it belongs to userID.
// A notification owned by someone else is reported as ErrNotFound.
// Re-marking an already-read row succeeds without writing.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id, userID string) error {
	var n domain.Notification
	if err := db.WithContext(ctx).
		Select("id", "is_read").
		Where("id = ? AND user_id = ?", id, userID).
		First(&n).Error; err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Update("is_read", true).Error
}

// MarkAllNotificationsRead marks every unread notification of userID read and
// returns how many rows changed.
func MarkAllNotificationsRead(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnreadNotifications returns the number of unread notifications for userID.
func CountUnreadNotifications(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}
