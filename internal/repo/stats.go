// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// Stats summarizes a row set for cache validation: a read flag flip changes
// Unread, a new row changes Count and Latest.
type Stats struct {
	Count  int64
	Unread int64
	Latest *time.Time
}

// NotificationsStats returns aggregate metadata for userID's notifications.
// When the user has none, Count is 0 and Latest is nil.
func NotificationsStats(ctx context.Context, db *gorm.DB, userID string) (Stats, error) {
	return mailStats(ctx, db, &domain.Notification{}, "user_id = ?", userID, "user_id = ? AND is_read = ?")
}

// InboxStats returns aggregate metadata for messages received by userID.
func InboxStats(ctx context.Context, db *gorm.DB, userID string) (Stats, error) {
	return mailStats(ctx, db, &domain.Message{}, "receiver_id = ?", userID, "receiver_id = ? AND is_read = ?")
}

func mailStats(ctx context.Context, db *gorm.DB, model any, scope, userID, unreadScope string) (Stats, error) {
	var s Stats
	base := db.WithContext(ctx).Model(model)

	if err := base.Where(scope, userID).Count(&s.Count).Error; err != nil {
		return Stats{}, err
	}
	if s.Count == 0 {
		return s, nil
	}
	if err := db.WithContext(ctx).Model(model).Where(unreadScope, userID, false).Count(&s.Unread).Error; err != nil {
		return Stats{}, err
	}

	// Latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err := db.WithContext(ctx).Model(model).Where(scope, userID).
		Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return Stats{}, err
	}
	s.Latest = &row.CreatedAt
	return s, nil
}
