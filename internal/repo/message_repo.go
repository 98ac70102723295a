// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for direct messages.
//
// Soft-deleted rows are excluded by GORM's default scope, so every listing
// and point read here already hides them.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// CreateMessage inserts a new unread message row.
func CreateMessage(ctx context.Context, db *gorm.DB, senderID, receiverID, subject, content string) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Subject:    subject,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListInbox returns messages received by userID, newest first (CreatedAt DESC, ID DESC).
func ListInbox(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Message, error) {
	return listMailbox(ctx, db, "receiver_id = ?", userID, limit)
}

// ListSent returns messages sent by userID, newest first (CreatedAt DESC, ID DESC).
func ListSent(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Message, error) {
	return listMailbox(ctx, db, "sender_id = ?", userID, limit)
}

func listMailbox(ctx context.Context, db *gorm.DB, where, userID string, limit int) ([]domain.Message, error) {
	out := []domain.Message{}
	q := db.WithContext(ctx).Where(where, userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkMessageRead flips is_read for a message addressed to receiverID.
// It reports whether a row actually changed; an already-read message is not
// an error.
func MarkMessageRead(ctx context.Context, db *gorm.DB, id, receiverID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND receiver_id = ? AND is_read = ?", id, receiverID, false).
		Update("is_read", true)
	return res.RowsAffected > 0, res.Error
}

// SoftDeleteMessage hides a message sent by senderID. Returns ErrNotFound when
// no row matched.
func SoftDeleteMessage(ctx context.Context, db *gorm.DB, id, senderID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", id, senderID).
		Delete(&domain.Message{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
