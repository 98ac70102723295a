// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds the social rows that notification producers
// write: posts and their likes and comments, connection requests, events with
// RSVPs, and mentorship requests.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// CreatePost inserts a post authored by authorID.
func CreatePost(ctx context.Context, db *gorm.DB, authorID, content string) (*domain.Post, error) {
	p := &domain.Post{ID: uuid.NewString(), AuthorID: authorID, Content: content, CreatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPost fetches a post by ID.
func GetPost(ctx context.Context, db *gorm.DB, id string) (*domain.Post, error) {
	var p domain.Post
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePostLike records userID liking postID. A second like yields ErrDuplicate.
func CreatePostLike(ctx context.Context, db *gorm.DB, postID, userID string) (*domain.PostLike, error) {
	l := &domain.PostLike{ID: uuid.NewString(), PostID: postID, UserID: userID, CreatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return l, nil
}

// CreateComment inserts a comment; parentID is nil for top-level comments.
func CreateComment(ctx context.Context, db *gorm.DB, postID, authorID string, parentID *string, content string) (*domain.Comment, error) {
	c := &domain.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  authorID,
		ParentID:  parentID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetComment fetches a comment by ID.
func GetComment(ctx context.Context, db *gorm.DB, id string) (*domain.Comment, error) {
	var c domain.Comment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindPendingConnection returns a pending request between a and b in either
// direction, or ErrNotFound.
func FindPendingConnection(ctx context.Context, db *gorm.DB, a, b string) (*domain.ConnectionRequest, error) {
	var cr domain.ConnectionRequest
	err := db.WithContext(ctx).
		Where("status = ?", domain.ConnectionPending).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)", a, b, b, a).
		First(&cr).Error
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// CreateConnectionRequest inserts a pending request from requesterID to addresseeID.
func CreateConnectionRequest(ctx context.Context, db *gorm.DB, requesterID, addresseeID string) (*domain.ConnectionRequest, error) {
	cr := &domain.ConnectionRequest{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      domain.ConnectionPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(cr).Error; err != nil {
		return nil, err
	}
	return cr, nil
}

// GetConnectionRequest fetches a connection request by ID.
func GetConnectionRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ConnectionRequest, error) {
	var cr domain.ConnectionRequest
	if err := db.WithContext(ctx).Where("id = ?", id).First(&cr).Error; err != nil {
		return nil, err
	}
	return &cr, nil
}

// UpdateConnectionStatus moves a pending request to status. Returns
// ErrNotFound when the request is missing or no longer pending.
func UpdateConnectionStatus(ctx context.Context, db *gorm.DB, id, status string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ConnectionRequest{}).
		Where("id = ? AND status = ?", id, domain.ConnectionPending).
		Updates(map[string]any{"status": status, "responded_at": at.UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateEvent inserts an event organized by organizerID.
func CreateEvent(ctx context.Context, db *gorm.DB, organizerID, title string, startsAt time.Time) (*domain.Event, error) {
	e := &domain.Event{
		ID:          uuid.NewString(),
		OrganizerID: organizerID,
		Title:       title,
		StartsAt:    startsAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// GetEvent fetches an event by ID.
func GetEvent(ctx context.Context, db *gorm.DB, id string) (*domain.Event, error) {
	var e domain.Event
	if err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertRSVP stores userID's answer for eventID, replacing any earlier one.
func UpsertRSVP(ctx context.Context, db *gorm.DB, eventID, userID, status string) (*domain.EventRSVP, error) {
	now := time.Now().UTC()
	r := &domain.EventRSVP{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    userID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(r).Error
	if err != nil {
		return nil, err
	}
	var out domain.EventRSVP
	if err := db.WithContext(ctx).Where("event_id = ? AND user_id = ?", eventID, userID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMentorshipRequest inserts a pending mentorship request.
func CreateMentorshipRequest(ctx context.Context, db *gorm.DB, menteeID, mentorID, message string) (*domain.MentorshipRequest, error) {
	mr := &domain.MentorshipRequest{
		ID:        uuid.NewString(),
		MenteeID:  menteeID,
		MentorID:  mentorID,
		Message:   message,
		Status:    domain.ConnectionPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(mr).Error; err != nil {
		return nil, err
	}
	return mr, nil
}
