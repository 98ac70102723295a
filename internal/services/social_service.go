// Package services – SocialService
//
// SocialService implements the community actions that notify another user:
// post likes and comments, comment replies, connection requests and answers,
// event RSVPs, and mentorship requests. Every notifying write goes through
// the Producer so the action and its notification commit together.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/domain"
	"github.com/tbourn/alumni-portal/internal/repo"
)

const defaultMaxPostRunes = 5000

// SocialService coordinates posts, connections, events, and mentorship.
type SocialService struct {
	DB       *gorm.DB
	Producer *Producer
	// MaxContentRunes caps posts, comments, and mentorship notes.
	MaxContentRunes int
}

func (s *SocialService) maxRunes() int {
	if s.MaxContentRunes > 0 {
		return s.MaxContentRunes
	}
	return defaultMaxPostRunes
}

func (s *SocialService) span(ctx context.Context, name, userID string, kv ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := otel.Tracer("services/SocialService")
	return tr.Start(ctx, name, trace.WithAttributes(append(kv, attribute.String("user.id", userID))...))
}

// notFound maps repo.ErrNotFound onto the given sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return sentinel
	}
	return err
}

// CreatePost publishes a post. Nobody is notified.
func (s *SocialService) CreatePost(ctx context.Context, authorID, content string) (*domain.Post, error) {
	ctx, span := s.span(ctx, "CreatePost", authorID)
	defer span.End()

	content, err := checkText(content, s.maxRunes())
	if err != nil {
		return nil, err
	}
	return repo.CreatePost(ctx, s.DB, authorID, content)
}

// LikePost records a like and notifies the post author.
func (s *SocialService) LikePost(ctx context.Context, userID, postID string) (*domain.PostLike, error) {
	ctx, span := s.span(ctx, "LikePost", userID, attribute.String("post.id", postID))
	defer span.End()

	var like *domain.PostLike
	_, err := s.Producer.Commit(ctx, func(tx *gorm.DB) (*Notice, error) {
		p, err := repo.GetPost(ctx, tx, postID)
		if err != nil {
			return nil, notFound(err, ErrPostNotFound)
		}
		l, err := repo.CreatePostLike(ctx, tx, postID, userID)
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return nil, ErrAlreadyLiked
			}
			return nil, err
		}
		like = l
		return &Notice{
			Type:      domain.NotifyPostLike,
			Recipient: p.AuthorID,
			Actor:     userID,
			RelatedID: p.ID,
			Detail:    p.Content,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return like, nil
}

// Comment adds a comment to postID. With a parentID the comment is a reply
// and the parent's author is notified; otherwise the post author is.
func (s *SocialService) Comment(ctx context.Context, userID, postID, parentID, content string) (*domain.Comment, error) {
	ctx, span := s.span(ctx, "Comment", userID, attribute.String("post.id", postID))
	defer span.End()

	content, err := checkText(content, s.maxRunes())
	if err != nil {
		return nil, err
	}
	parentID = strings.TrimSpace(parentID)

	var out *domain.Comment
	_, err = s.Producer.Commit(ctx, func(tx *gorm.DB) (*Notice, error) {
		p, err := repo.GetPost(ctx, tx, postID)
		if err != nil {
			return nil, notFound(err, ErrPostNotFound)
		}

		notice := &Notice{
			Type:      domain.NotifyPostComment,
			Recipient: p.AuthorID,
			Actor:     userID,
			RelatedID: p.ID,
			Detail:    content,
		}
		var parent *string
		if parentID != "" {
			pc, err := repo.GetComment(ctx, tx, parentID)
			if err != nil {
				return nil, notFound(err, ErrCommentNotFound)
			}
			if pc.PostID != p.ID {
				return nil, ErrInvalidParent
			}
			parent = &pc.ID
			notice.Type = domain.NotifyCommentReply
			notice.Recipient = pc.AuthorID
		}

		c, err := repo.CreateComment(ctx, tx, p.ID, userID, parent, content)
		if err != nil {
			return nil, err
		}
		out = c
		return notice, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RequestConnection asks addresseeID to connect. At most one pending request
// may exist between two users in either direction.
func (s *SocialService) RequestConnection(ctx context.Context, userID, addresseeID string) (*domain.ConnectionRequest, error) {
	ctx, span := s.span(ctx, "RequestConnection", userID, attribute.String("addressee.id", addresseeID))
	defer span.End()

	if addresseeID == userID {
		return nil, ErrSelfTarget
	}

	var out *domain.ConnectionRequest
	_, err := s.Producer.Commit(ctx, func(tx *gorm.DB) (*Notice, error) {
		if _, err := repo.GetUser(ctx, tx, addresseeID); err != nil {
			return nil, notFound(err, ErrUserNotFound)
		}
		if _, err := repo.FindPendingConnection(ctx, tx, userID, addresseeID); err == nil {
			return nil, ErrDuplicateRequest
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		cr, err := repo.CreateConnectionRequest(ctx, tx, userID, addresseeID)
		if err != nil {
			return nil, err
		}
		out = cr
		return &Notice{
			Type:      domain.NotifyConnectionRequest,
			Recipient: addresseeID,
			Actor:     userID,
			RelatedID: cr.ID,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RespondConnection accepts or declines a pending request addressed to
// userID and notifies the requester.
func (s *SocialService) RespondConnection(ctx context.Context, userID, requestID string, accept bool) (*domain.ConnectionRequest, error) {
	ctx, span := s.span(ctx, "RespondConnection", userID,
		attribute.String("request.id", requestID), attribute.Bool("accept", accept))
	defer span.End()

	status := domain.ConnectionDeclined
	if accept {
		status = domain.ConnectionAccepted
	}

	var out *domain.ConnectionRequest
	_, err := s.Producer.Commit(ctx, func(tx *gorm.DB) (*Notice, error) {
		cr, err := repo.GetConnectionRequest(ctx, tx, requestID)
		if err != nil {
			return nil, notFound(err, ErrConnectionNotFound)
		}
		if cr.AddresseeID != userID {
			return nil, ErrForbidden
		}
		if cr.Status != domain.ConnectionPending {
			return nil, ErrAlreadyResponded
		}
		now := time.Now().UTC()
		if err := repo.UpdateConnectionStatus(ctx, tx, cr.ID, status, now); err != nil {
			return nil, notFound(err, ErrAlreadyResponded)
		}
		cr.Status, cr.RespondedAt = status, &now
		out = cr
		return &Notice{
			Type:      domain.NotifyConnectionResponse,
			Recipient: cr.RequesterID,
			Actor:     userID,
			RelatedID: cr.ID,
			Status:    status,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEvent schedules an event organized by userID.
func (s *SocialService) CreateEvent(ctx context.Context, userID, title string, startsAt time.Time) (*domain.Event, error) {
	ctx, span := s.span(ctx, "CreateEvent", userID)
	defer span.End()

	title, err := checkText(title, maxSubjectRunes)
	if err != nil {
		return nil, err
	}
	return repo.CreateEvent(ctx, s.DB, userID, title, startsAt)
}

// RSVP records userID's answer for eventID and notifies the organizer.
func (s *SocialService) RSVP(ctx context.Context, userID, eventID, status string) (*domain.EventRSVP, error) {
	ctx, span := s.span(ctx, "RSVP", userID, attribute.String("event.id", eventID), attribute.String("status", status))
	defer span.End()

	if !domain.ValidRSVP(status) {
		return nil, ErrInvalidStatus
	}

	var out *domain.EventRSVP
	_, err := s.Producer.Commit(ctx, func(tx *gorm.DB) (*Notice, error) {
		e, err := repo.GetEvent(ctx, tx, eventID)
		if err != nil {
			return nil, notFound(err, ErrEventNotFound)
		}
		r, err := repo.UpsertRSVP(ctx, tx, e.ID, userID, status)
		if err != nil {
			return nil, err
		}
		out = r
		return &Notice{
			Type:      domain.NotifyEventRSVP,
			Recipient: e.OrganizerID,
			Actor:     userID,
			RelatedID: e.ID,
			Detail:    e.Title,
			Status:    status,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RequestMentorship asks mentorID to mentor userID and notifies the mentor.
func (s *SocialService) RequestMentorship(ctx context.Context, userID, mentorID, note string) (*domain.MentorshipRequest, error) {
	ctx, span := s.span(ctx, "RequestMentorship", userID, attribute.String("mentor.id", mentorID))
	defer span.End()

	if mentorID == userID {
		return nil, ErrSelfTarget
	}
	note = normalizeText(note)
	if len([]rune(note)) > s.maxRunes() {
		return nil, ErrTooLong
	}

	var out *domain.MentorshipRequest
	_, err := s.Producer.Commit(ctx, func(tx *gorm.DB) (*Notice, error) {
		if _, err := repo.GetUser(ctx, tx, mentorID); err != nil {
			return nil, notFound(err, ErrUserNotFound)
		}
		mr, err := repo.CreateMentorshipRequest(ctx, tx, userID, mentorID, note)
		if err != nil {
			return nil, err
		}
		out = mr
		return &Notice{
			Type:      domain.NotifyMentorshipRequest,
			Recipient: mentorID,
			Actor:     userID,
			RelatedID: mr.ID,
			Detail:    note,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
