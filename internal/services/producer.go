// Package services – Producer
//
// Producer runs the one contract every notifying action follows: the domain
// write and the Notification insert commit together in a single transaction,
// and the live push happens strictly after that commit. A notice addressed to
// the acting user is dropped before any row is written.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/domain"
	"github.com/tbourn/alumni-portal/internal/realtime"
	"github.com/tbourn/alumni-portal/internal/repo"
)

// Notifier pushes a committed notification to its recipient.
// *realtime.Dispatcher satisfies it.
type Notifier interface {
	Dispatch(ctx context.Context, n domain.Notification, actorID string) realtime.Outcome
}

// Notice describes the notification a domain write wants to emit. Title and
// content are rendered from Type; callers only supply facts.
type Notice struct {
	Type      domain.NotificationType
	Recipient string
	Actor     string
	RelatedID string
	// Detail is type-specific text: message body, post or comment excerpt,
	// event title, mentorship note.
	Detail string
	// Status is type-specific state: accepted/declined, going/maybe/not_going.
	Status string
}

// WriteFunc performs the primary domain write inside tx and returns the
// notice to emit, or nil when nobody should hear about it.
type WriteFunc func(tx *gorm.DB) (*Notice, error)

// Producer commits domain writes with their notifications.
type Producer struct {
	DB       *gorm.DB
	Notifier Notifier
	Log      zerolog.Logger
}

// Commit runs write and the notification insert in one transaction, then
// dispatches. It returns the stored notification, or nil when none was
// produced (nil notice or self-notification). A failed write or insert rolls
// back both and nothing is dispatched.
func (p *Producer) Commit(ctx context.Context, write WriteFunc) (*domain.Notification, error) {
	tr := otel.Tracer("services/Producer")
	ctx, span := tr.Start(ctx, "Commit")
	defer span.End()

	var (
		row   *domain.Notification
		actor string
	)
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		notice, err := write(tx)
		if err != nil {
			return err
		}
		if notice == nil || notice.Recipient == "" || notice.Recipient == notice.Actor {
			return nil
		}
		if !notice.Type.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidNotificationType, notice.Type)
		}

		name, err := actorName(ctx, tx, notice.Actor)
		if err != nil {
			return err
		}
		tpl := templates[notice.Type]
		n := &domain.Notification{
			UserID:    notice.Recipient,
			Type:      notice.Type,
			Title:     tpl.title(*notice, name),
			Content:   tpl.content(*notice, name),
			RelatedID: notice.RelatedID,
		}
		if err := repo.CreateNotification(ctx, tx, n); err != nil {
			return err
		}
		row, actor = n, notice.Actor
		return nil
	})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	span.SetAttributes(
		attribute.String("notification.type", string(row.Type)),
		attribute.String("notification.recipient", row.UserID),
	)
	if p.Notifier != nil {
		out := p.Notifier.Dispatch(ctx, *row, actor)
		span.AddEvent("dispatched", trace.WithAttributes(attribute.String("outcome", string(out))))
	}
	return row, nil
}

// actorName resolves the actor's current display name at write time.
func actorName(ctx context.Context, tx *gorm.DB, actorID string) (string, error) {
	if actorID == "" {
		return "The alumni team", nil
	}
	u, err := repo.GetUser(ctx, tx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return "Someone", nil
	}
	if err != nil {
		return "", err
	}
	return u.DisplayName(), nil
}

// template renders one notification type.
type template struct {
	title   func(n Notice, actor string) string
	content func(n Notice, actor string) string
}

var titleCase = cases.Title(language.English)

func statusLabel(s string) string {
	switch s {
	case domain.RSVPNotGoing:
		return "not going"
	case domain.RSVPMaybe:
		return "maybe"
	}
	return s
}

func fixed(s string) func(Notice, string) string { return func(Notice, string) string { return s } }

// templates covers every domain.NotificationType.
var templates = map[domain.NotificationType]template{
	domain.NotifyMessage: {
		title:   func(_ Notice, a string) string { return "New message from " + a },
		content: func(n Notice, _ string) string { return preview(n.Detail) },
	},
	domain.NotifyConnectionRequest: {
		title:   fixed("New connection request"),
		content: func(_ Notice, a string) string { return a + " wants to connect with you" },
	},
	domain.NotifyConnectionResponse: {
		title: func(n Notice, _ string) string { return "Connection request " + n.Status },
		content: func(n Notice, a string) string {
			return fmt.Sprintf("%s %s your connection request", a, n.Status)
		},
	},
	domain.NotifyPostLike: {
		title:   fixed("New like on your post"),
		content: func(n Notice, a string) string { return fmt.Sprintf("%s liked your post: %q", a, preview(n.Detail)) },
	},
	domain.NotifyPostComment: {
		title:   fixed("New comment on your post"),
		content: func(n Notice, a string) string { return a + " commented: " + preview(n.Detail) },
	},
	domain.NotifyCommentReply: {
		title:   fixed("New reply to your comment"),
		content: func(n Notice, a string) string { return a + " replied: " + preview(n.Detail) },
	},
	domain.NotifyEventRSVP: {
		title: func(n Notice, _ string) string {
			return "RSVP " + titleCase.String(statusLabel(n.Status)) + ": " + preview(n.Detail)
		},
		content: func(n Notice, a string) string {
			return fmt.Sprintf("%s responded %s to %s", a, statusLabel(n.Status), preview(n.Detail))
		},
	},
	domain.NotifySignupApproved: {
		title:   fixed("Your account has been approved"),
		content: func(_ Notice, a string) string { return a + " approved your signup. Welcome to the alumni network!" },
	},
	domain.NotifyLinkedInSync: {
		title:   fixed("LinkedIn profile synced"),
		content: func(_ Notice, a string) string { return "Your LinkedIn profile was synced by " + a },
	},
	domain.NotifyMentorshipRequest: {
		title: fixed("New mentorship request"),
		content: func(n Notice, a string) string {
			if d := preview(n.Detail); d != "" {
				return a + " asked you to be their mentor: " + d
			}
			return a + " asked you to be their mentor"
		},
	},
}
