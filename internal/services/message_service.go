// Package services – MessageService
//
// MessageService owns direct messages: sending (which notifies the receiver
// through the Producer), the inbox and sent listings, receiver-only read
// marking, sender-only deletion, and the server-side conversation view.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry the acting user and message identifiers.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/conversation"
	"github.com/tbourn/alumni-portal/internal/domain"
	"github.com/tbourn/alumni-portal/internal/repo"
)

const (
	defaultMaxMessageRunes = 5000
	maxSubjectRunes        = 255
	defaultMailboxLimit    = 500
)

// MessageService coordinates message persistence and message notifications.
type MessageService struct {
	DB       *gorm.DB
	Producer *Producer

	// MaxContentRunes caps message bodies; <= 0 uses the default.
	MaxContentRunes int
	// MailboxLimit caps inbox/sent listings; <= 0 uses the default.
	MailboxLimit int
}

func (s *MessageService) maxRunes() int {
	if s.MaxContentRunes > 0 {
		return s.MaxContentRunes
	}
	return defaultMaxMessageRunes
}

func (s *MessageService) limit() int {
	if s.MailboxLimit > 0 {
		return s.MailboxLimit
	}
	return defaultMailboxLimit
}

// MaxRunes exposes the effective content limit for edge validation.
func (s *MessageService) MaxRunes() int { return s.maxRunes() }

// Send validates input, persists the message and its notification in one
// transaction, and pushes the notification to the receiver if online.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, subject, content string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("user.id", senderID),
			attribute.String("receiver.id", receiverID),
		),
	)
	defer span.End()

	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return nil, ErrUserNotFound
	}
	if receiverID == senderID {
		return nil, ErrSelfTarget
	}
	content, err := checkText(content, s.maxRunes())
	if err != nil {
		return nil, err
	}
	subject = normalizeText(subject)
	if r := []rune(subject); len(r) > maxSubjectRunes {
		return nil, ErrTooLong
	}

	var msg *domain.Message
	_, err = s.Producer.Commit(ctx, func(tx *gorm.DB) (*Notice, error) {
		if _, err := repo.GetUser(ctx, tx, receiverID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		m, err := repo.CreateMessage(ctx, tx, senderID, receiverID, subject, content)
		if err != nil {
			return nil, err
		}
		msg = m
		return &Notice{
			Type:      domain.NotifyMessage,
			Recipient: receiverID,
			Actor:     senderID,
			RelatedID: m.ID,
			Detail:    content,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("message.id", msg.ID))
	return msg, nil
}

// Get returns a message visible to userID (as sender or receiver).
func (s *MessageService) Get(ctx context.Context, userID, id string) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if m.SenderID != userID && m.ReceiverID != userID {
		return nil, ErrMessageNotFound
	}
	return m, nil
}

// Inbox lists messages received by userID, newest first.
func (s *MessageService) Inbox(ctx context.Context, userID string) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Inbox", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()
	return repo.ListInbox(ctx, s.DB, userID, s.limit())
}

// Sent lists messages sent by userID, newest first.
func (s *MessageService) Sent(ctx context.Context, userID string) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Sent", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()
	return repo.ListSent(ctx, s.DB, userID, s.limit())
}

// MarkRead marks a message read on behalf of its receiver. Marking an
// already-read message succeeds without change; anyone but the receiver
// gets ErrForbidden.
func (s *MessageService) MarkRead(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("message.id", id)),
	)
	defer span.End()

	m, err := repo.GetMessage(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if m.ReceiverID != userID {
		return ErrForbidden
	}
	changed, err := repo.MarkMessageRead(ctx, s.DB, id, userID)
	span.SetAttributes(attribute.Bool("changed", changed))
	return err
}

// Delete soft-deletes a message on behalf of its sender. No notification is
// produced.
func (s *MessageService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("message.id", id)),
	)
	defer span.End()

	m, err := repo.GetMessage(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if m.SenderID != userID {
		return ErrForbidden
	}
	if err := repo.SoftDeleteMessage(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	return nil
}

// Conversations folds userID's complete inbox and sent mail into
// conversations. MailboxLimit does not apply: a capped set would drop old
// threads from the list.
func (s *MessageService) Conversations(ctx context.Context, userID string) ([]conversation.Conversation, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Conversations", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	received, err := repo.ListInbox(ctx, s.DB, userID, 0)
	if err != nil {
		return nil, err
	}
	sent, err := repo.ListSent(ctx, s.DB, userID, 0)
	if err != nil {
		return nil, err
	}
	convs := conversation.Aggregate(userID, received, sent)
	span.SetAttributes(attribute.Int("conversations", len(convs)))
	return convs, nil
}
