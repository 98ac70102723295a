package services

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/alumni-portal/internal/domain"
	"github.com/tbourn/alumni-portal/internal/repo"
)

// UserService handles accounts: signup, profile reads, and the admin actions
// that notify the affected user.
type UserService struct {
	DB       *gorm.DB
	Producer *Producer
	// Now is the clock for LinkedIn sync timestamps; nil uses time.Now.
	Now func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// GetUser is the identity point read. A missing user is returned as
// repo.ErrNotFound (gorm.ErrRecordNotFound), which is what the realtime
// handshake and the identity middleware expect.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return repo.GetUser(ctx, s.DB, id)
}

// Profile returns a user for display, mapping absence to ErrUserNotFound.
func (s *UserService) Profile(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Signup creates a pending member account.
func (s *UserService) Signup(ctx context.Context, email, firstName, lastName string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Signup")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if len([]rune(firstName)) > 100 || len([]rune(lastName)) > 100 {
		return nil, ErrInvalidProfile
	}

	u := &domain.User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      domain.RoleMember,
		Status:    domain.StatusPending,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return u, nil
}

// requireAdmin loads actorID inside tx and checks the admin role.
func requireAdmin(ctx context.Context, tx *gorm.DB, actorID string) error {
	u, err := repo.GetUser(ctx, tx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if !u.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// ApproveSignup moves a pending account to approved and notifies its owner.
// Approving an already approved account is a no-op without a notification.
func (s *UserService) ApproveSignup(ctx context.Context, adminID, userID string) (*domain.Notification, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "ApproveSignup",
		trace.WithAttributes(attribute.String("admin.id", adminID), attribute.String("user.id", userID)),
	)
	defer span.End()

	return s.Producer.Commit(ctx, func(tx *gorm.DB) (*Notice, error) {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return nil, err
		}
		u, err := repo.GetUser(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		if u.Status == domain.StatusApproved {
			return nil, nil
		}
		if err := repo.UpdateUserStatus(ctx, tx, userID, domain.StatusApproved); err != nil {
			return nil, err
		}
		return &Notice{
			Type:      domain.NotifySignupApproved,
			Recipient: userID,
			Actor:     adminID,
			RelatedID: userID,
		}, nil
	})
}

// RecordLinkedInSync stores the result of an admin-run LinkedIn profile sync
// and notifies the profile owner.
func (s *UserService) RecordLinkedInSync(ctx context.Context, adminID, userID, profileURL string) (*domain.Notification, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "RecordLinkedInSync",
		trace.WithAttributes(attribute.String("admin.id", adminID), attribute.String("user.id", userID)),
	)
	defer span.End()

	profileURL = strings.TrimSpace(profileURL)
	if !isLinkedInURL(profileURL) {
		return nil, ErrInvalidProfile
	}

	return s.Producer.Commit(ctx, func(tx *gorm.DB) (*Notice, error) {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return nil, err
		}
		if err := repo.RecordLinkedInSync(ctx, tx, userID, profileURL, s.now()); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		return &Notice{
			Type:      domain.NotifyLinkedInSync,
			Recipient: userID,
			Actor:     adminID,
			RelatedID: userID,
		}, nil
	})
}

func isLinkedInURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")
}
