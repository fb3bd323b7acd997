package suppression

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
)

// Reason returns why p may not receive mail, or SuppressionNone.
func Reason(p *domain.Person) domain.SuppressionReason {
	switch {
	case p == nil || strings.TrimSpace(p.Email) == "":
		return domain.SuppressionNoEmail
	case p.UnsubscribeToken == "":
		return domain.SuppressionNoToken
	case p.ArchivedAt != nil:
		return domain.SuppressionArchived
	case p.UnsubscribedAt != nil:
		return domain.SuppressionUnsubscribed
	case p.BouncedAt != nil:
		return domain.SuppressionBounced
	}
	return domain.SuppressionNone
}

// IsEligible reports whether p may receive mail. A nil person is ineligible.
func IsEligible(p *domain.Person) bool {
	return Reason(p) == domain.SuppressionNone
}

// Service applies suppression state changes. It is safe for concurrent use.
type Service struct {
	repo   Repository
	mirror ContactMirror
	now    func() time.Time
}

// NewService creates a suppression service. mirror may be nil when the
// external contact list is not configured.
func NewService(repo Repository, mirror ContactMirror) *Service {
	return &Service{repo: repo, mirror: mirror, now: time.Now}
}

// Unsubscribe marks the owner of token as unsubscribed. It is idempotent and
// reports success for unknown tokens so callers cannot enumerate valid ones.
// Only a malformed token is an error.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if _, err := uuid.Parse(token); err != nil {
		return ErrInvalidToken
	}

	p, err := s.repo.FindByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find person by token: %w", err)
	}
	if p.UnsubscribedAt != nil {
		return nil
	}

	if err := s.repo.MarkUnsubscribed(ctx, p.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("mark unsubscribed: %w", err)
	}
	logger.Info("suppression: person unsubscribed", "person_id", p.ID, "source", "token")

	if s.mirror != nil && p.ResendContactID != "" {
		s.mirror.Remove(*p)
	}
	return nil
}

// MarkBounced suppresses every person with the address after a hard bounce.
func (s *Service) MarkBounced(ctx context.Context, email string) error {
	email = normalize(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	n, err := s.repo.MarkBouncedByEmail(ctx, email, s.now().UTC())
	if err != nil {
		return fmt.Errorf("mark bounced: %w", err)
	}
	if n > 0 {
		logger.Info("suppression: person bounced", "email", email, "rows", n)
	}
	return nil
}

// MarkComplained unsubscribes every person with the address after a spam
// complaint.
func (s *Service) MarkComplained(ctx context.Context, email string) error {
	email = normalize(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	n, err := s.repo.MarkUnsubscribedByEmail(ctx, email, s.now().UTC())
	if err != nil {
		return fmt.Errorf("mark complained: %w", err)
	}
	if n > 0 {
		logger.Info("suppression: complaint recorded", "email", email, "rows", n)
	}
	return nil
}

// UnsubscribeContact handles an unsubscribe performed at the provider (for
// example the mailbox's one-click button) for a mirrored contact.
func (s *Service) UnsubscribeContact(ctx context.Context, contactID string) error {
	if contactID == "" {
		return nil
	}
	n, err := s.repo.UnsubscribeByContactID(ctx, contactID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("unsubscribe contact %s: %w", contactID, err)
	}
	logger.Info("suppression: contact unsubscribed at provider", "contact_id", contactID, "rows", n)
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
