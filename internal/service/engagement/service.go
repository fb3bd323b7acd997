package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/metrics"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
)

// Outcome describes what Ingest did with an event.
type Outcome string

const (
	OutcomeRecorded     Outcome = "recorded"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeUnsubscribed Outcome = "unsubscribed"
	OutcomeIgnored      Outcome = "ignored"
)

// Service ingests verified webhook events.
type Service struct {
	repo       Repository
	suppressor Suppressor
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewService creates an engagement service. m may be nil.
func NewService(repo Repository, suppressor Suppressor, m *metrics.Metrics) *Service {
	return &Service{repo: repo, suppressor: suppressor, metrics: m, now: time.Now}
}

// Ingest applies one verified event. Events it does not track are ignored
// without error; a duplicate delivery is a success.
func (s *Service) Ingest(ctx context.Context, ev *Event) (Outcome, error) {
	if ev.Type == TypeContactUpdated {
		return s.contactUpdated(ctx, ev)
	}
	eventType, ok := emailEventTypes[ev.Type]
	if !ok {
		return OutcomeIgnored, nil
	}

	campaignID := strings.TrimSpace(ev.Data.Tags[domain.TagCampaignID])
	recipient := ev.Data.To.First()

	// Suppression applies to every tracked message, campaign or not.
	if err := s.suppress(ctx, ev, eventType, recipient); err != nil {
		return "", err
	}

	if campaignID == "" || recipient == "" || ev.Data.EmailID == "" {
		return OutcomeIgnored, nil
	}
	if _, err := uuid.Parse(campaignID); err != nil {
		logger.Warn("webhook: campaign tag is not a UUID", "campaign_id", campaignID)
		return OutcomeIgnored, nil
	}

	personID, err := s.repo.PersonIDByEmail(ctx, recipient)
	if err != nil {
		return "", fmt.Errorf("resolve recipient: %w", err)
	}

	occurred := ev.CreatedAt
	if occurred.IsZero() {
		occurred = s.now().UTC()
	}
	row := &domain.CampaignEvent{
		CampaignID:        campaignID,
		PersonID:          personID,
		Email:             recipient,
		EventType:         eventType,
		ProviderMessageID: ev.Data.EmailID,
		OccurredAt:        occurred,
	}
	if ev.Data.Click != nil {
		row.LinkURL = ev.Data.Click.Link
	}

	err = s.repo.InsertEvent(ctx, row)
	if errors.Is(err, ErrDuplicateEvent) {
		return OutcomeDuplicate, nil
	}
	if errors.Is(err, ErrUnknownCampaign) {
		logger.Warn("webhook: unknown campaign", "campaign_id", row.CampaignID, "type", ev.Type)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	s.metrics.RecordWebhook(ev.Type)
	return OutcomeRecorded, nil
}

func (s *Service) contactUpdated(ctx context.Context, ev *Event) (Outcome, error) {
	if !ev.Data.Unsubscribed || ev.Data.ID == "" {
		return OutcomeIgnored, nil
	}
	if err := s.suppressor.UnsubscribeContact(ctx, ev.Data.ID); err != nil {
		return "", err
	}
	s.metrics.RecordWebhook(ev.Type)
	return OutcomeUnsubscribed, nil
}

// suppress marks hard bounces and complaints on the person record. Soft
// bounces do not suppress.
func (s *Service) suppress(ctx context.Context, ev *Event, t domain.EventType, recipient string) error {
	if recipient == "" {
		return nil
	}
	switch t {
	case domain.EventBounced:
		if ev.Data.Bounce != nil && strings.EqualFold(ev.Data.Bounce.Type, "transient") {
			return nil
		}
		return s.suppressor.MarkBounced(ctx, recipient)
	case domain.EventComplained:
		return s.suppressor.MarkComplained(ctx, recipient)
	}
	return nil
}
