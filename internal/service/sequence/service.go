package sequence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/metrics"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
	"github.com/rijksuitgaven/mailengine/internal/service/delivery"
	"github.com/rijksuitgaven/mailengine/internal/service/suppression"
)

// MaxDelayDays bounds a step's delay.
const MaxDelayDays = 365

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	// BaseURL is the public site root used to build unsubscribe links.
	BaseURL string
	// From overrides delivery.DefaultFrom.
	From string
	// Location is the zone for weekday, hour and day arithmetic.
	Location *time.Location
	Metrics  *metrics.Metrics
}

// Service runs sequences. pipeline and renderer may be nil when no provider
// is configured; Tick then fails with delivery.ErrNotConfigured while the
// admin operations keep working.
type Service struct {
	repo     Repository
	pipeline *delivery.Pipeline
	renderer *delivery.Renderer
	baseURL  string
	from     string
	loc      *time.Location
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService creates a sequence service.
func NewService(repo Repository, pipeline *delivery.Pipeline, renderer *delivery.Renderer, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		pipeline: pipeline,
		renderer: renderer,
		baseURL:  opts.BaseURL,
		from:     opts.From,
		loc:      loc,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
}

// Enroll puts a person into a sequence at step zero.
func (s *Service) Enroll(ctx context.Context, sequenceID, personID string) (*domain.Enrollment, error) {
	if _, err := uuid.Parse(sequenceID); err != nil {
		return nil, &ValidationError{Field: "sequence_id", Reason: "must be a UUID"}
	}
	if _, err := uuid.Parse(personID); err != nil {
		return nil, &ValidationError{Field: "person_id", Reason: "must be a UUID"}
	}

	if _, err := s.repo.GetSequence(ctx, sequenceID); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	if !suppression.IsEligible(p) {
		return nil, ErrPersonSuppressed
	}

	e := &domain.Enrollment{
		SequenceID: sequenceID,
		PersonID:   personID,
		Status:     domain.EnrollmentActive,
		EnrolledAt: s.now(),
	}
	if err := s.repo.CreateEnrollment(ctx, e); err != nil {
		return nil, err
	}
	logger.Info("person enrolled", "sequence_id", sequenceID, "person_id", personID)
	return e, nil
}

// AutoEnroll enrolls a person into every active sequence, skipping the ones
// they are already in. It returns the number of new enrollments.
func (s *Service) AutoEnroll(ctx context.Context, personID string) (int, error) {
	sequences, err := s.repo.ActiveSequences(ctx)
	if err != nil {
		return 0, fmt.Errorf("load active sequences: %w", err)
	}

	enrolled := 0
	for _, seq := range sequences {
		e := &domain.Enrollment{
			SequenceID: seq.ID,
			PersonID:   personID,
			Status:     domain.EnrollmentActive,
			EnrolledAt: s.now(),
		}
		err := s.repo.CreateEnrollment(ctx, e)
		if errors.Is(err, ErrAlreadyEnrolled) {
			continue
		}
		if err != nil {
			return enrolled, fmt.Errorf("enroll in %s: %w", seq.ID, err)
		}
		enrolled++
	}
	return enrolled, nil
}

// StepInput is the admin payload for a new step. A nil DelayDays means 0.
type StepInput struct {
	Subject   string
	Heading   string
	Preheader string
	Body      string
	CTAText   string
	CTAURL    string
	DelayDays *int
}

// AddStep validates in and appends it after the sequence's last step.
func (s *Service) AddStep(ctx context.Context, sequenceID string, in StepInput) (*domain.Step, error) {
	if _, err := uuid.Parse(sequenceID); err != nil {
		return nil, &ValidationError{Field: "sequence_id", Reason: "must be a UUID"}
	}
	step, err := in.toStep(sequenceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetSequence(ctx, sequenceID); err != nil {
		return nil, err
	}
	if err := s.repo.AddStep(ctx, step); err != nil {
		return nil, fmt.Errorf("add step: %w", err)
	}
	return step, nil
}

func (in StepInput) toStep(sequenceID string) (*domain.Step, error) {
	step := &domain.Step{
		SequenceID: sequenceID,
		Subject:    strings.TrimSpace(in.Subject),
		Heading:    strings.TrimSpace(in.Heading),
		Preheader:  strings.TrimSpace(in.Preheader),
		Body:       strings.TrimSpace(in.Body),
		CTAText:    strings.TrimSpace(in.CTAText),
		CTAURL:     strings.TrimSpace(in.CTAURL),
	}
	switch {
	case step.Subject == "":
		return nil, &ValidationError{Field: "subject", Reason: "required"}
	case step.Heading == "":
		return nil, &ValidationError{Field: "heading", Reason: "required"}
	case step.Body == "":
		return nil, &ValidationError{Field: "body", Reason: "required"}
	}
	if in.DelayDays != nil {
		if *in.DelayDays < 0 || *in.DelayDays > MaxDelayDays {
			return nil, &ValidationError{Field: "delay_days", Reason: fmt.Sprintf("must be between 0 and %d", MaxDelayDays)}
		}
		step.DelayDays = *in.DelayDays
	}
	if step.CTAURL != "" && !IsHTTPURL(step.CTAURL) {
		return nil, &ValidationError{Field: "cta_url", Reason: "must be an http(s) URL"}
	}
	return step, nil
}

// IsHTTPURL reports whether raw is an absolute http or https URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
