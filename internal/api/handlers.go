package api

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/rijksuitgaven/mailengine/internal/contactsync"
	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/metrics"
	"github.com/rijksuitgaven/mailengine/internal/pkg/ratelimit"
	"github.com/rijksuitgaven/mailengine/internal/service/audience"
	"github.com/rijksuitgaven/mailengine/internal/service/campaign"
	"github.com/rijksuitgaven/mailengine/internal/service/engagement"
	"github.com/rijksuitgaven/mailengine/internal/service/sequence"
)

// Default request body ceilings in bytes.
const (
	DefaultAdminMaxBody       = 50_000
	DefaultUnsubscribeMaxBody = 1_000
	DefaultUnsubscribePerMin  = 10
)

// TickRunner runs one locked scheduler pass. Satisfied by
// *worker.SequenceWorker.
type TickRunner interface {
	RunOnce(ctx context.Context) (sequence.TickResult, error)
}

// Sequences is the sequence admin surface. Satisfied by *sequence.Service.
type Sequences interface {
	Enroll(ctx context.Context, sequenceID, personID string) (*domain.Enrollment, error)
	AutoEnroll(ctx context.Context, personID string) (int, error)
	AddStep(ctx context.Context, sequenceID string, in sequence.StepInput) (*domain.Step, error)
}

// EventIngester stores verified webhook events. Satisfied by
// *engagement.Service.
type EventIngester interface {
	Ingest(ctx context.Context, ev *engagement.Event) (engagement.Outcome, error)
}

// Unsubscriber applies token unsubscribes. Satisfied by *suppression.Service.
type Unsubscriber interface {
	Unsubscribe(ctx context.Context, token string) error
}

// Audience evaluates condition trees. Satisfied by *audience.Service.
type Audience interface {
	Evaluate(ctx context.Context, groups []domain.ConditionGroup, base audience.Set) (audience.Set, error)
	ListTypeCounts(ctx context.Context) (map[domain.ListType]int, error)
}

// Campaigns sends and serves broadcasts. Satisfied by *campaign.Service.
type Campaigns interface {
	Send(ctx context.Context, req campaign.Request) (*campaign.Result, error)
	Archived(ctx context.Context, id string) ([]byte, error)
}

// ContactSyncer mirrors one person on demand. Satisfied by
// *contactsync.Syncer.
type ContactSyncer interface {
	SyncPerson(ctx context.Context, personID string) (contactsync.OpKind, error)
}

// Deps wires the handlers. Any service may be nil; its endpoints then
// answer with a configuration error.
type Deps struct {
	Ticks        TickRunner
	Sequences    Sequences
	Verifier     *engagement.Verifier
	Events       EventIngester
	Unsubscriber Unsubscriber
	Audience     Audience
	Campaigns    Campaigns
	Contacts     ContactSyncer
	Metrics      *metrics.Metrics

	CronSecret string
	AdminToken string

	AdminMaxBody       int64
	UnsubscribeMaxBody int64
	UnsubscribePerMin  int
}

// Handlers contains all HTTP handlers
type Handlers struct {
	ticks        TickRunner
	sequences    Sequences
	verifier     *engagement.Verifier
	events       EventIngester
	unsubscriber Unsubscriber
	audience     Audience
	campaigns    Campaigns
	contacts     ContactSyncer
	metrics      *metrics.Metrics
	validator    *validator.Validate

	cronSecret string
	adminToken string

	adminMaxBody       int64
	unsubscribeMaxBody int64
	unsubscribeLimiter *ratelimit.Limiter
}

// NewHandlers creates a new Handlers instance. Call Close to stop the rate
// limiter's sweeper.
func NewHandlers(d Deps) *Handlers {
	if d.AdminMaxBody <= 0 {
		d.AdminMaxBody = DefaultAdminMaxBody
	}
	if d.UnsubscribeMaxBody <= 0 {
		d.UnsubscribeMaxBody = DefaultUnsubscribeMaxBody
	}
	if d.UnsubscribePerMin <= 0 {
		d.UnsubscribePerMin = DefaultUnsubscribePerMin
	}
	return &Handlers{
		ticks:              d.Ticks,
		sequences:          d.Sequences,
		verifier:           d.Verifier,
		events:             d.Events,
		unsubscriber:       d.Unsubscriber,
		audience:           d.Audience,
		campaigns:          d.Campaigns,
		contacts:           d.Contacts,
		metrics:            d.Metrics,
		validator:          newValidator(),
		cronSecret:         d.CronSecret,
		adminToken:         d.AdminToken,
		adminMaxBody:       d.AdminMaxBody,
		unsubscribeMaxBody: d.UnsubscribeMaxBody,
		unsubscribeLimiter: ratelimit.PerMinute(d.UnsubscribePerMin),
	}
}

// Close releases background resources.
func (h *Handlers) Close() {
	h.unsubscribeLimiter.Close()
}
