package domain

import "time"

// PipelineStage is the sales pipeline position of a person.
type PipelineStage string

const (
	StageNew            PipelineStage = "nieuw"
	StageInConversation PipelineStage = "in_gesprek"
	StageWon            PipelineStage = "gewonnen"
	StageLost           PipelineStage = "verloren"
	StageFormerCustomer PipelineStage = "ex_klant"
)

// Person is a contact that may receive mail. The people store owns the
// record; the mail engine only reads it and toggles suppression fields.
type Person struct {
	ID               string        `json:"id" db:"id"`
	Email            string        `json:"email" db:"email"`
	FirstName        string        `json:"first_name,omitempty" db:"first_name"`
	LastName         string        `json:"last_name,omitempty" db:"last_name"`
	UnsubscribeToken string        `json:"-" db:"unsubscribe_token"`
	PipelineStage    PipelineStage `json:"pipeline_stage" db:"pipeline_stage"`
	ResendContactID  string        `json:"resend_contact_id,omitempty" db:"resend_contact_id"`
	BouncedAt        *time.Time    `json:"bounced_at,omitempty" db:"bounced_at"`
	UnsubscribedAt   *time.Time    `json:"unsubscribed_at,omitempty" db:"unsubscribed_at"`
	ArchivedAt       *time.Time    `json:"archived_at,omitempty" db:"archived_at"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
}

// PersonWithSubscription pairs a person with the subscription used to
// classify them. Subscription is nil for people who never subscribed.
type PersonWithSubscription struct {
	Person       Person
	Subscription *Subscription
}
