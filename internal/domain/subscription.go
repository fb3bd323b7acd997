package domain

import "time"

// Plan is the billing cadence of a subscription.
type Plan string

const (
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// Subscription is one commercial relationship of a person. EndDate and
// GraceEndsAt are calendar dates stored as UTC midnight.
type Subscription struct {
	PersonID    string     `json:"person_id" db:"person_id"`
	Plan        Plan       `json:"plan" db:"plan"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	EndDate     *time.Time `json:"end_date,omitempty" db:"end_date"`
	GraceEndsAt *time.Time `json:"grace_ends_at,omitempty" db:"grace_ends_at"`
}

// ListType is the coarse audience classification of a person.
type ListType string

const (
	ListLeden     ListType = "leden"
	ListChurned   ListType = "churned"
	ListProspects ListType = "prospects"
)

// Segment is a broadcast audience bucket: the pipeline stage, refined by
// plan for paying members.
type Segment string

const (
	SegmentNew            Segment = "nieuw"
	SegmentInConversation Segment = "in_gesprek"
	SegmentMonthly        Segment = "leden_maandelijks"
	SegmentYearly         Segment = "leden_jaarlijks"
	SegmentLost           Segment = "verloren"
	SegmentFormerCustomer Segment = "ex_klant"
)

// Valid reports whether s is one of the known segments.
func (s Segment) Valid() bool {
	switch s {
	case SegmentNew, SegmentInConversation, SegmentMonthly, SegmentYearly, SegmentLost, SegmentFormerCustomer:
		return true
	}
	return false
}
