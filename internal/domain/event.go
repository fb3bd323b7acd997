package domain

import "time"

// EventType enumerates the engagement facts recorded against a campaign.
type EventType string

const (
	EventDelivered  EventType = "delivered"
	EventOpened     EventType = "opened"
	EventClicked    EventType = "clicked"
	EventBounced    EventType = "bounced"
	EventComplained EventType = "complained"
)

// Valid reports whether t is a tracked event type.
func (t EventType) Valid() bool {
	switch t {
	case EventDelivered, EventOpened, EventClicked, EventBounced, EventComplained:
		return true
	}
	return false
}

// CampaignEvent is one webhook-derived engagement fact. PersonID is empty
// when the recipient address matched no person. Unique per
// (ProviderMessageID, EventType).
type CampaignEvent struct {
	ID                string    `json:"id" db:"id"`
	CampaignID        string    `json:"campaign_id" db:"campaign_id"`
	PersonID          string    `json:"person_id,omitempty" db:"person_id"`
	Email             string    `json:"email" db:"email"`
	EventType         EventType `json:"event_type" db:"event_type"`
	ProviderMessageID string    `json:"provider_message_id" db:"provider_message_id"`
	LinkURL           string    `json:"link_url,omitempty" db:"link_url"`
	OccurredAt        time.Time `json:"occurred_at" db:"occurred_at"`
}

// EngagementLevel is the opaque engagement bucket computed by the store.
type EngagementLevel string

const (
	LevelNew    EngagementLevel = "new"
	LevelActive EngagementLevel = "active"
	LevelAtRisk EngagementLevel = "at_risk"
	LevelCold   EngagementLevel = "cold"
)

// Valid reports whether l is a known engagement level.
func (l EngagementLevel) Valid() bool {
	switch l {
	case LevelNew, LevelActive, LevelAtRisk, LevelCold:
		return true
	}
	return false
}
