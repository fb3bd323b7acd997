package domain

// ConditionKind discriminates the Condition variants.
type ConditionKind string

const (
	ConditionCampaignEvent   ConditionKind = "campaign_event"
	ConditionSegment         ConditionKind = "segment"
	ConditionEngagementLevel ConditionKind = "engagement_level"
)

// Condition is one audience filter. Exactly the fields of its Kind are set:
//   - ConditionCampaignEvent: CampaignID, EventType
//   - ConditionSegment: Segment
//   - ConditionEngagementLevel: Level
//
// Negated selects the complement of the matching set.
type Condition struct {
	Kind       ConditionKind   `json:"kind"`
	CampaignID string          `json:"campaign_id,omitempty"`
	EventType  EventType       `json:"event_type,omitempty"`
	Segment    Segment         `json:"segment,omitempty"`
	Level      EngagementLevel `json:"level,omitempty"`
	Negated    bool            `json:"negated"`
}

// CampaignEventCondition matches people with an event of type t for a campaign.
func CampaignEventCondition(campaignID string, t EventType, negated bool) Condition {
	return Condition{Kind: ConditionCampaignEvent, CampaignID: campaignID, EventType: t, Negated: negated}
}

// SegmentCondition matches people currently in segment s.
func SegmentCondition(s Segment, negated bool) Condition {
	return Condition{Kind: ConditionSegment, Segment: s, Negated: negated}
}

// EngagementLevelCondition matches people in engagement bucket l.
func EngagementLevelCondition(l EngagementLevel, negated bool) Condition {
	return Condition{Kind: ConditionEngagementLevel, Level: l, Negated: negated}
}

// ConditionGroup is a disjunction of conditions. Groups are combined by
// conjunction.
type ConditionGroup struct {
	Conditions []Condition `json:"conditions"`
}
