package audience

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// Wire condition types accepted from the admin API.
const (
	TypeCampaignDelivered = "campaign_delivered"
	TypeCampaignOpened    = "campaign_opened"
	TypeCampaignClicked   = "campaign_clicked"
	TypeSegment           = "segment"
	TypeEngagementLevel   = "engagement_level"
)

var campaignEventTypes = map[string]domain.EventType{
	TypeCampaignDelivered: domain.EventDelivered,
	TypeCampaignOpened:    domain.EventOpened,
	TypeCampaignClicked:   domain.EventClicked,
}

// WireCondition is the loosely typed JSON form of a condition.
type WireCondition struct {
	Type       string `json:"type"`
	CampaignID string `json:"campaign_id,omitempty"`
	Segment    string `json:"segment,omitempty"`
	Level      string `json:"level,omitempty"`
	Negated    bool   `json:"negated"`
}

// WireGroup is the JSON form of a condition group.
type WireGroup struct {
	Conditions []WireCondition `json:"conditions"`
}

// ParseGroups validates wire groups and converts them to typed conditions.
// It enforces 1..MaxGroups groups of 1..MaxConditionsPerGroup conditions.
func ParseGroups(wire []WireGroup) ([]domain.ConditionGroup, error) {
	if len(wire) == 0 {
		return nil, invalidf("at least one group is required")
	}
	if len(wire) > MaxGroups {
		return nil, invalidf("at most %d groups allowed", MaxGroups)
	}

	groups := make([]domain.ConditionGroup, 0, len(wire))
	for gi, wg := range wire {
		if len(wg.Conditions) == 0 {
			return nil, invalidf("group %d has no conditions", gi+1)
		}
		if len(wg.Conditions) > MaxConditionsPerGroup {
			return nil, invalidf("group %d has more than %d conditions", gi+1, MaxConditionsPerGroup)
		}
		g := domain.ConditionGroup{Conditions: make([]domain.Condition, 0, len(wg.Conditions))}
		for ci, wc := range wg.Conditions {
			c, reason := parseCondition(wc)
			if reason != "" {
				return nil, invalidf("group %d condition %d: %s", gi+1, ci+1, reason)
			}
			g.Conditions = append(g.Conditions, c)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// parseCondition returns the typed condition, or a non-empty reason.
func parseCondition(wc WireCondition) (domain.Condition, string) {
	if t, ok := campaignEventTypes[wc.Type]; ok {
		if _, err := uuid.Parse(wc.CampaignID); err != nil {
			return domain.Condition{}, "campaign_id must be a UUID"
		}
		return domain.CampaignEventCondition(wc.CampaignID, t, wc.Negated), ""
	}
	switch wc.Type {
	case TypeSegment:
		seg := domain.Segment(wc.Segment)
		if !seg.Valid() {
			return domain.Condition{}, fmt.Sprintf("unknown segment %q", wc.Segment)
		}
		return domain.SegmentCondition(seg, wc.Negated), ""
	case TypeEngagementLevel:
		lvl := domain.EngagementLevel(wc.Level)
		if !lvl.Valid() {
			return domain.Condition{}, fmt.Sprintf("unknown engagement level %q", wc.Level)
		}
		return domain.EngagementLevelCondition(lvl, wc.Negated), ""
	}
	return domain.Condition{}, fmt.Sprintf("unknown condition type %q", wc.Type)
}

// validate checks an already-typed condition. Conditions built in code go
// through the same rules as parsed ones.
func validate(c domain.Condition) error {
	switch c.Kind {
	case domain.ConditionCampaignEvent:
		if _, err := uuid.Parse(c.CampaignID); err != nil {
			return invalidf("campaign_id must be a UUID")
		}
		if !c.EventType.Valid() {
			return invalidf("unknown event type %q", c.EventType)
		}
	case domain.ConditionSegment:
		if !c.Segment.Valid() {
			return invalidf("unknown segment %q", c.Segment)
		}
	case domain.ConditionEngagementLevel:
		if !c.Level.Valid() {
			return invalidf("unknown engagement level %q", c.Level)
		}
	default:
		return invalidf("unknown condition kind %q", c.Kind)
	}
	return nil
}
