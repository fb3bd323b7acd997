package audience

import (
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// Classify maps a subscription to a list type. It is total: a nil
// subscription is a prospect, a cancelled or deleted one is churned, one
// whose effective end (grace end, else end date) lies before today is
// churned, a current monthly or yearly plan is leden, anything else is a
// prospect. Dates compare at day granularity.
func Classify(sub *domain.Subscription, now time.Time) domain.ListType {
	if sub == nil {
		return domain.ListProspects
	}
	if sub.CancelledAt != nil || sub.DeletedAt != nil {
		return domain.ListChurned
	}
	end := sub.GraceEndsAt
	if end == nil {
		end = sub.EndDate
	}
	if end != nil && dateOf(*end).Before(dateOf(now)) {
		return domain.ListChurned
	}
	if sub.Plan == domain.PlanMonthly || sub.Plan == domain.PlanYearly {
		return domain.ListLeden
	}
	return domain.ListProspects
}

// SegmentOf returns the broadcast segment of a person. Won deals only count
// as members while their subscription has an effective end (grace end, else
// end date) of today or later; an undated subscription does not qualify.
func SegmentOf(p domain.PersonWithSubscription, now time.Time) (domain.Segment, bool) {
	if p.Person.PipelineStage == domain.StageWon {
		if !currentMember(p.Subscription, now) {
			return "", false
		}
		switch p.Subscription.Plan {
		case domain.PlanMonthly:
			return domain.SegmentMonthly, true
		case domain.PlanYearly:
			return domain.SegmentYearly, true
		}
		return "", false
	}
	seg := domain.Segment(p.Person.PipelineStage)
	if !seg.Valid() {
		return "", false
	}
	return seg, true
}

func currentMember(sub *domain.Subscription, now time.Time) bool {
	if sub == nil || sub.CancelledAt != nil || sub.DeletedAt != nil {
		return false
	}
	end := sub.GraceEndsAt
	if end == nil {
		end = sub.EndDate
	}
	return end != nil && !dateOf(*end).Before(dateOf(now))
}

// FilterBySegments keeps the people whose segment is in segments, preserving
// input order.
func FilterBySegments(people []domain.PersonWithSubscription, segments []domain.Segment, now time.Time) []domain.PersonWithSubscription {
	want := make(map[domain.Segment]bool, len(segments))
	for _, s := range segments {
		want[s] = true
	}
	var out []domain.PersonWithSubscription
	for _, p := range people {
		if seg, ok := SegmentOf(p, now); ok && want[seg] {
			out = append(out, p)
		}
	}
	return out
}

// dateOf truncates t to its calendar date, expressed as UTC midnight so it
// compares equal to DATE columns.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
