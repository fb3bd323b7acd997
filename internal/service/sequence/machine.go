package sequence

import (
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// Action is what a tick does with one enrollment.
type Action int

const (
	// ActionComplete: no step follows current_step.
	ActionComplete Action = iota
	// ActionNotDue: the next step's delay has not elapsed.
	ActionNotDue
	// ActionCatchUp: the next step was already sent; advance without sending.
	ActionCatchUp
	// ActionAttempt: check suppression, then deliver the next step.
	ActionAttempt
)

func (a Action) String() string {
	switch a {
	case ActionComplete:
		return "completed"
	case ActionNotDue:
		return "not_due"
	case ActionCatchUp:
		return "catch_up"
	case ActionAttempt:
		return "attempt"
	}
	return "unknown"
}

// Decision is the outcome of Decide. Step is nil for ActionComplete.
type Decision struct {
	Action Action
	Step   *domain.Step
}

// NextStep returns the step with step_order current+1, or nil.
func NextStep(steps []domain.Step, current int) *domain.Step {
	for i := range steps {
		if steps[i].StepOrder == current+1 {
			return &steps[i]
		}
	}
	return nil
}

// DaysSinceEnrolled counts whole civil days between the enrollment date and
// the date of now, both taken in loc.
func DaysSinceEnrolled(enrolledAt, now time.Time, loc *time.Location) int {
	return int(civilDate(now, loc).Sub(civilDate(enrolledAt, loc)) / (24 * time.Hour))
}

// Decide applies the step eligibility rule to e. alreadySent is consulted
// only when the next step exists and is due.
func Decide(e domain.Enrollment, steps []domain.Step, now time.Time, loc *time.Location, alreadySent func(stepID string) (bool, error)) (Decision, error) {
	next := NextStep(steps, e.CurrentStep)
	if next == nil {
		return Decision{Action: ActionComplete}, nil
	}
	if DaysSinceEnrolled(e.EnrolledAt, now, loc) < next.DelayDays {
		return Decision{Action: ActionNotDue, Step: next}, nil
	}
	sent, err := alreadySent(next.ID)
	if err != nil {
		return Decision{}, err
	}
	if sent {
		return Decision{Action: ActionCatchUp, Step: next}, nil
	}
	return Decision{Action: ActionAttempt, Step: next}, nil
}

// civilDate returns the calendar date of t in loc as UTC midnight, so that
// differences are exact multiples of 24h across DST changes.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
