package sequence

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

func TestDaysSinceEnrolled(t *testing.T) {
	tests := []struct {
		name     string
		enrolled time.Time
		now      time.Time
		want     int
	}{
		{"same day later hour", time.Date(2026, 3, 2, 8, 0, 0, 0, amsterdam), time.Date(2026, 3, 2, 9, 0, 0, 0, amsterdam), 0},
		{"enrolled late evening", time.Date(2026, 3, 2, 23, 30, 0, 0, amsterdam), time.Date(2026, 3, 3, 9, 0, 0, 0, amsterdam), 1},
		{"three days", time.Date(2026, 3, 2, 12, 0, 0, 0, amsterdam), time.Date(2026, 3, 5, 9, 0, 0, 0, amsterdam), 3},
		{"across DST change", time.Date(2026, 3, 28, 10, 0, 0, 0, amsterdam), time.Date(2026, 3, 30, 9, 0, 0, 0, amsterdam), 2},
		{"utc enrollment before local midnight", time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC), time.Date(2026, 3, 3, 9, 0, 0, 0, amsterdam), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysSinceEnrolled(tt.enrolled, tt.now, amsterdam); got != tt.want {
				t.Errorf("DaysSinceEnrolled = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, amsterdam)
	enrolled := time.Date(2026, 3, 2, 9, 0, 0, 0, amsterdam)
	steps := []domain.Step{
		{ID: "s1", StepOrder: 1, DelayDays: 0},
		{ID: "s2", StepOrder: 2, DelayDays: 3},
		{ID: "s3", StepOrder: 3, DelayDays: 10},
	}
	never := func(string) (bool, error) { return false, nil }
	always := func(string) (bool, error) { return true, nil }

	tests := []struct {
		name    string
		current int
		sent    func(string) (bool, error)
		want    Action
		step    string
	}{
		{"first step due", 0, never, ActionAttempt, "s1"},
		{"second step due today", 1, never, ActionAttempt, "s2"},
		{"third step not due", 2, always, ActionNotDue, "s3"},
		{"already sent", 1, always, ActionCatchUp, "s2"},
		{"past last step", 3, never, ActionComplete, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := domain.Enrollment{CurrentStep: tt.current, EnrolledAt: enrolled}
			d, err := Decide(e, steps, now, amsterdam, tt.sent)
			if err != nil {
				t.Fatal(err)
			}
			if d.Action != tt.want {
				t.Errorf("action = %s, want %s", d.Action, tt.want)
			}
			if tt.step != "" && (d.Step == nil || d.Step.ID != tt.step) {
				t.Errorf("step = %+v, want %s", d.Step, tt.step)
			}
		})
	}
}

func TestDecide_NoLookupWhenNotDue(t *testing.T) {
	e := domain.Enrollment{EnrolledAt: time.Date(2026, 3, 2, 9, 0, 0, 0, amsterdam)}
	steps := []domain.Step{{ID: "s1", StepOrder: 1, DelayDays: 5}}
	lookup := func(string) (bool, error) { return false, errors.New("must not be called") }

	d, err := Decide(e, steps, time.Date(2026, 3, 3, 9, 0, 0, 0, amsterdam), amsterdam, lookup)
	if err != nil || d.Action != ActionNotDue {
		t.Errorf("got %v, %v", d.Action, err)
	}
}

func TestDecide_LookupError(t *testing.T) {
	e := domain.Enrollment{EnrolledAt: time.Date(2026, 3, 2, 9, 0, 0, 0, amsterdam)}
	steps := []domain.Step{{ID: "s1", StepOrder: 1}}
	boom := errors.New("db down")

	_, err := Decide(e, steps, time.Date(2026, 3, 2, 9, 0, 0, 0, amsterdam), amsterdam, func(string) (bool, error) { return false, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestSendHour(t *testing.T) {
	tests := map[string]int{"09:00": 9, "14:30": 14, "7": 7, "": domain.DefaultSendHour, "xx:00": domain.DefaultSendHour, "25:00": domain.DefaultSendHour}
	for in, want := range tests {
		if got := (domain.Sequence{SendTime: in}).SendHour(); got != want {
			t.Errorf("SendHour(%q) = %d, want %d", in, got, want)
		}
	}
}
