package sequence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
	"github.com/rijksuitgaven/mailengine/internal/service/delivery"
	"github.com/rijksuitgaven/mailengine/internal/service/suppression"
)

// Tick skip reasons.
const (
	ReasonWeekend     = "weekend"
	ReasonNoSequences = "no matching sequences"
)

// TickResult summarizes one scheduler tick.
type TickResult struct {
	Processed int
	Sent      int
	Skipped   int
	Errors    int

	// Weekend is set when the tick did nothing because it is Saturday or
	// Sunday in the configured zone.
	Weekend bool
	Reason  string
}

// MarshalJSON renders a weekend tick as {"skipped":true,"reason":"weekend"}
// and any other tick as its counters.
func (r TickResult) MarshalJSON() ([]byte, error) {
	if r.Weekend {
		return json.Marshal(struct {
			Skipped bool   `json:"skipped"`
			Reason  string `json:"reason"`
		}{true, r.Reason})
	}
	return json.Marshal(struct {
		Processed int    `json:"processed"`
		Sent      int    `json:"sent"`
		Skipped   int    `json:"skipped"`
		Errors    int    `json:"errors"`
		Reason    string `json:"reason,omitempty"`
	}{r.Processed, r.Sent, r.Skipped, r.Errors, r.Reason})
}

// Tick runs one pass of the scheduler: on a weekday, every active sequence
// whose send hour equals the current civil hour has its active enrollments
// stepped once. Enrollments are handled one at a time; delivery failures are
// recorded and the loop continues. Tick returns delivery.ErrNotConfigured
// when no provider is wired, and the context error if ctx ends mid-tick
// together with the partial counters.
func (s *Service) Tick(ctx context.Context) (TickResult, error) {
	if s.pipeline == nil || s.renderer == nil {
		return TickResult{}, delivery.ErrNotConfigured
	}

	began := time.Now()
	now := s.now().In(s.loc)

	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		s.metrics.RecordTick("weekend", time.Since(began))
		return TickResult{Weekend: true, Reason: ReasonWeekend}, nil
	}

	sequences, err := s.repo.ActiveSequences(ctx)
	if err != nil {
		s.metrics.RecordTick("failed", time.Since(began))
		return TickResult{}, fmt.Errorf("load active sequences: %w", err)
	}

	var matching []domain.Sequence
	for _, seq := range sequences {
		if seq.SendHour() == now.Hour() {
			matching = append(matching, seq)
		}
	}
	if len(matching) == 0 {
		s.metrics.RecordTick("idle", time.Since(began))
		return TickResult{Reason: ReasonNoSequences}, nil
	}

	var res TickResult
	for _, seq := range matching {
		if err := s.runSequence(ctx, seq, now, &res); err != nil {
			s.metrics.RecordTick("failed", time.Since(began))
			return res, err
		}
	}

	logger.Info("sequence tick complete",
		"sequences", len(matching),
		"processed", res.Processed,
		"sent", res.Sent,
		"skipped", res.Skipped,
		"errors", res.Errors,
	)
	s.metrics.RecordTick("ran", time.Since(began))
	return res, nil
}

// runSequence steps every active enrollment of seq. Only a cancelled context
// aborts; store errors are logged and counted per enrollment.
func (s *Service) runSequence(ctx context.Context, seq domain.Sequence, now time.Time, res *TickResult) error {
	steps, err := s.repo.Steps(ctx, seq.ID)
	if err != nil {
		logger.Error("load steps failed", "sequence_id", seq.ID, "error", err)
		res.Errors++
		return nil
	}
	if len(steps) == 0 {
		return nil
	}
	enrollments, err := s.repo.ActiveEnrollments(ctx, seq.ID)
	if err != nil {
		logger.Error("load enrollments failed", "sequence_id", seq.ID, "error", err)
		res.Errors++
		return nil
	}

	for _, e := range enrollments {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Processed++
		s.step(ctx, seq, steps, e, now, res)
	}
	return nil
}

func (s *Service) step(ctx context.Context, seq domain.Sequence, steps []domain.Step, e domain.Enrollment, now time.Time, res *TickResult) {
	d, err := Decide(e, steps, now, s.loc, func(stepID string) (bool, error) {
		return s.repo.HasSend(ctx, e.ID, stepID)
	})
	if err != nil {
		logger.Error("send lookup failed", "enrollment_id", e.ID, "error", err)
		res.Errors++
		return
	}

	switch d.Action {
	case ActionComplete:
		if err := s.repo.Complete(ctx, e.ID, now); err != nil {
			logger.Error("complete enrollment failed", "enrollment_id", e.ID, "error", err)
			res.Errors++
			return
		}
		s.metrics.RecordEnrollment("completed")

	case ActionNotDue:
		res.Skipped++
		s.metrics.RecordEnrollment("not_due")

	case ActionCatchUp:
		if err := s.repo.AdvanceStep(ctx, e.ID, d.Step.StepOrder); err != nil {
			logger.Error("advance enrollment failed", "enrollment_id", e.ID, "error", err)
			res.Errors++
			return
		}
		res.Skipped++
		s.metrics.RecordEnrollment("catch_up")

	case ActionAttempt:
		s.attempt(ctx, seq, *d.Step, e, now, res)
	}
}

// attempt checks suppression and delivers step to the enrolled person.
func (s *Service) attempt(ctx context.Context, seq domain.Sequence, step domain.Step, e domain.Enrollment, now time.Time, res *TickResult) {
	p, err := s.repo.GetPerson(ctx, e.PersonID)
	if err != nil && !errors.Is(err, ErrPersonNotFound) {
		logger.Error("load person failed", "enrollment_id", e.ID, "error", err)
		res.Errors++
		return
	}
	if !suppression.IsEligible(p) {
		if err := s.repo.Cancel(ctx, e.ID, now); err != nil {
			logger.Error("cancel enrollment failed", "enrollment_id", e.ID, "error", err)
			res.Errors++
			return
		}
		logger.Info("enrollment cancelled", "enrollment_id", e.ID, "reason", string(suppression.Reason(p)))
		res.Skipped++
		s.metrics.RecordEnrollment("cancelled")
		return
	}

	unsubscribeURL := delivery.UnsubscribeURL(s.baseURL, p.UnsubscribeToken)
	rendered, err := s.renderer.Render(step.Content(), delivery.Recipient{FirstName: p.FirstName, UnsubscribeURL: unsubscribeURL})
	if err != nil {
		s.recordFailure(ctx, e, step, p.ID, err.Error(), res)
		return
	}
	msg := delivery.NewMessage(s.from, p.Email, step.Subject, rendered, unsubscribeURL, delivery.SequenceTags(seq.ID, step.ID))
	msg.IdempotencyKey = "sequence/" + e.ID + "/" + step.ID

	out := s.pipeline.SendOne(ctx, msg)
	if !out.OK {
		s.recordFailure(ctx, e, step, p.ID, out.Error, res)
		return
	}

	send := &domain.SequenceSend{
		EnrollmentID:      e.ID,
		StepID:            step.ID,
		PersonID:          p.ID,
		Status:            domain.SendSent,
		ProviderMessageID: out.ProviderMessageID,
		CreatedAt:         now,
	}
	if err := s.repo.RecordSend(ctx, send); err != nil && !errors.Is(err, ErrDuplicateSend) {
		logger.Error("record send failed", "enrollment_id", e.ID, "step_id", step.ID, "error", err)
	}
	if err := s.repo.AdvanceStep(ctx, e.ID, step.StepOrder); err != nil {
		logger.Error("advance enrollment failed", "enrollment_id", e.ID, "error", err)
	}
	res.Sent++
	s.metrics.RecordEnrollment("sent")
}

func (s *Service) recordFailure(ctx context.Context, e domain.Enrollment, step domain.Step, personID, reason string, res *TickResult) {
	if reason == "" {
		reason = "unknown error"
	}
	send := &domain.SequenceSend{
		EnrollmentID: e.ID,
		StepID:       step.ID,
		PersonID:     personID,
		Status:       domain.SendFailed,
		ErrorMessage: reason,
		CreatedAt:    s.now(),
	}
	if err := s.repo.RecordSend(ctx, send); err != nil && !errors.Is(err, ErrDuplicateSend) {
		logger.Error("record failed send failed", "enrollment_id", e.ID, "step_id", step.ID, "error", err)
	}
	logger.Warn("sequence step failed", "enrollment_id", e.ID, "step_id", step.ID, "error", reason)
	res.Errors++
	s.metrics.RecordEnrollment("failed")
}
