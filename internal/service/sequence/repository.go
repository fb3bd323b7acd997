package sequence

import (
	"context"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// Repository defines the data access the sequence service needs.
type Repository interface {
	GetSequence(ctx context.Context, id string) (*domain.Sequence, error)
	ActiveSequences(ctx context.Context) ([]domain.Sequence, error)

	// Steps returns the steps of a sequence ordered by step_order.
	Steps(ctx context.Context, sequenceID string) ([]domain.Step, error)
	// AddStep inserts step with step_order one past the current maximum and
	// fills in its ID, StepOrder and CreatedAt.
	AddStep(ctx context.Context, step *domain.Step) error

	// ActiveEnrollments returns the active enrollments of a sequence in
	// store order.
	ActiveEnrollments(ctx context.Context, sequenceID string) ([]domain.Enrollment, error)
	// CreateEnrollment inserts e. It returns ErrAlreadyEnrolled when the
	// person is already enrolled in the sequence.
	CreateEnrollment(ctx context.Context, e *domain.Enrollment) error
	// AdvanceStep raises current_step to stepOrder. It never lowers it.
	AdvanceStep(ctx context.Context, enrollmentID string, stepOrder int) error
	Complete(ctx context.Context, enrollmentID string, at time.Time) error
	Cancel(ctx context.Context, enrollmentID string, at time.Time) error

	// HasSend reports whether any send, sent or failed, exists for the pair.
	HasSend(ctx context.Context, enrollmentID, stepID string) (bool, error)
	// RecordSend inserts s. It returns ErrDuplicateSend when a send already
	// exists for (enrollment, step).
	RecordSend(ctx context.Context, s *domain.SequenceSend) error

	// GetPerson returns ErrPersonNotFound when no person has id.
	GetPerson(ctx context.Context, id string) (*domain.Person, error)
}
