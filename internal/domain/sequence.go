package domain

import (
	"strconv"
	"strings"
	"time"
)

// SequenceStatus enumerates the lifecycle states of a drip sequence.
type SequenceStatus string

const (
	SequenceDraft  SequenceStatus = "draft"
	SequenceActive SequenceStatus = "active"
	SequencePaused SequenceStatus = "paused"
)

// DefaultSendHour is used when a sequence has no parsable send time.
const DefaultSendHour = 9

// Sequence is a named drip campaign. SendTime is a civil "HH:MM" in the
// engine's configured timezone.
type Sequence struct {
	ID          string         `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description,omitempty" db:"description"`
	Status      SequenceStatus `json:"status" db:"status"`
	SendTime    string         `json:"send_time" db:"send_time"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// SendHour returns the hour component of SendTime. Minutes are ignored.
func (s Sequence) SendHour() int {
	head, _, _ := strings.Cut(s.SendTime, ":")
	h, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || h < 0 || h > 23 {
		return DefaultSendHour
	}
	return h
}

// Step is one ordered, delay-gated message of a sequence.
type Step struct {
	ID         string    `json:"id" db:"id"`
	SequenceID string    `json:"sequence_id" db:"sequence_id"`
	StepOrder  int       `json:"step_order" db:"step_order"`
	DelayDays  int       `json:"delay_days" db:"delay_days"`
	Subject    string    `json:"subject" db:"subject"`
	Heading    string    `json:"heading" db:"heading"`
	Preheader  string    `json:"preheader,omitempty" db:"preheader"`
	Body       string    `json:"body" db:"body"`
	CTAText    string    `json:"cta_text,omitempty" db:"cta_text"`
	CTAURL     string    `json:"cta_url,omitempty" db:"cta_url"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Content returns the message content of the step.
func (s Step) Content() Content {
	return Content{
		Subject:   s.Subject,
		Heading:   s.Heading,
		Preheader: s.Preheader,
		Body:      s.Body,
		CTAText:   s.CTAText,
		CTAURL:    s.CTAURL,
	}
}

// EnrollmentStatus enumerates the states of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// IsTerminal returns true if no transition leaves the status.
func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentCompleted || s == EnrollmentCancelled
}

// Enrollment tracks one person's progress through one sequence.
// CurrentStep is the step_order of the last attempted step, 0 before any.
type Enrollment struct {
	ID          string           `json:"id" db:"id"`
	SequenceID  string           `json:"sequence_id" db:"sequence_id"`
	PersonID    string           `json:"person_id" db:"person_id"`
	CurrentStep int              `json:"current_step" db:"current_step"`
	Status      EnrollmentStatus `json:"status" db:"status"`
	EnrolledAt  time.Time        `json:"enrolled_at" db:"enrolled_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt *time.Time       `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// SendStatus is the outcome recorded for one delivery attempt.
type SendStatus string

const (
	SendSent   SendStatus = "sent"
	SendFailed SendStatus = "failed"
)

// SequenceSend is the immutable record of one delivery attempt for an
// (enrollment, step) pair.
type SequenceSend struct {
	ID                string     `json:"id" db:"id"`
	EnrollmentID      string     `json:"enrollment_id" db:"enrollment_id"`
	StepID            string     `json:"step_id" db:"step_id"`
	PersonID          string     `json:"person_id" db:"person_id"`
	Status            SendStatus `json:"status" db:"status"`
	ProviderMessageID string     `json:"provider_message_id,omitempty" db:"provider_message_id"`
	ErrorMessage      string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}
