package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rijksuitgaven/mailengine/internal/pkg/httputil"
	"github.com/rijksuitgaven/mailengine/internal/service/sequence"
)

type enrollRequest struct {
	PersonID string `json:"person_id" validate:"required,uuid"`
}

// HandleEnroll enrolls one person into a sequence.
//
//	POST /api/v1/team/sequences/{id}/enroll
func (h *Handlers) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	if h.sequences == nil {
		configError(w, "sequences")
		return
	}
	var req enrollRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	e, err := h.sequences.Enroll(r.Context(), chi.URLParam(r, "id"), req.PersonID)
	if err != nil {
		writeSequenceError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"enrollment": e})
}

type stepRequest struct {
	Subject   string `json:"subject" validate:"required"`
	Heading   string `json:"heading" validate:"required"`
	Preheader string `json:"preheader"`
	Body      string `json:"body" validate:"required"`
	CTAText   string `json:"cta_text"`
	CTAURL    string `json:"cta_url" validate:"omitempty,url"`
	DelayDays *int   `json:"delay_days" validate:"omitempty,min=0,max=365"`
}

// HandleAddStep appends a step to a sequence.
//
//	POST /api/v1/team/sequences/{id}/steps
func (h *Handlers) HandleAddStep(w http.ResponseWriter, r *http.Request) {
	if h.sequences == nil {
		configError(w, "sequences")
		return
	}
	var req stepRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	step, err := h.sequences.AddStep(r.Context(), chi.URLParam(r, "id"), sequence.StepInput{
		Subject:   req.Subject,
		Heading:   req.Heading,
		Preheader: req.Preheader,
		Body:      req.Body,
		CTAText:   req.CTAText,
		CTAURL:    req.CTAURL,
		DelayDays: req.DelayDays,
	})
	if err != nil {
		writeSequenceError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"step": step})
}

// HandleAutoEnroll enrolls a person into every active sequence.
//
//	POST /api/v1/team/people/{id}/auto-enroll
func (h *Handlers) HandleAutoEnroll(w http.ResponseWriter, r *http.Request) {
	if h.sequences == nil {
		configError(w, "sequences")
		return
	}
	personID := chi.URLParam(r, "id")
	if err := h.validator.Var(personID, "uuid"); err != nil {
		httputil.BadRequest(w, "invalid person id")
		return
	}
	n, err := h.sequences.AutoEnroll(r.Context(), personID)
	if err != nil {
		writeSequenceError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"enrolled": n})
}

func writeSequenceError(w http.ResponseWriter, err error) {
	var verr *sequence.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.BadRequest(w, verr.Error())
	case errors.Is(err, sequence.ErrNotFound):
		httputil.NotFound(w, "sequence not found")
	case errors.Is(err, sequence.ErrPersonNotFound):
		httputil.NotFound(w, "person not found")
	case errors.Is(err, sequence.ErrPersonSuppressed):
		httputil.BadRequest(w, "person is suppressed (bounced, unsubscribed or archived)")
	case errors.Is(err, sequence.ErrAlreadyEnrolled):
		httputil.Conflict(w, "person is already enrolled in this sequence")
	default:
		httputil.InternalError(w, err)
	}
}
