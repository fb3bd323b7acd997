package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/pkg/httputil"
	"github.com/rijksuitgaven/mailengine/internal/service/audience"
	"github.com/rijksuitgaven/mailengine/internal/service/campaign"
	"github.com/rijksuitgaven/mailengine/internal/service/delivery"
	"github.com/rijksuitgaven/mailengine/internal/storage"
)

type evaluateRequest struct {
	Groups        []audience.WireGroup `json:"groups" validate:"max=10"`
	BasePersonIDs []string             `json:"base_person_ids" validate:"omitempty,dive,uuid"`
}

type evaluateResponse struct {
	Count     int      `json:"count"`
	PersonIDs []string `json:"person_ids"`
}

// HandleEvaluateConditions resolves a condition tree to person ids.
//
//	POST /api/v1/team/mail/conditions/evaluate
func (h *Handlers) HandleEvaluateConditions(w http.ResponseWriter, r *http.Request) {
	if h.audience == nil {
		configError(w, "audience")
		return
	}
	var req evaluateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	groups, err := audience.ParseGroups(req.Groups)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var base audience.Set
	if req.BasePersonIDs != nil {
		base = audience.NewSet(req.BasePersonIDs...)
	}

	set, err := h.audience.Evaluate(r.Context(), groups, base)
	var verr *audience.ValidationError
	if errors.As(err, &verr) {
		httputil.BadRequest(w, verr.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	ids := set.Sorted()
	httputil.OK(w, evaluateResponse{Count: len(ids), PersonIDs: ids})
}

type conditionsBody struct {
	Groups []audience.WireGroup `json:"groups" validate:"max=10"`
}

type sendRequest struct {
	Subject    string          `json:"subject" validate:"required,max=200"`
	Heading    string          `json:"heading" validate:"required,max=200"`
	Preheader  string          `json:"preheader" validate:"max=300"`
	Body       string          `json:"body" validate:"required"`
	CTAText    string          `json:"ctaText" validate:"max=100"`
	CTAURL     string          `json:"ctaUrl" validate:"omitempty,url"`
	Segments   []string        `json:"segments" validate:"required,min=1,max=6,dive,required"`
	DraftID    string          `json:"draftId" validate:"omitempty,uuid"`
	TopicID    string          `json:"topicId"`
	Conditions *conditionsBody `json:"conditions"`
	SentBy     string          `json:"sentBy"`
}

func (req sendRequest) groups() []audience.WireGroup {
	if req.Conditions == nil {
		return nil
	}
	return req.Conditions.Groups
}

// HandleSendCampaign sends a broadcast to the requested segments.
//
//	POST /api/v1/team/mail/send
func (h *Handlers) HandleSendCampaign(w http.ResponseWriter, r *http.Request) {
	if h.campaigns == nil {
		configError(w, "campaigns")
		return
	}
	var req sendRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.campaigns.Send(r.Context(), campaign.Request{
		Subject:    req.Subject,
		Heading:    req.Heading,
		Preheader:  req.Preheader,
		Body:       req.Body,
		CTAText:    req.CTAText,
		CTAURL:     req.CTAURL,
		Segments:   req.Segments,
		DraftID:    req.DraftID,
		TopicID:    req.TopicID,
		Conditions: req.groups(),
		SentBy:     req.SentBy,
	})
	var (
		verr *campaign.ValidationError
		aerr *audience.ValidationError
	)
	switch {
	case errors.As(err, &verr):
		httputil.BadRequest(w, verr.Error())
	case errors.As(err, &aerr):
		httputil.BadRequest(w, aerr.Error())
	case errors.Is(err, campaign.ErrNoRecipients):
		httputil.BadRequest(w, "no recipients match the selection")
	case errors.Is(err, campaign.ErrDraftNotFound):
		httputil.NotFound(w, "draft not found")
	case errors.Is(err, delivery.ErrNotConfigured):
		configError(w, "mail provider")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, res)
	}
}

// HandleCampaignArchive serves the archived rendering of a sent campaign.
//
//	GET /api/v1/team/mail/campaigns/{id}/archive
func (h *Handlers) HandleCampaignArchive(w http.ResponseWriter, r *http.Request) {
	if h.campaigns == nil {
		configError(w, "campaigns")
		return
	}
	html, err := h.campaigns.Archived(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrNotArchived), errors.Is(err, storage.ErrNotFound):
		httputil.NotFound(w, "campaign has no archive")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(html)
	}
}

// HandleListTypes counts people per list type.
//
//	GET /api/v1/team/mail/list-types
func (h *Handlers) HandleListTypes(w http.ResponseWriter, r *http.Request) {
	if h.audience == nil {
		configError(w, "audience")
		return
	}
	counts, err := h.audience.ListTypeCounts(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	out := map[domain.ListType]int{
		domain.ListLeden:     counts[domain.ListLeden],
		domain.ListChurned:   counts[domain.ListChurned],
		domain.ListProspects: counts[domain.ListProspects],
	}
	httputil.OK(w, out)
}
