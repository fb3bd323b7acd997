package api

import (
	"errors"
	"net/http"

	"github.com/rijksuitgaven/mailengine/internal/pkg/httputil"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
	"github.com/rijksuitgaven/mailengine/internal/service/engagement"
)

// HandleResendWebhook verifies and stores one provider event. Checks run
// cheapest first: configuration, headers and timestamp, size, signature,
// then payload.
//
//	POST /api/v1/webhooks/resend
func (h *Handlers) HandleResendWebhook(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil || h.events == nil {
		h.metrics.RecordWebhookRejected("not_configured")
		configError(w, "webhook secret")
		return
	}

	hdr := engagement.HeadersFrom(r.Header)
	if err := h.verifier.CheckHeaders(hdr); err != nil {
		h.reject(w, http.StatusUnauthorized, err)
		return
	}

	body, err := httputil.ReadLimited(r, int64(h.verifier.MaxPayload()))
	if errors.Is(err, httputil.ErrBodyTooLarge) {
		h.reject(w, http.StatusRequestEntityTooLarge, engagement.ErrPayloadTooLarge)
		return
	}
	if err != nil {
		h.reject(w, http.StatusBadRequest, err)
		return
	}

	if err := h.verifier.VerifySignature(hdr, body); err != nil {
		h.reject(w, http.StatusUnauthorized, err)
		return
	}

	ev, err := engagement.ParseEvent(body)
	if err != nil {
		h.reject(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := h.events.Ingest(r.Context(), ev)
	if err != nil {
		// A 5xx makes the provider redeliver; replays are deduplicated.
		httputil.InternalError(w, err)
		return
	}
	logger.Debug("webhook processed", "type", ev.Type, "outcome", string(outcome), "svix_id", hdr.ID)
	httputil.OK(w, map[string]bool{"received": true})
}

func (h *Handlers) reject(w http.ResponseWriter, status int, err error) {
	reason := webhookRejectReason(err)
	h.metrics.RecordWebhookRejected(reason)
	logger.Warn("webhook rejected", "reason", reason, "status", status)
	httputil.Error(w, status, err.Error())
}

func webhookRejectReason(err error) string {
	switch {
	case errors.Is(err, engagement.ErrMissingHeaders):
		return "missing_headers"
	case errors.Is(err, engagement.ErrStaleTimestamp):
		return "stale_timestamp"
	case errors.Is(err, engagement.ErrPayloadTooLarge):
		return "too_large"
	case errors.Is(err, engagement.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, engagement.ErrInvalidPayload):
		return "invalid_payload"
	}
	return "unreadable"
}
