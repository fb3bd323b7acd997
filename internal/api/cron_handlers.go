package api

import (
	"errors"
	"net/http"

	"github.com/rijksuitgaven/mailengine/internal/pkg/distlock"
	"github.com/rijksuitgaven/mailengine/internal/pkg/httputil"
	"github.com/rijksuitgaven/mailengine/internal/service/delivery"
)

// HandleSequenceTick runs one scheduler pass on demand.
//
//	POST /api/v1/cron/sequences
func (h *Handlers) HandleSequenceTick(w http.ResponseWriter, r *http.Request) {
	if h.ticks == nil {
		configError(w, "sequence scheduler")
		return
	}
	res, err := h.ticks.RunOnce(r.Context())
	switch {
	case errors.Is(err, distlock.ErrNotAcquired):
		httputil.JSON(w, http.StatusConflict, map[string]any{"skipped": true, "reason": "tick already running"})
	case errors.Is(err, delivery.ErrNotConfigured):
		configError(w, "mail provider")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, res)
	}
}
