package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rijksuitgaven/mailengine/internal/contactsync"
	"github.com/rijksuitgaven/mailengine/internal/pkg/httputil"
)

// HandleContactSync queues a mirror update for one person. The call to the
// provider happens in the background.
//
//	POST /api/v1/team/contacts/{id}/sync
func (h *Handlers) HandleContactSync(w http.ResponseWriter, r *http.Request) {
	if h.contacts == nil {
		configError(w, "contact sync")
		return
	}
	personID := chi.URLParam(r, "id")
	if err := h.validator.Var(personID, "uuid"); err != nil {
		httputil.BadRequest(w, "invalid person id")
		return
	}

	op, err := h.contacts.SyncPerson(r.Context(), personID)
	switch {
	case errors.Is(err, contactsync.ErrPersonNotFound):
		httputil.NotFound(w, "person not found")
	case errors.Is(err, contactsync.ErrNoEmail):
		httputil.BadRequest(w, "person has no email")
	case errors.Is(err, contactsync.ErrQueueFull):
		httputil.Error(w, http.StatusServiceUnavailable, "contact sync queue full")
	case err != nil:
		httputil.InternalError(w, err)
	case op == "":
		httputil.OK(w, map[string]string{"op": "none"})
	default:
		httputil.JSON(w, http.StatusAccepted, map[string]string{"op": string(op)})
	}
}
