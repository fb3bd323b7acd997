package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rijksuitgaven/mailengine/internal/pkg/httputil"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
	"github.com/rijksuitgaven/mailengine/internal/service/suppression"
)

type unsubscribeRequest struct {
	Token string `json:"token"`
}

// HandleUnsubscribe applies a one-click unsubscribe. The response is always
// {"ok":true}: rate limited, oversized, malformed and unknown-token requests
// are dropped silently so the endpoint cannot be used to enumerate tokens.
//
//	POST /api/v1/unsubscribe
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	defer httputil.OK(w, map[string]bool{"ok": true})

	if !h.unsubscribeLimiter.Allow(clientIP(r)) {
		logger.Warn("unsubscribe: rate limited", "ip", clientIP(r))
		return
	}
	if h.unsubscriber == nil {
		logger.Error("unsubscribe: not configured")
		return
	}

	body, err := httputil.ReadLimited(r, h.unsubscribeMaxBody)
	if err != nil {
		return
	}
	token := tokenFrom(r, body)
	if token == "" {
		return
	}

	err = h.unsubscriber.Unsubscribe(r.Context(), token)
	if err != nil && !errors.Is(err, suppression.ErrInvalidToken) {
		logger.Error("unsubscribe failed", "error", err.Error())
	}
}

// tokenFrom reads the token from a JSON body, falling back to the query
// string used by List-Unsubscribe-Post one-click requests.
func tokenFrom(r *http.Request, body []byte) string {
	var req unsubscribeRequest
	if len(body) > 0 && json.Unmarshal(body, &req) == nil && strings.TrimSpace(req.Token) != "" {
		return strings.TrimSpace(req.Token)
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
