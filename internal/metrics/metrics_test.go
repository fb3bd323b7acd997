package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSend("sequence", true)
		m.RecordSends("broadcast", false, 3)
		m.ObserveBatch(time.Second)
		m.RecordTick("ran", time.Second)
		m.RecordEnrollment("sent")
		m.RecordWebhook("email.opened")
		m.RecordWebhookRejected("signature")
		m.RecordContactSync("create", true)
	})
}

func TestRecordSends(t *testing.T) {
	m := New()
	m.RecordSend("sequence", true)
	m.RecordSend("sequence", false)
	m.RecordSends("broadcast", true, 100)
	m.RecordSends("broadcast", true, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendsTotal.WithLabelValues("sequence", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendsTotal.WithLabelValues("sequence", "failed")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.SendsTotal.WithLabelValues("broadcast", "sent")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/api/v1/team/sequences/{id}/enroll", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/team/sequences/abc/enroll", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/v1/team/sequences/{id}/enroll", "201"))
	assert.Equal(t, 1.0, got)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.RecordWebhook("email.delivered")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `webhook_events_total{type="email.delivered"} 1`))
}
