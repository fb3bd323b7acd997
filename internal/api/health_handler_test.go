package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLastRun struct {
	at  time.Time
	err error
}

func (f fakeLastRun) LastRun() (time.Time, error) { return f.at, f.err }

func TestHealthReadiness(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hc := NewHealthChecker(db, rdb, fakeLastRun{at: time.Now()}, time.Hour)

	mock.ExpectPing()
	w := httptest.NewRecorder()
	hc.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeBody(t, w)["status"])

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	w = httptest.NewRecorder()
	hc.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["ready"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth_NotConfiguredIsHealthy(t *testing.T) {
	hc := NewHealthChecker(nil, nil, nil, 0)

	w := httptest.NewRecorder()
	hc.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeBody(t, w)["status"])
}

func TestCheckScheduler(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		run    fakeLastRun
		status string
	}{
		{"no pass yet", fakeLastRun{}, "up"},
		{"recent", fakeLastRun{at: now.Add(-30 * time.Minute)}, "up"},
		{"stale", fakeLastRun{at: now.Add(-3 * time.Hour)}, "degraded"},
		{"failed", fakeLastRun{at: now.Add(-time.Minute), err: errors.New("db down")}, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker(nil, nil, tt.run, 2*time.Hour)
			hc.now = func() time.Time { return now }
			assert.Equal(t, tt.status, hc.checkScheduler().Status)
		})
	}
}

func TestDetermineOverallStatus(t *testing.T) {
	assert.Equal(t, "unhealthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "down", Message: "ping failed"},
	}))
	assert.Equal(t, "degraded", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "up"},
		"redis":    {Status: "down", Message: "ping failed"},
	}))
	assert.Equal(t, "healthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "up"},
		"redis":    {Status: "down", Message: "not configured"},
	}))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5s", formatUptime(5*time.Second))
	assert.Equal(t, "2m 5s", formatUptime(125*time.Second))
	assert.Equal(t, "1d 1h 0m 0s", formatUptime(25*time.Hour))
}
