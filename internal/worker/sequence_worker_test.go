package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijksuitgaven/mailengine/internal/pkg/distlock"
	"github.com/rijksuitgaven/mailengine/internal/service/sequence"
)

type fakeTicker struct {
	calls int32
	res   sequence.TickResult
	err   error
}

func (f *fakeTicker) Tick(ctx context.Context) (sequence.TickResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if _, ok := ctx.Deadline(); !ok {
		return sequence.TickResult{}, errors.New("tick without deadline")
	}
	return f.res, f.err
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestSequenceWorker_RunOnce(t *testing.T) {
	mr, client := setupRedis(t)
	ticker := &fakeTicker{res: sequence.TickResult{Processed: 3, Sent: 2, Skipped: 1}}
	lock := distlock.NewLock(client, nil, "mailengine:sequence-tick", time.Minute)

	w, err := NewSequenceWorker(ticker, lock, SequenceConfig{})
	require.NoError(t, err)

	res, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.EqualValues(t, 1, atomic.LoadInt32(&ticker.calls))
	assert.False(t, mr.Exists("lock:mailengine:sequence-tick"), "lock must be released after the tick")

	at, lastErr := w.LastRun()
	assert.False(t, at.IsZero())
	assert.NoError(t, lastErr)
}

func TestSequenceWorker_SkipsWhenLockHeld(t *testing.T) {
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set("lock:mailengine:sequence-tick", "other-replica"))

	ticker := &fakeTicker{}
	w, err := NewSequenceWorker(ticker, distlock.NewRedisLock(client, "mailengine:sequence-tick", time.Minute), SequenceConfig{})
	require.NoError(t, err)

	_, err = w.RunOnce(context.Background())
	assert.ErrorIs(t, err, distlock.ErrNotAcquired)
	assert.EqualValues(t, 0, atomic.LoadInt32(&ticker.calls))

	got, _ := mr.Get("lock:mailengine:sequence-tick")
	assert.Equal(t, "other-replica", got)
}

func TestSequenceWorker_TickErrorReleasesLock(t *testing.T) {
	mr, client := setupRedis(t)
	ticker := &fakeTicker{err: errors.New("db down")}
	w, err := NewSequenceWorker(ticker, distlock.NewRedisLock(client, "tick", time.Minute), SequenceConfig{})
	require.NoError(t, err)

	_, err = w.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
	assert.False(t, mr.Exists("lock:tick"))

	_, lastErr := w.LastRun()
	assert.Error(t, lastErr)
}

func TestSequenceWorker_InvalidSchedule(t *testing.T) {
	_, err := NewSequenceWorker(&fakeTicker{}, nil, SequenceConfig{Schedule: "every hour"})
	assert.Error(t, err)
}

func TestSequenceWorker_NextUsesLocation(t *testing.T) {
	ams, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)

	w, err := NewSequenceWorker(&fakeTicker{}, nil, SequenceConfig{Schedule: "0 9 * * *", Location: ams})
	require.NoError(t, err)

	// 08:30 UTC is 09:30 CET, so the next 09:00 is tomorrow.
	from := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	next := w.Next(from)
	assert.Equal(t, 9, next.In(ams).Hour())
	assert.Equal(t, 3, next.In(ams).Day())
}

func TestSequenceWorker_StartStop(t *testing.T) {
	w, err := NewSequenceWorker(&fakeTicker{}, nil, SequenceConfig{})
	require.NoError(t, err)

	w.Start()
	w.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
	require.NoError(t, w.Stop(ctx))
}
