package probe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/foodapp/internal/logging"
	"github.com/R3E-Network/foodapp/internal/manifest"
	"github.com/R3E-Network/foodapp/pkg/testutil"
)

type scriptedChecker struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (s *scriptedChecker) Health(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

type countingRecorder struct {
	attempts int
	up       *bool
}

func (r *countingRecorder) RecordProbeAttempt()  { r.attempts++ }
func (r *countingRecorder) SetBackendUp(up bool) { r.up = &up }

func newTestProber(c Checker, attempts int, rec Recorder) (*Prober, *[]time.Duration) {
	p := New(c, Config{Attempts: attempts, Backoff: time.Second, Path: "/api/health"}, logging.NewTest(), rec)
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return p, &slept
}

func TestRunStopsAtFirstSuccess(t *testing.T) {
	down := errors.New("connection refused")
	checker := &scriptedChecker{results: []error{down, nil, nil}}
	rec := &countingRecorder{}
	p, slept := newTestProber(checker, 3, rec)

	assert.Equal(t, LabelTesting, p.Status().Label)
	res := p.Run(context.Background())

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, checker.calls)
	assert.Equal(t, []time.Duration{time.Second}, *slept)
	assert.Equal(t, 2, rec.attempts)
	require.NotNil(t, rec.up)
	assert.True(t, *rec.up)

	st := p.Status()
	assert.True(t, st.Connected)
	assert.Equal(t, LabelConnected, st.Label)
}

func TestRunNeverExceedsAttempts(t *testing.T) {
	down := errors.New("connection refused")
	checker := &scriptedChecker{results: []error{down, down, down, down}}
	p, slept := newTestProber(checker, 3, nil)

	res := p.Run(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, checker.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept, "linear backoff, none after the last attempt")
	assert.ErrorIs(t, res.Err, down)

	st := p.Status()
	assert.False(t, st.Connected)
	assert.Equal(t, LabelFailed, st.Label)
	assert.NotEmpty(t, st.LastError)
}

func TestRunCancelledDuringBackoff(t *testing.T) {
	checker := &scriptedChecker{results: []error{errors.New("down")}}
	p, _ := newTestProber(checker, 3, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.Run(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
}

func TestRunAgainstFakeBackend(t *testing.T) {
	fake := testutil.NewFakeManifest(t)
	fake.FailHealth(1)
	client, err := manifest.NewClient(manifest.Config{BaseURL: fake.URL()})
	require.NoError(t, err)

	p, _ := newTestProber(client, 3, nil)
	res := p.Run(context.Background())

	assert.True(t, res.Success)
	assert.Equal(t, 2, fake.Calls("health"))
}

func TestSchedule(t *testing.T) {
	p, _ := newTestProber(&scriptedChecker{}, 1, nil)
	c := cron.New()

	require.NoError(t, p.Schedule(c, "", 0))
	assert.Empty(t, c.Entries())

	require.NoError(t, p.Schedule(c, "@every 5m", time.Second))
	assert.Len(t, c.Entries(), 1)

	assert.Error(t, p.Schedule(c, "not a schedule", time.Second))
}
