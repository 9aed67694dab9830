// Package probe checks backend connectivity with a bounded number of
// attempts and publishes the outcome as a passive status indicator. It never
// gates the session flow.
package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "github.com/R3E-Network/foodapp/internal/errors"
	"github.com/R3E-Network/foodapp/internal/logging"
)

// Status labels.
const (
	LabelTesting   = "Testing connection..."
	LabelConnected = "Connected"
	LabelFailed    = "Connection Failed"
)

// Checker performs one health request.
type Checker interface {
	Health(ctx context.Context, path string) error
}

// Recorder receives probe metrics.
type Recorder interface {
	RecordProbeAttempt()
	SetBackendUp(up bool)
}

// Config bounds a probe run.
type Config struct {
	Attempts int
	// Backoff is multiplied by the attempt number between attempts.
	Backoff time.Duration
	Path    string
	// BackendURL and AppID are logged with each run.
	BackendURL string
	AppID      string
}

// Result is the outcome of one Run.
type Result struct {
	Success  bool
	Attempts int
	Latency  time.Duration
	Err      error
}

// Status is the indicator shown on every page.
type Status struct {
	Connected bool      `json:"connected"`
	Label     string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}

// Prober runs connectivity probes.
type Prober struct {
	checker  Checker
	cfg      Config
	logger   *logging.Logger
	recorder Recorder
	sleep    func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	status Status
}

// New creates a prober whose status starts as "Testing connection...".
func New(checker Checker, cfg Config, logger *logging.Logger, recorder Recorder) *Prober {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Prober{
		checker:  checker,
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		sleep:    sleepContext,
		status:   Status{Label: LabelTesting},
	}
}

// Status returns the last published status.
func (p *Prober) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Run probes the backend until the first success or until the attempts are
// used up.
func (p *Prober) Run(ctx context.Context) Result {
	log := p.logger.WithComponent("probe").WithField("backend_url", p.cfg.BackendURL).WithField("app_id", p.cfg.AppID)
	log.Info("starting backend connection test")

	p.mu.Lock()
	p.status.Label = LabelTesting
	p.mu.Unlock()

	var res Result
	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		res.Attempts = attempt
		if p.recorder != nil {
			p.recorder.RecordProbeAttempt()
		}

		start := time.Now()
		err := p.checker.Health(ctx, p.cfg.Path)
		res.Latency = time.Since(start)

		if err == nil {
			res.Success = true
			res.Err = nil
			log.WithField("attempt", attempt).WithField("latency_ms", res.Latency.Milliseconds()).Info("backend connection successful")
			break
		}

		res.Err = apperrors.Connectivity(fmt.Sprintf("probe attempt %d of %d failed", attempt, p.cfg.Attempts), err)
		log.WithField("attempt", attempt).WithError(err).Warn("backend connection attempt failed")

		if attempt == p.cfg.Attempts {
			break
		}
		if err := p.sleep(ctx, time.Duration(attempt)*p.cfg.Backoff); err != nil {
			res.Err = apperrors.Connectivity("probe cancelled", err)
			break
		}
	}

	if !res.Success {
		log.WithError(res.Err).Error("backend connection failed; app may not work properly")
	}
	p.publish(res)
	return res
}

// Schedule re-runs the probe on the cron spec. An empty spec is a no-op.
func (p *Prober) Schedule(c *cron.Cron, spec string, timeout time.Duration) error {
	if spec == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		p.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule probe %q: %w", spec, err)
	}
	return nil
}

func (p *Prober) publish(res Result) {
	st := Status{
		Connected: res.Success,
		Label:     LabelConnected,
		Attempts:  res.Attempts,
		CheckedAt: time.Now().UTC(),
	}
	if !res.Success {
		st.Label = LabelFailed
		if res.Err != nil {
			st.LastError = res.Err.Error()
		}
	}

	p.mu.Lock()
	p.status = st
	p.mu.Unlock()

	if p.recorder != nil {
		p.recorder.SetBackendUp(res.Success)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
