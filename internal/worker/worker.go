package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Stage is one long-running pipeline step. Process performs a single
// bounded unit of work: it must return within roughly one second when no
// input is available so the runner can observe its stop signal.
type Stage interface {
	Name() string
	Process(ctx context.Context) error
}

// Teardowner is implemented by stages that flush state on stop.
type Teardowner interface {
	Teardown()
}

// State of a runner
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Runner drives a Stage in its own goroutine until stopped. A failing or
// panicking step is logged and the loop continues.
type Runner struct {
	stage      Stage
	logger     zerolog.Logger
	panicDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	state   atomic.Value
	steps   atomic.Int64
	errors  atomic.Int64
	panics  atomic.Int64
	lastErr atomic.Value
	started time.Time
}

// NewRunner creates a runner for the stage. panicDelay is slept after a
// recovered panic before the next step.
func NewRunner(stage Stage, panicDelay time.Duration) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		stage:      stage,
		logger:     log.With().Str("stage", stage.Name()).Logger(),
		panicDelay: panicDelay,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	r.state.Store(StateIdle)
	return r
}

func (r *Runner) Name() string { return r.stage.Name() }

// Start launches the loop. Calling it more than once has no effect.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		r.started = time.Now()
		r.state.Store(StateRunning)
		go r.run()
	})
}

// Stop signals the loop to finish. It does not wait; use Wait to join.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		if r.State() == StateRunning {
			r.state.Store(StateStopping)
		}
		r.cancel()
	})
}

// Wait blocks until the loop and teardown have finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	r.startOnce.Do(func() {
		// never started: nothing to join
		r.state.Store(StateStopped)
		close(r.done)
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopAndWait stops the runner and joins it.
func (r *Runner) StopAndWait(ctx context.Context) error {
	r.Stop()
	return r.Wait(ctx)
}

func (r *Runner) run() {
	defer close(r.done)

	r.logger.Info().Msg("Stage started")

	for r.ctx.Err() == nil {
		r.step()
	}

	r.teardown()
	r.state.Store(StateStopped)
	r.logger.Info().Int64("steps", r.steps.Load()).Msg("Stage stopped")
}

// step runs a single Process call with panic recovery.
func (r *Runner) step() {
	defer func() {
		if rec := recover(); rec != nil {
			r.panics.Add(1)
			r.logger.Error().Interface("panic", rec).Msg("Stage panic recovered")
			select {
			case <-r.ctx.Done():
			case <-time.After(r.panicDelay):
			}
		}
	}()

	r.steps.Add(1)
	if err := r.stage.Process(r.ctx); err != nil {
		r.errors.Add(1)
		r.lastErr.Store(err.Error())
		r.logger.Error().Err(err).Msg("Stage step failed")
	}
}

func (r *Runner) teardown() {
	t, ok := r.stage.(Teardowner)
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("Stage teardown panic recovered")
		}
	}()
	t.Teardown()
}

func (r *Runner) State() State {
	return r.state.Load().(State)
}

// Stats is a point-in-time view of a runner
type Stats struct {
	Name      string  `json:"name"`
	State     State   `json:"state"`
	Steps     int64   `json:"steps"`
	Errors    int64   `json:"errors"`
	Panics    int64   `json:"panics"`
	LastError string  `json:"last_error,omitempty"`
	Uptime    float64 `json:"uptime_seconds"`
}

func (r *Runner) Stats() Stats {
	s := Stats{
		Name:   r.stage.Name(),
		State:  r.State(),
		Steps:  r.steps.Load(),
		Errors: r.errors.Load(),
		Panics: r.panics.Load(),
	}
	if v, ok := r.lastErr.Load().(string); ok {
		s.LastError = v
	}
	if !r.started.IsZero() && s.State != StateStopped {
		s.Uptime = time.Since(r.started).Seconds()
	}
	return s
}
