package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/claude/repcounter/internal/models"
)

// ErrRunnerStopped is returned for work submitted after Run has returned.
var ErrRunnerStopped = errors.New("session runner stopped")

// Runner serializes all access to a Manager through one goroutine. HTTP
// handlers and the MQTT bridge submit work here instead of touching the
// Manager directly.
type Runner struct {
	m    *Manager
	jobs chan func()
	done chan struct{}
	log  *slog.Logger
}

// NewRunner creates a Runner with a job queue of the given depth.
func NewRunner(m *Manager, queue int, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if queue < 1 {
		queue = 1
	}
	return &Runner{
		m:    m,
		jobs: make(chan func(), queue),
		done: make(chan struct{}),
		log:  log,
	}
}

// Manager returns the underlying Manager for read-only use (Snapshot,
// Subscribe).
func (r *Runner) Manager() *Manager {
	return r.m
}

// Run processes jobs until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)
	r.log.Info("session runner started")
	for {
		select {
		case <-ctx.Done():
			if h := r.m.Active(); h != nil {
				r.m.Stop(h)
			}
			r.log.Info("session runner stopped")
			return ctx.Err()
		case job := <-r.jobs:
			job()
		}
	}
}

// Do runs fn on the processing goroutine and waits for it to finish.
func (r *Runner) Do(ctx context.Context, fn func(*Manager)) error {
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn(r.m)
	}
	select {
	case r.jobs <- job:
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once queued the job owns fn's captured variables, so wait for it or
	// for the runner to exit.
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrRunnerStopped
	}
}

// Submit routes one pose frame to the active session.
func (r *Runner) Submit(ctx context.Context, pose models.DetectedPose) (models.FrameResult, error) {
	var (
		res models.FrameResult
		err error
	)
	if derr := r.Do(ctx, func(m *Manager) {
		h := m.Active()
		if h == nil {
			err = ErrNoActiveSession
			return
		}
		res, err = m.ProcessFrame(h, pose)
	}); derr != nil {
		return models.FrameResult{}, derr
	}
	return res, err
}
