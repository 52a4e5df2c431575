// Package scheduler triggers check-in runs daily and on demand, never two at
// a time.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pysugar/checkin-nexus/internal/checkin"
)

// ErrRunInProgress is returned by TryRun while another run is executing.
var ErrRunInProgress = errors.New("a check-in run is already in progress")

// RunFunc executes one full check-in run.
type RunFunc func(ctx context.Context) (checkin.RunSummary, error)

// Runner serializes runs started by the schedule, the HTTP surface and the CLI.
type Runner struct {
	run     RunFunc
	running atomic.Bool

	mu      sync.RWMutex
	last    *checkin.RunSummary
	lastErr error
}

func NewRunner(run RunFunc) *Runner {
	return &Runner{run: run}
}

// TryRun starts a run unless one is already executing.
func (r *Runner) TryRun(ctx context.Context) (checkin.RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return checkin.RunSummary{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	summary, err := r.run(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err
	if err == nil {
		r.last = &summary
	}
	return summary, err
}

func (r *Runner) Running() bool {
	return r.running.Load()
}

// Last returns the summary of the most recent completed run and the error of
// the most recent attempt.
func (r *Runner) Last() (*checkin.RunSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil, r.lastErr
	}
	s := *r.last
	return &s, r.lastErr
}
