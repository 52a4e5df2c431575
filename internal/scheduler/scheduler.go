package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const jobName = "daily-checkin"

// Daily fires the runner once a day at a fixed wall-clock time.
type Daily struct {
	sched gocron.Scheduler
	job   gocron.Job
}

// NewDaily schedules runner at hour:minute in loc. ctx is handed to every
// scheduled run; cancel it to abort a run in flight.
func NewDaily(ctx context.Context, runner *Runner, loc *time.Location, hour, minute uint) (*Daily, error) {
	if loc == nil {
		loc = time.UTC
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	job, err := sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(func() {
			summary, err := runner.TryRun(ctx)
			switch {
			case errors.Is(err, ErrRunInProgress):
				log.Printf("⚠️ Scheduled run skipped: %v", err)
			case err != nil:
				log.Printf("❌ Scheduled run failed: %v", err)
			default:
				log.Printf("✅ Scheduled run %s done: %d signed, %d already signed, %d failed",
					summary.RunID, summary.TotalSuccesses, summary.TotalAlreadySigned, summary.TotalFailures)
			}
		}),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule daily check-in: %w", err)
	}
	return &Daily{sched: sched, job: job}, nil
}

func (d *Daily) Start() {
	d.sched.Start()
}

// NextRun returns when the next scheduled run fires.
func (d *Daily) NextRun() (time.Time, error) {
	return d.job.NextRun()
}

// RunNow fires the job outside its schedule.
func (d *Daily) RunNow() error {
	return d.job.RunNow()
}

// Shutdown stops the schedule and waits for a running job to return.
func (d *Daily) Shutdown() error {
	return d.sched.Shutdown()
}
