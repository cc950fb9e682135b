// Package jobs runs the periodic sweeps that keep leagues consistent between requests:
// filling free spots from waitlists and sending overdue-payment notices.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/metrics"
)

// Job names, also used as the metrics label.
const (
	WaitlistJob = "waitlist-promotion"
	OverdueJob  = "overdue-payments"
)

// ErrInvalidInterval is returned for a non-positive sweep interval.
var ErrInvalidInterval = errors.New("sweep interval must be positive")

// Sweeper is implemented by *service.Service.
type Sweeper interface {
	SweepWaitlists(ctx context.Context) (int, error)
	SweepOverduePayments(ctx context.Context) (int, error)
}

// Result reports what one pass of both sweeps did.
type Result struct {
	Promoted     int
	OverdueSent  int
	WaitlistErr  error
	OverdueErr   error
	WaitlistTook time.Duration
	OverdueTook  time.Duration
}

// Err joins both sweeps' errors.
func (r Result) Err() error {
	return errors.Join(r.WaitlistErr, r.OverdueErr)
}

// RunOnce runs both sweeps, waitlist first so newly promoted registrations start their
// payment window before overdue checks look at them. One failing does not skip the other.
func RunOnce(ctx context.Context, sw Sweeper) Result {
	var r Result

	start := time.Now()
	r.Promoted, r.WaitlistErr = sw.SweepWaitlists(ctx)
	r.WaitlistTook = time.Since(start)

	start = time.Now()
	r.OverdueSent, r.OverdueErr = sw.SweepOverduePayments(ctx)
	r.OverdueTook = time.Since(start)
	return r
}

// Scheduler wraps a gocron scheduler running both sweeps on a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
	stopErr   error
}

// New registers both sweeps to run every interval. Extra options are passed to gocron
// (tests use gocron.WithClock). Call Start to begin running.
func New(sw Sweeper, interval time.Duration, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	opts = append([]gocron.SchedulerOption{
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("Scheduler job panicked")
				}),
			),
		),
	}, opts...)
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{scheduler: sched, ctx: ctx, cancel: cancel}

	if err := s.add(WaitlistJob, interval, sw.SweepWaitlists, "Waitlist sweep promoted registrations"); err != nil {
		cancel()
		return nil, err
	}
	if err := s.add(OverdueJob, interval, sw.SweepOverduePayments, "Overdue sweep sent notices"); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// add registers one sweep. Singleton mode reschedules instead of overlapping a run
// that is still going.
func (s *Scheduler) add(name string, interval time.Duration, sweep func(context.Context) (int, error), doneMsg string) error {
	jobLogger := log.With().Str("job_name", name).Dur("interval", interval).Logger()

	task := func() {
		n, err := sweep(s.ctx)
		if err != nil {
			metrics.SweepErrors.WithLabelValues(name).Inc()
			jobLogger.Error().Err(err).Int("count", n).Msg("Sweep failed")
			return
		}
		if n > 0 {
			jobLogger.Info().Int("count", n).Msg(doneMsg)
		} else {
			jobLogger.Debug().Msg("Sweep found nothing to do")
		}
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to register scheduler job")
		return fmt.Errorf("add %s job: %w", name, err)
	}
	jobLogger.Info().Msg("Scheduler job registered")
	return nil
}

// Start begins running the sweeps.
func (s *Scheduler) Start() {
	log.Info().Msg("Scheduler starting")
	s.scheduler.Start()
}

// Stop cancels running sweeps and shuts the scheduler down. Safe to call more than once.
func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() {
		log.Info().Msg("Scheduler stopping")
		s.cancel()
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// Run starts the scheduler and blocks until ctx is done, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	return s.Stop()
}
