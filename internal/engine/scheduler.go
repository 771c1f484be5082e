package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fleetwatch/fleetwatch/internal/store"
)

// Job names recorded in job_runs.
const (
	jobHeartbeatSweep = "heartbeat_sweep"
	jobRunRecovery    = "job_run_recovery"
)

// staleJobAge is how long a job run may stay "running" before the recovery
// job marks it crashed.
const staleJobAge = time.Hour

// Scheduler manages the periodic heartbeat sweep and job-run housekeeping.
type Scheduler struct {
	cron       *cron.Cron
	engine     *Engine
	store      store.Store
	staleAfter time.Duration
	log        *slog.Logger
}

// NewScheduler creates a new Scheduler. sweepInterval is the heartbeat sweep
// cadence; staleAfter is how long a device may stay silent before it is
// considered stale.
func NewScheduler(
	eng *Engine,
	s store.Store,
	sweepInterval time.Duration,
	staleAfter time.Duration,
	log *slog.Logger,
) (*Scheduler, error) {
	c := cron.New()

	sched := &Scheduler{
		cron:       c,
		engine:     eng,
		store:      s,
		staleAfter: staleAfter,
		log:        log,
	}

	if _, err := c.AddFunc(
		"@every "+sweepInterval.String(),
		sched.runHeartbeatSweep,
	); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc("@hourly", sched.runJobRecovery); err != nil {
		return nil, err
	}

	return sched, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runHeartbeatSweep() {
	ctx := context.Background()
	s.recordRun(ctx, jobHeartbeatSweep, func() (int, error) {
		return s.engine.RunHeartbeatSweep(ctx, s.staleAfter)
	})
}

func (s *Scheduler) runJobRecovery() {
	ctx := context.Background()
	s.recordRun(ctx, jobRunRecovery, func() (int, error) {
		return s.store.RecoverStaleJobRuns(ctx, staleJobAge)
	})
}

// recordRun wraps a job in a job_runs record. A failure to write the record
// never blocks the job itself.
func (s *Scheduler) recordRun(ctx context.Context, jobName string, fn func() (int, error)) {
	s.log.Info("scheduled job starting", "job", jobName)

	runID, err := s.store.InsertJobRun(ctx, jobName)
	if err != nil {
		s.log.Error("recording job run failed", "job", jobName, "error", err)
	}

	affected, jobErr := fn()

	status := "success"
	errText := ""
	if jobErr != nil {
		status = "failed"
		errText = jobErr.Error()
		s.log.Error("scheduled job failed", "job", jobName, "error", jobErr)
	} else {
		s.log.Info("scheduled job finished", "job", jobName, "rows_affected", affected)
	}

	if runID == "" {
		return
	}
	if err := s.store.CompleteJobRun(ctx, runID, status, errText, affected); err != nil {
		s.log.Error("completing job run failed", "job", jobName, "error", err)
	}
}

// RunOnce executes a single evaluation pass plus a heartbeat sweep. Used by
// the one-shot CLI command.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if err := s.engine.RunPass(ctx); err != nil {
		return fmt.Errorf("evaluation pass: %w", err)
	}
	if _, err := s.engine.RunHeartbeatSweep(ctx, s.staleAfter); err != nil {
		return fmt.Errorf("heartbeat sweep: %w", err)
	}
	return nil
}
