package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Job is one scheduled run. ctx is canceled when the scheduler stops
// or its parent context is done.
type Job func(ctx context.Context) error

// Scheduler runs a job on a cron schedule, never two at once
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	expr    string
	job     Job
	logger  *log.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler parses expr (standard 5-field cron or a descriptor such as
// "@daily" or "@every 1h") and registers job on it. Jobs run under a
// context derived from ctx.
func NewScheduler(ctx context.Context, expr string, job Job, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(ctx)

	cl := cronLogger{logger}
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		expr:   expr,
		job:    job,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	id, err := s.cron.AddFunc(expr, s.run)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	s.entryID = id
	return s, nil
}

// Start starts the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "schedule", s.expr, "next", s.Next().Format(time.RFC3339))
}

// Stop cancels a running job and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// Next returns the next activation time, zero before Start
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// RunNow runs the job immediately in the caller's goroutine
func (s *Scheduler) RunNow() error {
	return s.job(s.ctx)
}

func (s *Scheduler) run() {
	start := time.Now()
	if err := s.job(s.ctx); err != nil {
		s.logger.Error("Scheduled run failed", "err", err)
		return
	}
	s.logger.Info("Scheduled run finished", "elapsed", time.Since(start).Round(time.Millisecond), "next", s.Next().Format(time.RFC3339))
}

// cronLogger adapts the charm logger to cron.Logger
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "err", err)...)
}
