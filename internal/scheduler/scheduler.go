// Package scheduler runs the hub's periodic maintenance tasks. Tasks
// run sequentially on one goroutine so database maintenance never
// contends with itself; a long task delays later ones rather than
// overlapping them.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one scheduled unit of work.
type Task struct {
	// Name identifies the task in logs.
	Name string
	// Every is the run interval.
	Every time.Duration
	// AtSecond, when >= 0, aligns runs to that second of the minute
	// (e.g. 30 runs at :30). Only meaningful for minute-multiple
	// intervals.
	AtSecond int
	// Run does the work. Errors are logged, never fatal.
	Run func(ctx context.Context) error
}

// Scheduler owns the task list and the single runner goroutine.
type Scheduler struct {
	logger zerolog.Logger

	mu    sync.Mutex
	tasks []*scheduledTask

	cancel context.CancelFunc
	done   chan struct{}

	// now is swapped in tests.
	now func() time.Time
}

type scheduledTask struct {
	Task
	nextRun time.Time
}

// New returns an empty scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Add registers a task. Must be called before Start.
func (s *Scheduler) Add(t Task) {
	if t.AtSecond < 0 {
		t.AtSecond = -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &scheduledTask{Task: t})
}

// Start computes each task's first run and launches the runner.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	now := s.now()
	s.mu.Lock()
	for _, t := range s.tasks {
		t.nextRun = nextAligned(now, t.Every, t.AtSecond)
	}
	s.mu.Unlock()

	go s.run(ctx)
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("Scheduler started")
}

// Stop cancels the runner and waits for the in-flight task to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue executes every task whose next run has arrived, in
// registration order, then reschedules each from the current time.
func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	due := make([]*scheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !now.Before(t.nextRun) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		s.execute(ctx, t)
		s.mu.Lock()
		t.nextRun = nextAligned(s.now(), t.Every, t.AtSecond)
		s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
	}
}

// execute runs one task, recovering panics so a broken task cannot
// take down the maintenance loop.
func (s *Scheduler) execute(ctx context.Context, t *scheduledTask) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("task", t.Name).
				Str("panic", fmt.Sprint(r)).
				Msg("Scheduled task panicked")
		}
	}()

	start := s.now()
	if err := t.Run(ctx); err != nil {
		s.logger.Error().Err(err).Str("task", t.Name).Msg("Scheduled task failed")
		return
	}
	s.logger.Debug().
		Str("task", t.Name).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Scheduled task finished")
}

// nextAligned computes the first run at or after now. Unaligned tasks
// simply run every interval. Aligned tasks run at the given second of
// the minute, stepping whole intervals from the aligned anchor.
func nextAligned(now time.Time, every time.Duration, atSecond int) time.Time {
	if atSecond < 0 {
		return now.Add(every)
	}
	// Anchor at the wanted second of the current minute, then step
	// forward until strictly after now.
	anchor := now.Truncate(time.Minute).Add(time.Duration(atSecond) * time.Second)
	for !anchor.After(now) {
		anchor = anchor.Add(every)
	}
	return anchor
}
