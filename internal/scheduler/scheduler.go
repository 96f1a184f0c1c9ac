// Package scheduler runs the periodic background tasks: mirror refresh,
// want-list refresh, list-id re-resolution, and the suggestion dedup
// pass. Each task ticks on its own interval and failures only affect
// the failing tick.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/service"
)

// Task is one periodic unit of work. Each task runs in its own
// goroutine loop, so a task never overlaps itself; slow runs simply
// delay the next tick.
type Task struct {
	Name     string
	Interval time.Duration
	// RunAtStart fires the task once immediately when the scheduler
	// starts, before the first tick.
	RunAtStart bool
	Run        func(ctx context.Context) error
}

// Scheduler owns the background task loops.
type Scheduler struct {
	tasks    []Task
	activity *service.ActivityService
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a scheduler with the given tasks.
func New(tasks []Task, activity *service.ActivityService, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:    tasks,
		activity: activity,
		logger:   logger,
	}
}

// Start launches one loop per task. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, task := range s.tasks {
		if task.Interval <= 0 {
			s.logger.Warn("task has no interval, skipping", "task", task.Name)
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
	s.logger.Info("scheduler started", "tasks", len(s.tasks))
}

// Stop cancels every task loop and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	if task.RunAtStart {
		s.runOnce(ctx, task)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, task)
		}
	}
}

// runOnce executes one tick. A failure is logged and recorded, then the
// loop waits for the next tick; one bad task never affects the others.
func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	start := time.Now()
	err := task.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled task failed",
			"task", task.Name,
			"took", time.Since(start),
			"error", err,
		)
		s.activity.Record(ctx, "scheduler", domain.ActivityError, task.Name+" failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	s.logger.Debug("scheduled task finished", "task", task.Name, "took", time.Since(start))
}
