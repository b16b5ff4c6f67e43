package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fadedpez/clubwheel/internal/logging"
)

// Task represents a scheduled task
type Task struct {
	Name     string
	Interval time.Duration
	Fn       func(context.Context) error
}

// Scheduler runs maintenance tasks on fixed intervals
type Scheduler struct {
	tasks   []*Task
	running bool
	mutex   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *logging.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default
	}
	return &Scheduler{
		tasks: make([]*Task, 0),
		log:   logger.With("scheduler"),
	}
}

// AddTask adds a task to the scheduler. Tasks added after Start are ignored until the next Start.
func (s *Scheduler) AddTask(name string, interval time.Duration, fn func(context.Context) error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Interval: interval,
		Fn:       fn,
	})
}

// Tasks returns the names of the registered tasks
func (s *Scheduler) Tasks() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	names := make([]string, len(s.tasks))
	for i, task := range s.tasks {
		names[i] = task.Name
	}
	return names
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(ctx, task)
	}

	s.log.Info("Scheduler started with %d tasks", len(s.tasks))
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mutex.Unlock()

	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

// runTask runs a task at the specified interval
func (s *Scheduler) runTask(ctx context.Context, task *Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	// Run the task immediately on startup
	s.log.Debug("Running task %s immediately on startup", task.Name)
	s.run(ctx, task)

	for {
		select {
		case <-ticker.C:
			s.log.Debug("Running scheduled task: %s", task.Name)
			s.run(ctx, task)
		case <-ctx.Done():
			s.log.Debug("Task %s stopped", task.Name)
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, task *Task) {
	if err := task.Fn(ctx); err != nil {
		s.log.Error("Error running task %s: %v", task.Name, err)
	}
}
