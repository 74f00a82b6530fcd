package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"norelock.dev/fetchx/backend/internal/utils"
)

// MaintenanceTask represents a maintenance task to be executed.
type MaintenanceTask struct {
	Name     string
	Interval time.Duration
	LastRun  time.Time
	Fn       func(context.Context) error
}

// MaintenanceConfig contains configuration for the maintenance service.
type MaintenanceConfig struct {
	// Whether to enable automatic maintenance tasks
	Enabled bool
	// How often due tasks are looked for
	TickInterval time.Duration
	// Maximum number of concurrent maintenance tasks
	MaxConcurrentTasks int
	// Timeout for individual maintenance tasks
	TaskTimeout time.Duration
}

// DefaultMaintenanceConfig returns the default maintenance configuration.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Enabled:            true,
		TickInterval:       time.Minute,
		MaxConcurrentTasks: 3,
		TaskTimeout:        time.Minute,
	}
}

// MaintenanceService runs registered housekeeping tasks on their intervals.
type MaintenanceService struct {
	config MaintenanceConfig
	logger *utils.Logger
	tasks  []*MaintenanceTask
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(config MaintenanceConfig, logger *utils.Logger) *MaintenanceService {
	return &MaintenanceService{
		config: config,
		logger: logger.Named("maintenance_service"),
		stopCh: make(chan struct{}),
	}
}

// RegisterTask registers a new maintenance task. It first runs on the next tick.
func (s *MaintenanceService) RegisterTask(name string, interval time.Duration, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &MaintenanceTask{
		Name:     name,
		Interval: interval,
		LastRun:  time.Now().Add(-interval),
		Fn:       fn,
	})
	s.logger.Info("Registered maintenance task", "name", name, "interval", interval.String())
}

// Start starts the maintenance loop in the background.
func (s *MaintenanceService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info("Maintenance service is disabled")
		return
	}

	tick := s.config.TickInterval
	if tick <= 0 {
		tick = time.Minute
	}

	s.logger.Info("Starting maintenance service")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunDueTasks(ctx)
			case <-s.stopCh:
				s.logger.Info("Stopping maintenance service")
				return
			case <-ctx.Done():
				s.logger.Info("Context cancelled, stopping maintenance service")
				return
			}
		}
	}()
}

// Stop stops the maintenance loop and waits for it to exit.
func (s *MaintenanceService) Stop() {
	s.mu.Lock()
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// RunDueTasks runs every task whose interval has elapsed, at most
// MaxConcurrentTasks at a time. It returns the number of failed tasks.
func (s *MaintenanceService) RunDueTasks(ctx context.Context) int {
	// Get due tasks with minimal lock time
	s.mu.Lock()
	var due []*MaintenanceTask
	now := time.Now()
	for _, task := range s.tasks {
		if now.Sub(task.LastRun) >= task.Interval {
			due = append(due, task)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return 0
	}

	limit := s.config.MaxConcurrentTasks
	if limit <= 0 {
		limit = 3
	}

	var (
		g      errgroup.Group
		failMu sync.Mutex
		failed int
	)
	g.SetLimit(limit)

	for _, task := range due {
		g.Go(func() error {
			if err := s.runTask(ctx, task); err != nil {
				s.logger.Error("Task failed", err, "name", task.Name)
				failMu.Lock()
				failed++
				failMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug("Maintenance tasks completed", "successful", len(due)-failed, "failed", failed)
	return failed
}

func (s *MaintenanceService) runTask(ctx context.Context, task *MaintenanceTask) (err error) {
	timeout := s.config.TaskTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task %s: %v", task.Name, r)
		}
	}()

	if err := task.Fn(taskCtx); err != nil {
		return err
	}

	s.mu.Lock()
	task.LastRun = time.Now()
	s.mu.Unlock()
	return nil
}
