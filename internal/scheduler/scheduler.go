package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Coordinator/internal/sysmode"
)

// Task — периодическая задача.
type Task func(ctx context.Context) error

type entry struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	fn           Task
}

// Config — конфигурация Scheduler.
type Config struct {
	// Mode — переключатель режима; в SAFEMODE задачи пропускаются.
	Mode   *sysmode.Switch
	Logger *slog.Logger
}

// Scheduler запускает задачи с фиксированной задержкой между окончанием
// одного запуска и началом следующего.
type Scheduler struct {
	mode   *sysmode.Switch
	logger *slog.Logger

	mu      sync.Mutex
	tasks   []entry
	started bool

	// Lifecycle
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		mode:   cfg.Mode,
		logger: logger.With("component", "scheduler"),
	}
}

// Every регистрирует задачу: первый запуск через initialDelay,
// затем через interval после завершения предыдущего.
func (s *Scheduler) Every(name string, initialDelay, interval time.Duration, fn Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.tasks = append(s.tasks, entry{name: name, initialDelay: initialDelay, interval: interval, fn: fn})
	return nil
}

// Start запускает зарегистрированные задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.run(ctx, t)
	}

	s.logger.Info("scheduler started", "tasks", len(s.tasks))
	return nil
}

// Stop останавливает задачи и ждёт завершения текущих запусков.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancelFunc
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, t entry) {
	defer s.wg.Done()

	timer := time.NewTimer(t.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.fire(ctx, t)
		timer.Reset(t.interval)
	}
}

// fire выполняет один запуск; паника задачи не останавливает расписание.
func (s *Scheduler) fire(ctx context.Context, t entry) {
	logger := s.logger.With("task", t.name)

	if s.mode != nil && s.mode.IsSafeMode() {
		logger.Debug("safe mode, task skipped")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "panic", r)
		}
	}()

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		logger.Error("task failed", "error", err)
		return
	}
	logger.Debug("task completed", "duration_ms", time.Since(start).Milliseconds())
}
