package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"wb-tariffs/internal/workers"
)

type Config struct {
	// Location the schedules are evaluated in. Nil means time.Local.
	Location *time.Location
	// RunTimeout bounds a single run. Zero means no limit.
	RunTimeout time.Duration
}

// Service runs workers on cron schedules. A run that is still in progress
// when its next tick fires makes that tick a no-op, and panics are recovered.
type Service struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
	manual  sync.WaitGroup
}

func NewService(cfg Config, logger *slog.Logger) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: cfg.RunTimeout,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Add schedules w with a standard five-field cron expression.
func (s *Service) Add(spec string, w workers.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[w.Name()]; ok {
		return fmt.Errorf("worker %s already scheduled", w.Name())
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(w) })
	if err != nil {
		return fmt.Errorf("failed to add %s worker: %w", w.Name(), err)
	}
	s.entries[w.Name()] = id

	s.logger.Info("Worker scheduled", "name", w.Name(), "schedule", spec)
	return nil
}

// Trigger starts an out-of-schedule run of a scheduled worker. It goes
// through the same wrappers as scheduled runs.
func (s *Service) Trigger(name string) error {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("worker %s is not scheduled", name)
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return fmt.Errorf("worker %s has no cron entry", name)
	}

	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		entry.WrappedJob.Run()
	}()
	return nil
}

// Start starts the cron workers
func (s *Service) Start() {
	s.logger.Info("Starting worker service")
	s.cron.Start()
	s.logger.Info("Worker service started successfully")
}

// Stop stops scheduling and waits for running workers. When ctx expires
// first, running workers are cancelled and awaited.
func (s *Service) Stop(ctx context.Context) {
	s.logger.Info("Stopping worker service")

	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.manual.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Shutdown deadline reached, cancelling running workers")
		s.cancel()
		<-done
	}
	s.cancel()

	s.logger.Info("Worker service stopped")
}

func (s *Service) run(w workers.Worker) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Info("Running worker", "name", w.Name())
	if err := w.Run(ctx); err != nil {
		s.logger.Error("Worker failed", "name", w.Name(), "error", err)
	}
}

// cronLogger routes cron's own messages into slog. Routine messages go to
// debug level.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
