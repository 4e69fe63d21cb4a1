package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a periodic unit of work. The context is cancelled when the scheduler stops.
type Task func(ctx context.Context) error

// Scheduler runs named tasks on cron expressions. A run still in progress when the
// next tick fires causes that tick to be skipped.
type Scheduler struct {
	parser cron.Parser
	loc    *time.Location
	logger *zap.Logger

	mu      sync.Mutex
	c       *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

// New creates a scheduler evaluating expressions in timezone. Unknown zones fall back to UTC.
func New(timezone string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			logger.Warn("unknown timezone, using UTC", zap.String("timezone", tz), zap.Error(err))
		}
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Scheduler{
		parser:  parser,
		loc:     loc,
		logger:  logger,
		entries: map[string]cron.EntryID{},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.c = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return s
}

// Location returns the zone schedules are evaluated in.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Add registers task under name. Registering the same name twice is an error.
func (s *Scheduler) Add(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("task %q already scheduled", name)
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("task %q: invalid schedule %q: %w", name, spec, err)
	}

	id, err := s.c.AddFunc(spec, func() {
		s.run(name, task)
	})
	if err != nil {
		return fmt.Errorf("task %q: %w", name, err)
	}
	s.entries[name] = id
	return nil
}

// Next reports the next activation of a registered task.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.c.Entry(id).Next, true
}

// RunNow executes a registered task synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string, task Task) {
	s.run(name, task)
}

func (s *Scheduler) run(name string, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", zap.String("task", name), zap.Any("panic", r))
		}
	}()
	if err := task(s.ctx); err != nil {
		s.logger.Error("scheduled task failed", zap.String("task", name), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Debug("scheduled task finished", zap.String("task", name), zap.Duration("duration", time.Since(start)))
}

// Start begins firing tasks.
func (s *Scheduler) Start() {
	s.c.Start()
	s.logger.Info("scheduler started", zap.String("tz", s.loc.String()), zap.Int("tasks", len(s.entries)))
}

// Stop prevents new runs, cancels the task context and waits for running tasks until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop().Done()
	s.cancel()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}
