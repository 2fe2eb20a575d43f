package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/openweather-sensor/internal/log"
	"github.com/i474232898/openweather-sensor/internal/schedule"
)

// ErrDuplicateTrigger is returned when a trigger with the same name already
// exists for the installation.
var ErrDuplicateTrigger = errors.New("trigger already registered")

// Scheduler is a schedule.Registry backed by an in-process gocron scheduler
// running in UTC. Firings of the same job never overlap.
type Scheduler struct {
	mu        sync.Mutex
	scheduler *gocron.Scheduler
	timeout   time.Duration
}

// New creates a new Scheduler. timeout bounds each fired handler; zero means
// no bound.
func New(timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		timeout:   timeout,
	}
}

func installationTag(installationID string) string {
	return "installation:" + installationID
}

func triggerTag(installationID, name string) string {
	return "trigger:" + installationID + "/" + name
}

// Create registers t as a cron job tagged with the installation and trigger name.
func (s *Scheduler) Create(ctx context.Context, installationID string, t schedule.Trigger) error {
	if t.Descriptor.None() {
		return fmt.Errorf("trigger %s has no recurrence", t.Name)
	}
	if t.Handler == nil {
		return fmt.Errorf("trigger %s has no handler", t.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tag := triggerTag(installationID, t.Name)
	if jobs, err := s.scheduler.FindJobsByTag(tag); err == nil && len(jobs) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTrigger, t.Name)
	}

	_, err := s.scheduler.Cron(t.Descriptor.Cron()).
		Tag(installationTag(installationID), tag).
		Do(s.run, installationID, t.Name, t.Handler)
	if err != nil {
		return fmt.Errorf("register %s: %w", t.Name, err)
	}
	return nil
}

// Delete removes every trigger of the installation.
func (s *Scheduler) Delete(ctx context.Context, installationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.scheduler.RemoveByTag(installationTag(installationID))
	if err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		return err
	}
	return nil
}

// NextRun returns when the named trigger fires next.
func (s *Scheduler) NextRun(installationID, name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.scheduler.FindJobsByTag(triggerTag(installationID, name))
	if err != nil || len(jobs) == 0 {
		return time.Time{}, false
	}
	return jobs[0].NextRun(), true
}

// Start starts the underlying scheduler.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run(installationID, name string, handler schedule.Handler) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log.Infof("scheduler: %s fired for installation %s", name, installationID)
	if err := handler(ctx); err != nil {
		log.Errorf("scheduler: %s failed for installation %s: %v", name, installationID, err)
		return
	}
	log.Debugf("scheduler: %s completed for installation %s", name, installationID)
}
