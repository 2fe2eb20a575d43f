package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/openweather-sensor/internal/log"
)

// TriggerName is the fixed name of the recurring refresh trigger.
const TriggerName = "periodicRefreshEvent"

// Handler runs when a trigger fires.
type Handler func(ctx context.Context) error

// Trigger is a named recurring registration.
type Trigger struct {
	Name       string
	Descriptor Descriptor
	Handler    Handler
}

// Registry is the external trigger registry. Delete cancels every trigger
// owned by the installation and is a no-op when there is none.
type Registry interface {
	Create(ctx context.Context, installationID string, t Trigger) error
	Delete(ctx context.Context, installationID string) error
}

// ScheduleRegistrationError wraps a registry failure.
type ScheduleRegistrationError struct {
	Op  string // "create" or "delete"
	Err error
}

func (e *ScheduleRegistrationError) Error() string {
	return fmt.Sprintf("schedule %s: %v", e.Op, e.Err)
}

func (e *ScheduleRegistrationError) Unwrap() error { return e.Err }

// Manager owns the recurring trigger of one installation. At most one trigger
// named TriggerName is live at any time.
type Manager struct {
	mu             sync.Mutex
	registry       Registry
	installationID string
	handler        Handler

	current    Descriptor
	registered bool
}

// NewManager creates a Manager registering handler under TriggerName.
func NewManager(registry Registry, installationID string, handler Handler) *Manager {
	return &Manager{
		registry:       registry,
		installationID: installationID,
		handler:        handler,
	}
}

// Install registers the trigger for a fresh installation.
func (m *Manager) Install(ctx context.Context, class IntervalClass, now time.Time) (Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.register(ctx, class, now)
}

// Reinstall cancels the existing trigger, then registers one for class. If
// registration fails the installation is left without a trigger.
func (m *Manager) Reinstall(ctx context.Context, class IntervalClass, now time.Time) (Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.cancel(ctx); err != nil {
		return Descriptor{}, err
	}
	return m.register(ctx, class, now)
}

// Teardown cancels the installation's trigger.
func (m *Manager) Teardown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cancel(ctx)
}

// Current returns the descriptor of the live trigger, if any.
func (m *Manager) Current() (Descriptor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current, m.registered
}

func (m *Manager) register(ctx context.Context, class IntervalClass, now time.Time) (Descriptor, error) {
	d := Derive(class, now)
	if d.None() {
		log.Infof("schedule: interval %s; no periodic refresh for installation %s", class, m.installationID)
		return d, nil
	}

	err := m.registry.Create(ctx, m.installationID, Trigger{
		Name:       TriggerName,
		Descriptor: d,
		Handler:    m.handler,
	})
	if err != nil {
		return Descriptor{}, &ScheduleRegistrationError{Op: "create", Err: err}
	}

	m.current = d
	m.registered = true
	log.Infof("schedule: registered %s for installation %s (%s %s)", TriggerName, m.installationID, d.Cron(), d.Timezone)
	return d, nil
}

func (m *Manager) cancel(ctx context.Context) error {
	if err := m.registry.Delete(ctx, m.installationID); err != nil {
		return &ScheduleRegistrationError{Op: "delete", Err: err}
	}
	m.current = Descriptor{}
	m.registered = false
	return nil
}
