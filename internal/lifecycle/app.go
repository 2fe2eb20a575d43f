// Package lifecycle hosts a single installation of the weather sensor: it
// provisions the device, keeps the refresh schedule in line with the settings
// and dispatches manual commands.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/openweather-sensor/internal/config"
	"github.com/i474232898/openweather-sensor/internal/device"
	"github.com/i474232898/openweather-sensor/internal/log"
	"github.com/i474232898/openweather-sensor/internal/refresh"
	"github.com/i474232898/openweather-sensor/internal/schedule"
)

// DeviceLabel is the label given to the provisioned device.
const DeviceLabel = "OpenWeather sensor"

var (
	ErrAlreadyInstalled   = errors.New("installation already exists")
	ErrNotInstalled       = errors.New("installation does not exist")
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// DeviceStore provisions devices and receives their events.
type DeviceStore interface {
	device.Lookup
	device.Sink
	Create(ctx context.Context, installationID, label string) (device.Device, error)
	DeleteInstallation(ctx context.Context, installationID string) error
}

// Command is a device command addressed to a component capability.
type Command struct {
	Component  string `json:"component"`
	Capability string `json:"capability"`
	Command    string `json:"command"`
}

// RefreshCommand is the momentary push that forces a refresh.
var RefreshCommand = Command{Component: device.ComponentMain, Capability: "momentary", Command: "push"}

// App is one installation.
type App struct {
	installationID string
	store          DeviceStore
	coordinator    *refresh.Coordinator
	schedules      *schedule.Manager
	now            func() time.Time

	mu        sync.RWMutex
	settings  config.Settings
	installed bool
}

// New creates an App whose periodic trigger is registered with registry.
func New(installationID string, store DeviceStore, coordinator *refresh.Coordinator, registry schedule.Registry) *App {
	a := &App{
		installationID: installationID,
		store:          store,
		coordinator:    coordinator,
		now:            time.Now,
	}
	a.schedules = schedule.NewManager(registry, installationID, a.ScheduledRefresh)
	return a
}

func (a *App) InstallationID() string { return a.installationID }

// Settings returns the active settings.
func (a *App) Settings() (config.Settings, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings, a.installed
}

// Schedule returns the live schedule descriptor, if any.
func (a *App) Schedule() (schedule.Descriptor, bool) {
	return a.schedules.Current()
}

// Install provisions the device, registers the periodic refresh and runs an
// initial refresh on the new device. A failed initial refresh is returned but
// leaves the installation in place.
func (a *App) Install(ctx context.Context, s config.Settings) (device.Device, error) {
	class, err := parse(s)
	if err != nil {
		return device.Device{}, err
	}

	a.mu.Lock()
	if a.installed {
		a.mu.Unlock()
		return device.Device{}, ErrAlreadyInstalled
	}

	log.Infof("lifecycle: installing the virtual device for installation %s", a.installationID)
	d, err := a.store.Create(ctx, a.installationID, DeviceLabel)
	if err != nil {
		a.mu.Unlock()
		return device.Device{}, fmt.Errorf("create device: %w", err)
	}

	if _, err := a.schedules.Install(ctx, class, a.now()); err != nil {
		if derr := a.store.DeleteInstallation(ctx, a.installationID); derr != nil {
			log.Errorf("lifecycle: rollback of device %s failed: %v", d.Ref, derr)
		}
		a.mu.Unlock()
		return device.Device{}, err
	}

	a.settings = s
	a.installed = true
	a.mu.Unlock()

	return d, a.coordinator.RefreshDevice(ctx, s.Query(), d.Ref)
}

// Update applies new settings: the trigger is replaced and a refresh runs.
func (a *App) Update(ctx context.Context, s config.Settings) error {
	class, err := parse(s)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if !a.installed {
		a.mu.Unlock()
		return ErrNotInstalled
	}

	log.Infof("lifecycle: updating schedules for installation %s", a.installationID)
	_, err = a.schedules.Reinstall(ctx, class, a.now())
	// A failed create runs after the old trigger was cancelled; the new
	// settings apply. A failed cancel leaves the old trigger and settings live.
	var regErr *schedule.ScheduleRegistrationError
	if err == nil || (errors.As(err, &regErr) && regErr.Op == "create") {
		a.settings = s
	}
	a.mu.Unlock()
	if err != nil {
		return err
	}

	return a.coordinator.Refresh(ctx, s.Query())
}

// Uninstall cancels the trigger and removes the installation's devices.
func (a *App) Uninstall(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.installed {
		return ErrNotInstalled
	}

	if err := a.schedules.Teardown(ctx); err != nil {
		return err
	}
	if err := a.store.DeleteInstallation(ctx, a.installationID); err != nil {
		return fmt.Errorf("delete devices: %w", err)
	}
	a.coordinator.Forget()
	a.settings = config.Settings{}
	a.installed = false
	log.Infof("lifecycle: uninstalled installation %s", a.installationID)
	return nil
}

// ScheduledRefresh is the handler of the periodic trigger.
func (a *App) ScheduledRefresh(ctx context.Context) error {
	s, ok := a.Settings()
	if !ok {
		return ErrNotInstalled
	}

	log.Infof("lifecycle: periodic weather data refresh")
	return a.coordinator.Refresh(ctx, s.Query())
}

// HandleCommand dispatches a device command. Only RefreshCommand is supported.
func (a *App) HandleCommand(ctx context.Context, ref device.Ref, cmd Command) error {
	s, ok := a.Settings()
	if !ok {
		return ErrNotInstalled
	}
	if cmd != RefreshCommand {
		return fmt.Errorf("%w: %s/%s/%s", ErrUnsupportedCommand, cmd.Component, cmd.Capability, cmd.Command)
	}

	log.Infof("lifecycle: forced weather data refresh for device %s", ref)
	return a.coordinator.RefreshDevice(ctx, s.Query(), ref)
}

func parse(s config.Settings) (schedule.IntervalClass, error) {
	if err := s.Validate(); err != nil {
		return schedule.IntervalClass{}, err
	}
	return s.Interval()
}
