package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/openweather-sensor/internal/device"
)

var (
	// ErrNotFound is returned when a device does not exist.
	ErrNotFound = errors.New("device not found")
)

// record holds a device, its latest attribute values and a time-ordered
// history of received events.
type record struct {
	device  device.Device
	state   map[string]device.AttributeState
	history []device.RecordedEvent
}

// MemoryStore is a concurrency-safe in-memory device registry and state sink.
type MemoryStore struct {
	mu sync.RWMutex

	// key: device id
	devices map[device.Ref]*record

	// retention configuration
	maxHistory int           // max number of events per device
	maxAge     time.Duration // optional max age for events

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		devices:    make(map[device.Ref]*record),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create provisions a new device for the installation.
func (s *MemoryStore) Create(ctx context.Context, installationID, label string) (device.Device, error) {
	d := device.Device{
		Ref:            device.Ref(uuid.NewString()),
		InstallationID: installationID,
		Label:          label,
		CreatedAt:      s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices[d.Ref] = &record{
		device: d,
		state:  make(map[string]device.AttributeState),
	}
	return d, nil
}

// List returns the installation's devices, oldest first.
func (s *MemoryStore) List(ctx context.Context, installationID string) ([]device.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []device.Device
	for _, r := range s.devices {
		if r.device.InstallationID == installationID {
			result = append(result, r.device)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Ref < result[j].Ref
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteInstallation removes every device of the installation.
func (s *MemoryStore) DeleteInstallation(ctx context.Context, installationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ref, r := range s.devices {
		if r.device.InstallationID == installationID {
			delete(s.devices, ref)
		}
	}
	return nil
}

// CreateEvents applies a batch of events to the device. The whole batch is
// applied under one lock so readers observe all of it or none of it.
func (s *MemoryStore) CreateEvents(ctx context.Context, ref device.Ref, events []device.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.devices[ref]
	if !ok {
		return ErrNotFound
	}

	ts := s.now()
	for _, e := range events {
		r.state[e.Key()] = device.AttributeState{
			Component:  e.Component,
			Capability: e.Capability,
			Attribute:  e.Attribute,
			Value:      e.Value,
			Unit:       e.Unit,
			Timestamp:  ts,
		}
		r.history = append(r.history, device.RecordedEvent{Event: e, Timestamp: ts})
	}

	s.enforceRetention(r)
	return nil
}

func (s *MemoryStore) enforceRetention(r *record) {
	// Enforce retention by count.
	if s.maxHistory > 0 && len(r.history) > s.maxHistory {
		over := len(r.history) - s.maxHistory
		r.history = r.history[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(r.history); i++ {
			if !r.history[i].Timestamp.Before(cutoff) {
				break
			}
		}
		r.history = r.history[i:]
	}
}

// Get returns a device by reference.
func (s *MemoryStore) Get(ctx context.Context, ref device.Ref) (device.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.devices[ref]
	if !ok {
		return device.Device{}, ErrNotFound
	}
	return r.device, nil
}

// State returns the latest value of every attribute the device has received,
// ordered by component, capability and attribute.
func (s *MemoryStore) State(ctx context.Context, ref device.Ref) ([]device.AttributeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.devices[ref]
	if !ok {
		return nil, ErrNotFound
	}

	result := make([]device.AttributeState, 0, len(r.state))
	for _, st := range r.state {
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Component != b.Component {
			return a.Component < b.Component
		}
		if a.Capability != b.Capability {
			return a.Capability < b.Capability
		}
		return a.Attribute < b.Attribute
	})
	return result, nil
}

// History returns the device's events between from and to (inclusive).
func (s *MemoryStore) History(ctx context.Context, ref device.Ref, from, to time.Time) ([]device.RecordedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.devices[ref]
	if !ok {
		return nil, ErrNotFound
	}

	var result []device.RecordedEvent
	for _, e := range r.history {
		if !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			result = append(result, e)
		}
	}
	return result, nil
}
