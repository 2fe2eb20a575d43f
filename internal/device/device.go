// Package device models the virtual sensor device and the events published to it.
package device

import (
	"context"
	"time"

	"github.com/i474232898/openweather-sensor/internal/weather"
)

const (
	ComponentMain = "main"

	CapabilityTemperature = "temperatureMeasurement"
	CapabilityHumidity    = "relativeHumidityMeasurement"
)

// Ref is an opaque device identifier.
type Ref string

// Device is a provisioned virtual device owned by an installation.
type Device struct {
	Ref            Ref       `json:"deviceId"`
	InstallationID string    `json:"installationId"`
	Label          string    `json:"label"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Event is a single attribute update.
type Event struct {
	Component  string  `json:"component"`
	Capability string  `json:"capability"`
	Attribute  string  `json:"attribute"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
}

// Key identifies the attribute an event updates.
func (e Event) Key() string {
	return e.Component + "/" + e.Capability + "/" + e.Attribute
}

// RecordedEvent is an event as accepted by the sink.
type RecordedEvent struct {
	Event
	Timestamp time.Time `json:"timestamp"`
}

// AttributeState is the latest value of one attribute.
type AttributeState struct {
	Component  string    `json:"component"`
	Capability string    `json:"capability"`
	Attribute  string    `json:"attribute"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	Timestamp  time.Time `json:"timestamp"`
}

// Lookup lists the devices of an installation.
type Lookup interface {
	List(ctx context.Context, installationID string) ([]Device, error)
}

// Sink accepts a batch of events for one device in a single call.
type Sink interface {
	CreateEvents(ctx context.Context, ref Ref, events []Event) error
}

// EventsFromReadings maps readings to device events on the main component,
// preserving order.
func EventsFromReadings(readings weather.ReadingSet) []Event {
	events := make([]Event, 0, len(readings))
	for _, r := range readings {
		switch r.Kind {
		case weather.KindTemperature:
			events = append(events, Event{
				Component:  ComponentMain,
				Capability: CapabilityTemperature,
				Attribute:  "temperature",
				Value:      r.Value,
				Unit:       r.Unit,
			})
		case weather.KindHumidity:
			events = append(events, Event{
				Component:  ComponentMain,
				Capability: CapabilityHumidity,
				Attribute:  "humidity",
				Value:      r.Value,
				Unit:       r.Unit,
			})
		}
	}
	return events
}
