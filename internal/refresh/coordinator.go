// Package refresh runs the fetch, transform and publish cycle that keeps the
// sensor device in sync with the weather provider.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/openweather-sensor/internal/device"
	"github.com/i474232898/openweather-sensor/internal/log"
	"github.com/i474232898/openweather-sensor/internal/weather"
)

// Coordinator drives refresh cycles for a single installation.
type Coordinator struct {
	installationID string
	apiKey         string
	client         weather.Client
	lookup         device.Lookup
	sink           device.Sink

	mu  sync.Mutex
	ref device.Ref
}

// NewCoordinator creates a Coordinator. apiKey is the provider secret.
func NewCoordinator(installationID, apiKey string, client weather.Client, lookup device.Lookup, sink device.Sink) *Coordinator {
	return &Coordinator{
		installationID: installationID,
		apiKey:         apiKey,
		client:         client,
		lookup:         lookup,
		sink:           sink,
	}
}

// Refresh runs a cycle for the installation's device, resolving it first if
// it has not been resolved yet. This is the scheduled path.
func (c *Coordinator) Refresh(ctx context.Context, q weather.LocationQuery) error {
	ref, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	return c.RefreshDevice(ctx, q, ref)
}

// RefreshDevice runs a cycle for a known device. This is the manual path.
// Fetch and transform failures publish nothing.
func (c *Coordinator) RefreshDevice(ctx context.Context, q weather.LocationQuery, ref device.Ref) error {
	log.Infof("refresh: updating weather data for device %s (%s, %s)", ref, q.Location, q.Units)

	snapshot, err := c.client.FetchCurrent(ctx, q, c.apiKey)
	if err != nil {
		return err
	}
	log.Debugf("refresh: %s reports %q observed at %s", c.client.Name(), snapshot.Place, snapshot.Timestamp.Format(time.RFC3339))

	readings, err := weather.ToReadings(snapshot, q.Units)
	if err != nil {
		return err
	}

	events := device.EventsFromReadings(readings)
	if err := c.sink.CreateEvents(ctx, ref, events); err != nil {
		log.Errorf("refresh: publish to device %s failed: %v", ref, err)
		return err
	}

	log.Debugf("refresh: published %d readings to device %s", len(events), ref)
	return nil
}

// Forget drops the cached device reference, e.g. after uninstall.
func (c *Coordinator) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ref = ""
}

// resolve returns the first device of the installation, caching the result.
func (c *Coordinator) resolve(ctx context.Context) (device.Ref, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ref != "" {
		return c.ref, nil
	}

	devices, err := c.lookup.List(ctx, c.installationID)
	if err != nil {
		return "", &weather.LookupError{InstallationID: c.installationID, Err: err}
	}
	if len(devices) == 0 {
		return "", &weather.LookupError{InstallationID: c.installationID}
	}

	c.ref = devices[0].Ref
	return c.ref, nil
}
