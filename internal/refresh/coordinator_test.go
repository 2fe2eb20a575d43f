package refresh

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/i474232898/openweather-sensor/internal/device"
	"github.com/i474232898/openweather-sensor/internal/weather"
	"github.com/i474232898/openweather-sensor/internal/weather/providers"
)

type fakeClient struct {
	snapshot weather.WeatherSnapshot
	err      error
	calls    int
	gotKey   string
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) FetchCurrent(ctx context.Context, q weather.LocationQuery, apiKey string) (weather.WeatherSnapshot, error) {
	f.calls++
	f.gotKey = apiKey
	return f.snapshot, f.err
}

type fakeLookup struct {
	devices []device.Device
	err     error
	calls   int
}

func (f *fakeLookup) List(ctx context.Context, installationID string) ([]device.Device, error) {
	f.calls++
	return f.devices, f.err
}

type publish struct {
	ref    device.Ref
	events []device.Event
}

type fakeSink struct {
	published []publish
	err       error
}

func (f *fakeSink) CreateEvents(ctx context.Context, ref device.Ref, events []device.Event) error {
	f.published = append(f.published, publish{ref: ref, events: events})
	return f.err
}

func ptr(v float64) *float64 { return &v }

var metricQuery = weather.LocationQuery{Location: "Lyon,FR", Units: weather.UnitsMetric}

func TestRefreshPublishesOneBatch(t *testing.T) {
	client := &fakeClient{snapshot: weather.WeatherSnapshot{Temperature: ptr(21.5), Humidity: ptr(60)}}
	lookup := &fakeLookup{devices: []device.Device{{Ref: "dev-1"}, {Ref: "dev-2"}}}
	sink := &fakeSink{}
	c := NewCoordinator("inst-1", "secret", client, lookup, sink)

	if err := c.Refresh(context.Background(), metricQuery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.published) != 1 {
		t.Fatalf("expected one batched publish, got %d", len(sink.published))
	}
	got := sink.published[0]
	if got.ref != "dev-1" {
		t.Errorf("expected first device, got %s", got.ref)
	}
	want := []device.Event{
		{Component: "main", Capability: "temperatureMeasurement", Attribute: "temperature", Value: 21.5, Unit: "C"},
		{Component: "main", Capability: "relativeHumidityMeasurement", Attribute: "humidity", Value: 60, Unit: "%"},
	}
	if !reflect.DeepEqual(got.events, want) {
		t.Errorf("events = %+v, want %+v", got.events, want)
	}
	if client.gotKey != "secret" {
		t.Errorf("api key not passed to client")
	}
}

func TestRefreshCachesDeviceRef(t *testing.T) {
	client := &fakeClient{snapshot: weather.WeatherSnapshot{Temperature: ptr(1), Humidity: ptr(2)}}
	lookup := &fakeLookup{devices: []device.Device{{Ref: "dev-1"}}}
	c := NewCoordinator("inst-1", "k", client, lookup, &fakeSink{})

	for i := 0; i < 3; i++ {
		if err := c.Refresh(context.Background(), metricQuery); err != nil {
			t.Fatal(err)
		}
	}
	if lookup.calls != 1 {
		t.Errorf("expected a single lookup, got %d", lookup.calls)
	}

	c.Forget()
	_ = c.Refresh(context.Background(), metricQuery)
	if lookup.calls != 2 {
		t.Errorf("expected a new lookup after Forget, got %d", lookup.calls)
	}
}

func TestRefreshDeviceSkipsLookup(t *testing.T) {
	client := &fakeClient{snapshot: weather.WeatherSnapshot{Temperature: ptr(70), Humidity: ptr(30)}}
	lookup := &fakeLookup{}
	sink := &fakeSink{}
	c := NewCoordinator("inst-1", "k", client, lookup, sink)

	q := weather.LocationQuery{Location: "Boston", Units: weather.UnitsImperial}
	if err := c.RefreshDevice(context.Background(), q, "dev-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lookup.calls != 0 {
		t.Error("manual refresh must not look up the device")
	}
	if len(sink.published) != 1 || sink.published[0].ref != "dev-9" {
		t.Fatalf("unexpected publishes %+v", sink.published)
	}
	if sink.published[0].events[0].Unit != "F" {
		t.Errorf("expected Fahrenheit, got %q", sink.published[0].events[0].Unit)
	}
}

func TestRefreshLookupErrors(t *testing.T) {
	tests := []struct {
		name   string
		lookup *fakeLookup
	}{
		{name: "no devices", lookup: &fakeLookup{}},
		{name: "lookup failure", lookup: &fakeLookup{err: errors.New("unavailable")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			sink := &fakeSink{}
			c := NewCoordinator("inst-1", "k", client, tt.lookup, sink)

			err := c.Refresh(context.Background(), metricQuery)

			var lerr *weather.LookupError
			if !errors.As(err, &lerr) {
				t.Fatalf("expected LookupError, got %v", err)
			}
			if client.calls != 0 || len(sink.published) != 0 {
				t.Error("nothing must be fetched or published without a device")
			}
		})
	}
}

func TestRefreshAbortsOnIncompleteData(t *testing.T) {
	client := &fakeClient{snapshot: weather.WeatherSnapshot{Temperature: ptr(5)}}
	sink := &fakeSink{}
	c := NewCoordinator("inst-1", "k", client, &fakeLookup{}, sink)

	err := c.RefreshDevice(context.Background(), metricQuery, "dev-1")

	var incomplete *weather.IncompleteDataError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteDataError, got %v", err)
	}
	if len(sink.published) != 0 {
		t.Errorf("expected zero publish calls, got %d", len(sink.published))
	}
}

func TestRefreshPropagatesSinkError(t *testing.T) {
	cause := errors.New("sink down")
	client := &fakeClient{snapshot: weather.WeatherSnapshot{Temperature: ptr(1), Humidity: ptr(2)}}
	sink := &fakeSink{err: cause}
	c := NewCoordinator("inst-1", "k", client, &fakeLookup{}, sink)

	err := c.RefreshDevice(context.Background(), metricQuery, "dev-1")
	if !errors.Is(err, cause) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(sink.published) != 1 {
		t.Errorf("publish must not be retried, got %d calls", len(sink.published))
	}
}

func TestRefreshProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := providers.NewOpenWeatherClient(srv.Client(), srv.URL)
	sink := &fakeSink{}
	c := NewCoordinator("inst-1", "k", client, &fakeLookup{devices: []device.Device{{Ref: "dev-1"}}}, sink)

	err := c.Refresh(context.Background(), metricQuery)

	var perr *weather.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if len(sink.published) != 0 {
		t.Errorf("expected zero publish calls, got %d", len(sink.published))
	}
}

func TestRefreshWithOpenWeatherSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dt":1700000000,"name":"Lyon","main":{"temp":21.5,"humidity":60}}`))
	}))
	defer srv.Close()

	client := providers.NewOpenWeatherClient(srv.Client(), srv.URL)
	sink := &fakeSink{}
	c := NewCoordinator("inst-1", "k", client, &fakeLookup{devices: []device.Device{{Ref: "dev-1"}}}, sink)

	if err := c.Refresh(context.Background(), metricQuery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Name() != "openweathermap" {
		t.Errorf("unexpected provider name %q", client.Name())
	}
	if len(sink.published) != 1 || len(sink.published[0].events) != 2 {
		t.Fatalf("expected one batch of 2 events, got %+v", sink.published)
	}
	if sink.published[0].events[0].Value != 21.5 {
		t.Errorf("unexpected temperature event %+v", sink.published[0].events[0])
	}
}
