package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/openweather-sensor/internal/weather"
)

// DefaultOpenWeatherBaseURL is the OpenWeatherMap 2.5 API root.
const DefaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

var errMissingMain = errors.New(`response has no "main" section`)

// OpenWeatherClient implements weather.Client for OpenWeatherMap current conditions.
type OpenWeatherClient struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherClient(client *http.Client, baseURL string) *OpenWeatherClient {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherBaseURL
	}
	return &OpenWeatherClient{
		name:    "openweathermap",
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		circuit: newCircuitBreaker("openweather"),
	}
}

func (c *OpenWeatherClient) Name() string {
	return c.name
}

type openWeatherPayload struct {
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
}

// FetchCurrent fetches current conditions for q. Every failure is returned as
// *weather.ProviderError.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, q weather.LocationQuery, apiKey string) (weather.WeatherSnapshot, error) {
	if apiKey == "" {
		return weather.WeatherSnapshot{}, c.fail(0, errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("appid", apiKey)
	values.Set("units", string(q.Units))
	if lat, lon, ok := q.Coordinates(); ok {
		values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	} else {
		values.Set("q", q.Location)
	}

	u := fmt.Sprintf("%s/weather?%s", c.baseURL, values.Encode())
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return weather.WeatherSnapshot{}, c.fail(0, err)
	}

	resp, err := doRequest(ctx, c.client, c.circuit, req)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return weather.WeatherSnapshot{}, c.fail(se.code, err)
		}
		return weather.WeatherSnapshot{}, c.fail(0, err)
	}
	defer resp.Body.Close()

	var payload openWeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.WeatherSnapshot{}, c.fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if payload.Main == nil {
		return weather.WeatherSnapshot{}, c.fail(resp.StatusCode, errMissingMain)
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	return weather.WeatherSnapshot{
		Place:       payload.Name,
		Timestamp:   ts,
		Temperature: payload.Main.Temp,
		Humidity:    payload.Main.Humidity,
	}, nil
}

func (c *OpenWeatherClient) fail(status int, err error) *weather.ProviderError {
	return &weather.ProviderError{Provider: c.name, StatusCode: status, Err: err}
}
