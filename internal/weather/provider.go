package weather

import (
	"context"
)

// Client abstracts a current-conditions weather source (e.g. OpenWeatherMap).
// Implementations do not retry and do not cache.
type Client interface {
	Name() string
	FetchCurrent(ctx context.Context, q LocationQuery, apiKey string) (WeatherSnapshot, error)
}
