package weather

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Units is the unit system requested from the provider.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// ParseUnits validates a units token from configuration.
func ParseUnits(s string) (Units, error) {
	switch Units(s) {
	case UnitsMetric, UnitsImperial:
		return Units(s), nil
	default:
		return "", fmt.Errorf("unknown units %q; expected metric or imperial", s)
	}
}

// LocationQuery identifies the place to fetch current conditions for.
// Location is either a free-form place name or "lat,lon" coordinates.
type LocationQuery struct {
	Location string `json:"location"`
	Units    Units  `json:"units"`
}

// Coordinates returns the latitude/longitude pair when Location is written
// as "lat,lon".
func (q LocationQuery) Coordinates() (lat, lon float64, ok bool) {
	parts := strings.Split(q.Location, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// WeatherSnapshot is the raw current-conditions view returned by a provider.
// Nil fields were absent from the provider response.
type WeatherSnapshot struct {
	Place       string    `json:"place,omitempty"`
	Timestamp   time.Time `json:"timestamp"` // always UTC
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
}

// AttributeKind names the device attribute a reading maps to.
type AttributeKind string

const (
	KindTemperature AttributeKind = "temperature"
	KindHumidity    AttributeKind = "humidity"
)

// Reading is a single typed, unit-labelled value derived from a snapshot.
type Reading struct {
	Kind  AttributeKind `json:"kind"`
	Value float64       `json:"value"`
	Unit  string        `json:"unit"`
}

// ReadingSet is ordered: temperature first, then humidity.
type ReadingSet []Reading
