package config

import (
	"github.com/go-playground/validator/v10"

	"github.com/i474232898/openweather-sensor/internal/schedule"
	"github.com/i474232898/openweather-sensor/internal/weather"
)

var validate = validator.New()

// Settings is the user-facing configuration of an installation.
type Settings struct {
	Location         string `json:"location" validate:"required"`
	Units            string `json:"units" validate:"required,oneof=metric imperial"`
	ScheduleInterval string `json:"scheduleInterval" validate:"required,oneof=never 0 1 15 30"`
}

// Validate checks the settings against the accepted values.
func (s Settings) Validate() error {
	return validate.Struct(s)
}

// Query returns the provider query described by the settings.
func (s Settings) Query() weather.LocationQuery {
	return weather.LocationQuery{
		Location: s.Location,
		Units:    weather.Units(s.Units),
	}
}

// Interval parses the scheduleInterval setting.
func (s Settings) Interval() (schedule.IntervalClass, error) {
	return schedule.ParseInterval(s.ScheduleInterval)
}
