package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/openweather-sensor/internal/config"
	"github.com/i474232898/openweather-sensor/internal/device"
	"github.com/i474232898/openweather-sensor/internal/lifecycle"
	"github.com/i474232898/openweather-sensor/internal/schedule"
	"github.com/i474232898/openweather-sensor/internal/store"
	"github.com/i474232898/openweather-sensor/internal/weather"
)

var validate = validator.New()

// NextRunner reports when a named trigger fires next.
type NextRunner interface {
	NextRun(installationID, name string) (time.Time, bool)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, inst *lifecycle.App, devices *store.MemoryStore, runs NextRunner) {
	v1 := app.Group("/api/v1")

	v1.Post("/installation", func(c *fiber.Ctx) error {
		var s config.Settings
		if err := c.BodyParser(&s); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
		}

		d, err := inst.Install(c.UserContext(), s)
		if err != nil && d.Ref == "" {
			return toFiberError(err)
		}

		resp := fiber.Map{
			"installationId": inst.InstallationID(),
			"device":         d,
		}
		if err != nil {
			// Installed, but the initial refresh failed.
			resp["refreshError"] = err.Error()
		}
		return c.Status(fiber.StatusCreated).JSON(resp)
	})

	v1.Put("/installation/settings", func(c *fiber.Ctx) error {
		var s config.Settings
		if err := c.BodyParser(&s); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
		}

		if err := inst.Update(c.UserContext(), s); err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{"settings": s})
	})

	v1.Delete("/installation", func(c *fiber.Ctx) error {
		if err := inst.Uninstall(c.UserContext()); err != nil {
			return toFiberError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/installation", func(c *fiber.Ctx) error {
		s, ok := inst.Settings()
		if !ok {
			return toFiberError(lifecycle.ErrNotInstalled)
		}
		return c.JSON(fiber.Map{
			"installationId": inst.InstallationID(),
			"settings":       s,
		})
	})

	v1.Get("/schedule", func(c *fiber.Ctx) error {
		d, ok := inst.Schedule()
		if !ok {
			return c.JSON(fiber.Map{"scheduled": false})
		}

		resp := fiber.Map{
			"scheduled":  true,
			"name":       schedule.TriggerName,
			"descriptor": d,
			"cron":       d.Cron(),
			"minutes":    d.Minutes(),
		}
		if next, ok := runs.NextRun(inst.InstallationID(), schedule.TriggerName); ok && !next.IsZero() {
			resp["nextRun"] = next.UTC()
		} else {
			resp["nextRun"] = d.Next(time.Now())
		}
		return c.JSON(resp)
	})

	v1.Get("/devices", func(c *fiber.Ctx) error {
		list, err := devices.List(c.UserContext(), inst.InstallationID())
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{"devices": list})
	})

	v1.Get("/devices/:id/state", func(c *fiber.Ctx) error {
		ref := device.Ref(c.Params("id"))
		state, err := devices.State(c.UserContext(), ref)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"deviceId":   ref,
			"attributes": state,
		})
	})

	v1.Get("/devices/:id/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ref := device.Ref(c.Params("id"))
		events, err := devices.History(c.UserContext(), ref, req.From, req.To)
		if err != nil {
			return toFiberError(err)
		}
		if events == nil {
			events = []device.RecordedEvent{}
		}

		return c.JSON(fiber.Map{
			"deviceId": ref,
			"from":     req.From,
			"to":       req.To,
			"events":   events,
		})
	})

	v1.Post("/devices/:id/commands", func(c *fiber.Ctx) error {
		var req commandRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid command body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ref := device.Ref(c.Params("id"))
		if _, err := devices.Get(c.UserContext(), ref); err != nil {
			return toFiberError(err)
		}

		if err := inst.HandleCommand(c.UserContext(), ref, req.toCommand()); err != nil {
			return toFiberError(err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	})
}

// commandRequest is the body of a device command.
type commandRequest struct {
	Component  string `json:"component" validate:"required"`
	Capability string `json:"capability" validate:"required"`
	Command    string `json:"command" validate:"required"`
}

func (r commandRequest) toCommand() lifecycle.Command {
	return lifecycle.Command{
		Component:  r.Component,
		Capability: r.Capability,
		Command:    r.Command,
	}
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

// toFiberError maps domain errors to HTTP status codes.
func toFiberError(err error) error {
	var (
		verrs      validator.ValidationErrors
		providerEr *weather.ProviderError
		incomplete *weather.IncompleteDataError
		lookupErr  *weather.LookupError
	)

	switch {
	case errors.As(err, &verrs):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrUnsupportedCommand):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrAlreadyInstalled):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, lifecycle.ErrNotInstalled), errors.Is(err, store.ErrNotFound), errors.As(err, &lookupErr):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.As(err, &providerEr), errors.As(err, &incomplete):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
