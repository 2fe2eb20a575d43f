package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/openweather-sensor/internal/api/http"
	"github.com/i474232898/openweather-sensor/internal/config"
	"github.com/i474232898/openweather-sensor/internal/lifecycle"
	"github.com/i474232898/openweather-sensor/internal/log"
	"github.com/i474232898/openweather-sensor/internal/refresh"
	"github.com/i474232898/openweather-sensor/internal/scheduler"
	"github.com/i474232898/openweather-sensor/internal/store"
	"github.com/i474232898/openweather-sensor/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := log.Init(cfg.Debug); err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.OpenWeatherAPIKey == "" {
		log.Warnf("OPENWEATHER_API_KEY is not set; every refresh will fail")
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Device registry and state sink with configured event retention.
	devices := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	client := providers.NewOpenWeatherClient(httpClient, cfg.OpenWeatherBaseURL)
	coordinator := refresh.NewCoordinator(cfg.InstallationID, cfg.OpenWeatherAPIKey, client, devices, devices)

	// Trigger registry running the periodic refresh.
	sched := scheduler.New(cfg.RefreshTimeout)
	sched.Start()
	defer sched.Stop()

	inst := lifecycle.New(cfg.InstallationID, devices, coordinator, sched)

	if cfg.AutoInstall && cfg.Settings.Location != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RefreshTimeout)
		if _, err := inst.Install(ctx, cfg.Settings); err != nil {
			log.Errorf("startup install for %s: %v", cfg.Settings.Location, err)
		}
		cancel()
	} else {
		log.Infof("no WEATHER_LOCATION configured; waiting for an install request")
	}

	app := fiber.New(fiber.Config{
		AppName:               "openweather-sensor",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RefreshTimeout + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":         "ok",
			"service":        "openweather-sensor",
			"installationId": cfg.InstallationID,
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, inst, devices, sched)

	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}
