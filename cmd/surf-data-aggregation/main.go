package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/swellsense/surf-data-aggregation/internal/api/http"
	"github.com/swellsense/surf-data-aggregation/internal/config"
	"github.com/swellsense/surf-data-aggregation/internal/forecast"
	"github.com/swellsense/surf-data-aggregation/internal/forecast/providers"
	"github.com/swellsense/surf-data-aggregation/internal/ingest"
	"github.com/swellsense/surf-data-aggregation/internal/observability"
	"github.com/swellsense/surf-data-aggregation/internal/scheduler"
	"github.com/swellsense/surf-data-aggregation/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres-backed storage for ingested readings and monitored locations.
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	// Providers with resilience (backoff + circuit breaker).
	stormglass := providers.NewStormGlassProvider(httpClient, cfg.StormGlassAPIKey)
	openweather := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey)
	worldtides := providers.NewWorldTidesProvider(httpClient, cfg.WorldTidesAPIKey)
	metno := providers.NewMetNoProvider(httpClient, cfg.UserAgent)

	provs := []forecast.Provider{
		stormglass,
		openweather,
		worldtides,
		metno,
		providers.NewOpenMeteoProvider(httpClient),
		providers.NewNOAAGFSProvider(httpClient),
		providers.NewNOAAERDDAPProvider(httpClient, ""),
		providers.NewERA5Provider(httpClient),
		providers.NewCopernicusProvider(httpClient, cfg.CMEMSUsername, cfg.CMEMSPassword),
	}

	// Per-cell observation cache with a background expiry sweep.
	cache := forecast.NewCache(nil)
	go cache.Janitor(ctx, cfg.CacheSweepInterval)

	service := forecast.NewService(provs, cache, nil, metrics)
	health := forecast.NewHealthMonitor(provs, db, cfg.HealthSnapshotTTL, nil)

	// Ingestion sources: the buoy feed plus the keyed forecast providers.
	sources := []ingest.Source{
		ingest.NewNDBCSource(httpClient, db),
		ingest.NewProviderSource(stormglass, db),
		ingest.NewProviderSource(openweather, db),
		ingest.NewProviderSource(worldtides, db),
		ingest.NewProviderSource(metno, db),
	}

	sched := scheduler.New(scheduler.Config{
		DB:            db,
		Sources:       sources,
		Interval:      cfg.IngestionInterval,
		RetryBackoff:  cfg.RetryBackoff,
		LocationDelay: cfg.LocationDelay,
		Metrics:       metrics,
	})
	sched.Start()
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "surf-data-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
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
			"status":  "ok",
			"service": "surf-data-aggregation",
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service, health, sched, db)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
