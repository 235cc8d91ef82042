package httpapi

import (
	"context"
	"errors"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/swellsense/surf-data-aggregation/internal/forecast"
	"github.com/swellsense/surf-data-aggregation/internal/scheduler"
	"github.com/swellsense/surf-data-aggregation/internal/store"
)

var validate = validator.New()

// ConditionsStore is the slice of storage the read-side handlers need:
// stored readings back out, plus the monitored location count.
type ConditionsStore interface {
	CountMonitoredLocations(ctx context.Context) (int, error)
	ListRecentRecords(ctx context.Context, stationID string, limit int) ([]store.Record, error)
	LatestRecord(ctx context.Context, stationID string) (*store.Record, error)
	ConditionStatsSince(ctx context.Context, since time.Time, stationID string) (store.ConditionStats, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc *forecast.Service, health *forecast.HealthMonitor, sched *scheduler.Scheduler, db ConditionsStore) {
	app.Get("/forecast", func(c *fiber.Ctx) error {
		var q recordsQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := db.ListRecentRecords(c.Context(), q.StationID, q.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch stored conditions")
		}

		return c.JSON(fiber.Map{
			"count": len(records),
			"data":  records,
		})
	})

	app.Get("/forecast/latest", func(c *fiber.Ctx) error {
		rec, err := db.LatestRecord(c.Context(), c.Query("station_id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch latest conditions")
		}
		if rec == nil {
			return fiber.NewError(fiber.StatusNotFound, "no stored conditions yet")
		}
		return c.JSON(fiber.Map{"data": rec})
	})

	app.Get("/forecast/stats", func(c *fiber.Ctx) error {
		var q recordsQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		since := time.Now().UTC().Add(-time.Duration(q.Hours) * time.Hour)
		stats, err := db.ConditionStatsSince(c.Context(), since, q.StationID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate stored conditions")
		}

		return c.JSON(fiber.Map{
			"period_hours": q.Hours,
			"record_count": stats.RecordCount,
			"wave_height": fiber.Map{
				"avg": round2p(stats.WaveAvgM), "min": round2p(stats.WaveMinM),
				"max": round2p(stats.WaveMaxM), "unit": "meters",
			},
			"wind_speed": fiber.Map{
				"avg": round2p(stats.WindAvgMS), "min": round2p(stats.WindMinMS),
				"max": round2p(stats.WindMaxMS), "unit": "m/s",
			},
			"wave_period": fiber.Map{
				"avg": round2p(stats.PeriodAvgS), "unit": "seconds",
			},
		})
	})

	app.Get("/forecast/global", func(c *fiber.Ctx) error {
		return handleForecast(c, svc, false)
	})

	app.Get("/forecast/global/debug", func(c *fiber.Ctx) error {
		return handleForecast(c, svc, true)
	})

	app.Get("/forecast/health", func(c *fiber.Ctx) error {
		snap := health.CheckAll(c.Context())
		status := fiber.StatusOK
		if snap.Status == forecast.StatusDegraded {
			status = fiber.StatusMultiStatus
		}
		return c.Status(status).JSON(snap)
	})

	app.Post("/ingest/trigger", func(c *fiber.Ctx) error {
		log.Printf("INFO: manual ingestion cycle triggered")
		res, err := sched.RunCycle(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(res)
	})

	app.Get("/ingest/status", func(c *fiber.Ctx) error {
		status := "stopped"
		if sched.IsRunning() {
			status = "running"
		}

		count, err := db.CountMonitoredLocations(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to count monitored locations")
		}

		return c.JSON(fiber.Map{
			"status":                   status,
			"monitored_location_count": count,
			"interval_hours":           sched.Interval().Hours(),
		})
	})
}

func handleForecast(c *fiber.Ctx, svc *forecast.Service, debug bool) error {
	q, err := parseForecastQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, err := svc.Aggregate(c.Context(), q.Lat, q.Lon, q.Hours)
	if err != nil {
		if errors.Is(err, forecast.ErrInvalidCoordinates) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate forecast data")
	}

	if !debug {
		res.Diagnostics = nil
	}
	return c.JSON(res)
}

// recordsQuery holds query parameters for the stored-conditions endpoints.
type recordsQuery struct {
	StationID string
	Limit     int `validate:"min=1,max=500"`
	Hours     int `validate:"min=1,max=168"`
}

func (q *recordsQuery) bind(c *fiber.Ctx) error {
	q.StationID = c.Query("station_id")
	q.Limit = 24
	q.Hours = 24

	var err error
	if limitStr := c.Query("limit"); limitStr != "" {
		if q.Limit, err = strconv.Atoi(limitStr); err != nil {
			return errors.New("limit must be an integer")
		}
	}
	if hoursStr := c.Query("hours"); hoursStr != "" {
		if q.Hours, err = strconv.Atoi(hoursStr); err != nil {
			return errors.New("hours must be an integer")
		}
	}

	return validate.Struct(q)
}

// round2p rounds a nullable metric to two decimals, keeping nil as nil so the
// response distinguishes "no data" from zero.
func round2p(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}

// forecastQuery holds query parameters for the forecast endpoints.
type forecastQuery struct {
	Lat   float64 `validate:"min=-90,max=90"`
	Lon   float64 `validate:"min=-180,max=180"`
	Hours int     `validate:"min=1,max=168"`
}

func parseForecastQuery(c *fiber.Ctx) (forecastQuery, error) {
	q := forecastQuery{Hours: 24}

	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		return q, errors.New("lat and lon query parameters are required")
	}

	var err error
	if q.Lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return q, errors.New("lat must be a number")
	}
	if q.Lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return q, errors.New("lon must be a number")
	}
	if hoursStr := c.Query("hours"); hoursStr != "" {
		if q.Hours, err = strconv.Atoi(hoursStr); err != nil {
			return q, errors.New("hours must be an integer")
		}
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}
