package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/swellsense/surf-data-aggregation/internal/ingest"
	"github.com/swellsense/surf-data-aggregation/internal/observability"
	"github.com/swellsense/surf-data-aggregation/internal/store"
)

// LocationLister lists the monitored buoy stations, fresh each cycle.
type LocationLister interface {
	ListMonitoredLocations(ctx context.Context) ([]store.MonitoredLocation, error)
}

// Config wires a Scheduler. Zero durations fall back to the defaults the
// ingestion pipeline was designed around: hourly cycles, a five-minute retry
// backoff, three seconds between locations.
type Config struct {
	DB            LocationLister
	Sources       []ingest.Source
	Interval      time.Duration
	RetryBackoff  time.Duration
	LocationDelay time.Duration
	Clock         clockwork.Clock
	Metrics       *observability.Metrics
}

// CycleResult summarizes one full ingestion pass over all locations.
type CycleResult struct {
	RecordsInserted int            `json:"records_inserted"`
	BuoysProcessed  int            `json:"buoys_processed"`
	PerSource       map[string]int `json:"per_source,omitempty"`
}

// Scheduler periodically re-ingests every monitored location. Locations run
// sequentially to bound load on the upstream APIs; within a location all
// sources run concurrently with their failures isolated. An owned instance
// with explicit Start/Stop, so tests can run as many as they like.
type Scheduler struct {
	db            LocationLister
	sources       []ingest.Source
	interval      time.Duration
	retryBackoff  time.Duration
	locationDelay time.Duration
	clock         clockwork.Clock
	metrics       *observability.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Minute
	}
	if cfg.LocationDelay <= 0 {
		cfg.LocationDelay = 3 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		db:            cfg.DB,
		sources:       cfg.Sources,
		interval:      cfg.Interval,
		retryBackoff:  cfg.RetryBackoff,
		locationDelay: cfg.LocationDelay,
		clock:         cfg.Clock,
		metrics:       cfg.Metrics,
	}
}

// Start launches the periodic loop. Calling Start on a running scheduler is a
// logged no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Printf("scheduler: already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.metrics.SetSchedulerRunning(true)

	go s.run(ctx, s.done)
	log.Printf("scheduler: started (interval %s)", s.interval)
}

// Stop cancels the inter-cycle sleep and any in-cycle waiting as one unit,
// then blocks until the loop goroutine has finished. In-flight source calls
// are left to complete; no new location or cycle starts afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.metrics.SetSchedulerRunning(false)
	log.Printf("scheduler: stopped")
}

// IsRunning reports whether the periodic loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval exposes the cycle interval for the status endpoint.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		wait := s.interval
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			// Never let an unexpected failure kill the loop; come back sooner.
			log.Printf("ERROR: scheduler: cycle failed: %v (retrying in %s)", err, s.retryBackoff)
			wait = s.retryBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(wait):
		}
	}
}

// RunCycle performs one full ingestion pass and is also invoked synchronously
// by the manual trigger endpoint. An empty location set is not an error.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleResult, error) {
	start := s.clock.Now()
	result := CycleResult{PerSource: make(map[string]int, len(s.sources))}

	locations, err := s.db.ListMonitoredLocations(ctx)
	if err != nil {
		return result, fmt.Errorf("load monitored locations: %w", err)
	}
	if len(locations) == 0 {
		log.Printf("scheduler: no monitored locations; skipping cycle")
		return result, nil
	}

	log.Printf("scheduler: ingestion cycle started for %d locations", len(locations))

	for i, loc := range locations {
		if ctx.Err() != nil {
			break
		}

		counts := s.ingestLocation(ctx, loc)
		result.BuoysProcessed++
		for source, n := range counts {
			result.PerSource[source] += n
			result.RecordsInserted += n
			s.metrics.ObserveIngest(source, n)
		}

		if i < len(locations)-1 {
			select {
			case <-ctx.Done():
			case <-s.clock.After(s.locationDelay):
			}
		}
	}

	duration := s.clock.Since(start)
	s.metrics.ObserveIngestCycle(duration)
	log.Printf("scheduler: cycle complete in %s: %d records across %d locations %v",
		duration, result.RecordsInserted, result.BuoysProcessed, result.PerSource)
	return result, nil
}

// ingestLocation runs every source for one location concurrently. A failing
// source contributes zero records and never blocks its siblings.
func (s *Scheduler) ingestLocation(ctx context.Context, loc store.MonitoredLocation) map[string]int {
	counts := make(map[string]int, len(s.sources))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, src := range s.sources {
		wg.Add(1)
		go func(src ingest.Source) {
			defer wg.Done()

			n, err := s.ingestOne(ctx, src, loc)
			if err != nil {
				log.Printf("WARN: scheduler: %s failed for %s: %v", src.Name(), loc.StationID, err)
				n = 0
			}

			mu.Lock()
			counts[src.Name()] = n
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	return counts
}

func (s *Scheduler) ingestOne(ctx context.Context, src ingest.Source, loc store.MonitoredLocation) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("panic: %v", r)
		}
	}()
	return src.Ingest(ctx, loc)
}
