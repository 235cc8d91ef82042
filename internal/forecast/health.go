package forecast

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const healthProbeTimeout = 5 * time.Second

// HealthMonitor probes every provider plus storage and caches the snapshot.
// The snapshot is recomputed lazily on expiry, so an idle service costs the
// upstream APIs nothing.
type HealthMonitor struct {
	providers []Provider
	db        Pinger
	ttl       time.Duration
	clock     clockwork.Clock

	mu      sync.Mutex
	snap    *HealthSnapshot
	takenAt time.Time
}

// NewHealthMonitor creates a monitor with the given snapshot TTL.
func NewHealthMonitor(providers []Provider, db Pinger, ttl time.Duration, clock clockwork.Clock) *HealthMonitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &HealthMonitor{
		providers: providers,
		db:        db,
		ttl:       ttl,
		clock:     clock,
	}
}

// CheckAll returns the cached snapshot while it is younger than the TTL,
// otherwise probes everything concurrently and caches the fresh result.
func (h *HealthMonitor) CheckAll(ctx context.Context) HealthSnapshot {
	h.mu.Lock()
	if h.snap != nil && h.clock.Since(h.takenAt) < h.ttl {
		snap := *h.snap
		h.mu.Unlock()
		return snap
	}
	h.mu.Unlock()

	snap := h.probeAll(ctx)

	// Last writer wins; concurrent refreshes are harmless.
	h.mu.Lock()
	h.snap = &snap
	h.takenAt = h.clock.Now()
	h.mu.Unlock()

	return snap
}

func (h *HealthMonitor) probeAll(ctx context.Context) HealthSnapshot {
	snap := HealthSnapshot{
		Status:   StatusOK,
		Services: make(map[string]Probe, len(h.providers)),
	}

	type named struct {
		name  string
		probe Probe
	}

	var wg sync.WaitGroup
	probes := make(chan named, len(h.providers))
	for _, p := range h.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
			defer cancel()
			probes <- named{name: p.Name(), probe: safeProbe(probeCtx, p)}
		}(p)
	}

	dbOK := make(chan bool, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
		defer cancel()
		dbOK <- h.db.Ping(probeCtx) == nil
	}()

	wg.Wait()
	close(probes)

	for n := range probes {
		snap.Services[n.name] = n.probe
		if !n.probe.OK {
			snap.Status = StatusDegraded
		}
	}

	snap.Database.Connected = <-dbOK
	if !snap.Database.Connected {
		snap.Status = StatusDegraded
	}

	return snap
}

// safeProbe shields the monitor from a misbehaving adapter: a panic inside a
// health check becomes a failed probe, nothing more.
func safeProbe(ctx context.Context, p Provider) (probe Probe) {
	defer func() {
		if r := recover(); r != nil {
			probe = Probe{OK: false, Error: "health check panicked"}
		}
	}()
	return p.HealthCheck(ctx)
}
