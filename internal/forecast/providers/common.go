package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/swellsense/surf-data-aggregation/internal/forecast"
)

// Health checks hit a fixed, well-covered spot (off Huntington Beach, CA) so
// every provider answers a minimal real query.
const (
	healthCheckLat = 33.63
	healthCheckLon = -118.00
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")
)

// BackoffConfig controls the retry loop around one outbound call.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func defaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     4 * time.Second,
	}
}

// base carries everything the nine adapters share: identity, per-call budget,
// grid coarsening, cache TTL, and the resilient HTTP path (retries with
// exponential backoff behind a circuit breaker).
type base struct {
	name     string
	timeout  time.Duration
	gridRes  float64
	cacheTTL time.Duration

	client  *http.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
}

func newBase(name string, client *http.Client, timeout time.Duration, gridRes float64) base {
	return base{
		name:     name,
		timeout:  timeout,
		gridRes:  gridRes,
		cacheTTL: time.Hour,
		client:   client,
		backoff:  defaultBackoff(),
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
	}
}

func (b *base) Name() string            { return b.name }
func (b *base) Timeout() time.Duration  { return b.timeout }
func (b *base) GridResolution() float64 { return b.gridRes }
func (b *base) CacheTTL() time.Duration { return b.cacheTTL }

// do executes one request with retries and the circuit breaker. The caller
// owns the response body on success.
func (b *base) do(ctx context.Context, buildRequest func() (*http.Request, error)) (*http.Response, error) {
	if b.client == nil {
		return nil, errors.New("http client not configured")
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := b.circuit.Execute(func() (interface{}, error) {
			resp, execErr := b.client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, errors.New("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= b.backoff.MaxRetries {
			return nil, lastErr
		}

		delay := b.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if b.backoff.MaxInterval > 0 && delay > b.backoff.MaxInterval {
			delay = b.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

// getJSON performs a resilient GET and decodes the JSON payload into out.
func (b *base) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	resp, err := b.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s payload: %w", b.name, err)
	}
	return nil
}

// getRaw performs a resilient GET and returns the body bytes.
func (b *base) getRaw(ctx context.Context, url string, header http.Header) ([]byte, string, error) {
	resp, err := b.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return req, nil
	})
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// probe issues a single unretried request and reports reachability. It never
// returns an error: failures are carried inside the Probe.
func (b *base) probe(ctx context.Context, url string, header http.Header) forecast.Probe {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return forecast.Probe{OK: false, Error: truncate(err.Error())}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := b.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return forecast.Probe{OK: false, LatencyMS: latency, Error: truncate(err.Error())}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return forecast.Probe{
			OK:        false,
			LatencyMS: latency,
			Error:     fmt.Sprintf("status %d", resp.StatusCode),
		}
	}
	return forecast.Probe{OK: true, LatencyMS: latency}
}

func truncate(s string) string {
	if len(s) > 100 {
		return s[:100]
	}
	return s
}

func fptr(v float64) *float64 {
	return &v
}

// parseTimestamp handles the RFC3339 variants the providers emit, falling back
// to the current time so an odd timestamp never fails a whole observation.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}
