package deploy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// Health probes a deployed URL, retrying a few times while the service
// comes up.
type Health struct {
	Client   *http.Client
	Attempts int
	Timeout  time.Duration
	// Interval paces attempts.
	Interval time.Duration
}

// NewHealth returns a checker with 3 attempts, 10s per request, 2s apart.
func NewHealth() *Health {
	return &Health{Client: http.DefaultClient, Attempts: 3, Timeout: 10 * time.Second, Interval: 2 * time.Second}
}

// Check GETs url until it answers with a status below 400 or the attempts
// run out. The last attempt's outcome is reported.
func (h *Health) Check(ctx context.Context, url string) state.HealthResult {
	attempts := h.Attempts
	if attempts < 1 {
		attempts = 1
	}
	limiter := rate.NewLimiter(rate.Every(h.Interval), 1)

	var res state.HealthResult
	for i := 0; i < attempts; i++ {
		if err := limiter.Wait(ctx); err != nil {
			res = state.HealthResult{URL: url, Error: err.Error()}
			break
		}
		res = h.probe(ctx, url)
		if res.Healthy {
			break
		}
	}
	return res
}

func (h *Health) probe(ctx context.Context, url string) state.HealthResult {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	res := state.HealthResult{URL: url}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Error = fmt.Sprintf("build request: %v", err)
		return res
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	res.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.Healthy = resp.StatusCode < 400
	if !res.Healthy {
		res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return res
}
