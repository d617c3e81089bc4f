package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	FetchJSON       atomic.Int64
	FetchHTML       atomic.Int64
	Attempts        atomic.Int64
	Retries         atomic.Int64
	Failures        atomic.Int64
	SignerErrors    atomic.Int64
	Rotations       atomic.Int64
	WebIDFallbacks  atomic.Int64
	RateLimited     atomic.Int64
	Validations     atomic.Int64
	ValidationFails atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"fetch_json_requests": metrics.FetchJSON.Load(),
		"fetch_html_requests": metrics.FetchHTML.Load(),
		"upstream_attempts":   metrics.Attempts.Load(),
		"retries":             metrics.Retries.Load(),
		"fetch_failures":      metrics.Failures.Load(),
		"signer_errors":       metrics.SignerErrors.Load(),
		"rotations":           metrics.Rotations.Load(),
		"webid_fallbacks":     metrics.WebIDFallbacks.Load(),
		"rate_limited":        metrics.RateLimited.Load(),
		"validations":         metrics.Validations.Load(),
		"validation_failures": metrics.ValidationFails.Load(),
		"cache_hits":          hits,
		"cache_misses":        misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"fetch_json_requests", "fetch_html_requests",
		"upstream_attempts", "retries", "fetch_failures",
		"signer_errors", "rotations", "webid_fallbacks", "rate_limited",
		"validations", "validation_failures",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
