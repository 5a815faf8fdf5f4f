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
	SearchRequests   atomic.Int64
	SearchErrors     atomic.Int64
	SandboxesCreated atomic.Int64
	SandboxesDeleted atomic.Int64
	ProvisionErrors  atomic.Int64
	HealthPolls      atomic.Int64
	PreviewsReady    atomic.Int64
	ChatMessages     atomic.Int64
	ChatErrors       atomic.Int64
}

// metricKeys fixes the output order of FormatMetrics.
var metricKeys = []string{
	"search_requests", "search_errors",
	"sandboxes_created", "sandboxes_deleted", "provision_errors",
	"health_polls", "previews_ready",
	"chat_messages", "chat_errors",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"search_requests":   metrics.SearchRequests.Load(),
		"search_errors":     metrics.SearchErrors.Load(),
		"sandboxes_created": metrics.SandboxesCreated.Load(),
		"sandboxes_deleted": metrics.SandboxesDeleted.Load(),
		"provision_errors":  metrics.ProvisionErrors.Load(),
		"health_polls":      metrics.HealthPolls.Load(),
		"previews_ready":    metrics.PreviewsReady.Load(),
		"chat_messages":     metrics.ChatMessages.Load(),
		"chat_errors":       metrics.ChatErrors.Load(),
		"cache_hits":        hits,
		"cache_misses":      misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the jobs, sandbox and chat sub-packages.
func IncrSearchRequests()   { metrics.SearchRequests.Add(1) }
func IncrSearchErrors()     { metrics.SearchErrors.Add(1) }
func IncrSandboxesCreated() { metrics.SandboxesCreated.Add(1) }
func IncrSandboxesDeleted() { metrics.SandboxesDeleted.Add(1) }
func IncrProvisionErrors()  { metrics.ProvisionErrors.Add(1) }
func IncrHealthPolls()      { metrics.HealthPolls.Add(1) }
func IncrPreviewsReady()    { metrics.PreviewsReady.Add(1) }
func IncrChatMessages()     { metrics.ChatMessages.Add(1) }
func IncrChatErrors()       { metrics.ChatErrors.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
