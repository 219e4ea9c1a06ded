package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// DefaultDelay is the minimum pause between consecutive backend calls.
// Neither backend documents a hard rate limit; this is a tunable
// starting point, not a guaranteed-sufficient value.
const DefaultDelay = 500 * time.Millisecond

// Runner drives a strictly sequential, ordered pass over work items.
// Each item produces exactly one result, in input order, and a per-item
// failure never stops the run.
type Runner struct {
	// Delay is the minimum pause between consecutive items that reach
	// the backend. No delay is applied after skipped items or after the
	// last item. Zero disables throttling (used for sandbox runs that
	// never leave the process).
	Delay time.Duration

	// Sleep is swappable for tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

// NewRunner creates a runner with the given inter-call delay.
func NewRunner(delay time.Duration) *Runner {
	return &Runner{Delay: delay}
}

// Run processes every item with proc and returns one result per item.
// Items with an empty source are recorded as skipped without invoking
// proc. An error returned by proc is converted into a failed result
// carrying the error text.
func (r *Runner) Run(ctx context.Context, items []WorkItem, proc Processor) *Summary {
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	summary := &Summary{Results: make([]ItemResult, 0, len(items))}

	for i, item := range items {
		slog.Info("Processing item", "index", i+1, "total", len(items), "id", item.ID)

		if strings.TrimSpace(item.Source) == "" {
			slog.Warn("Empty source, skipping", "id", item.ID)
			summary.Add(ItemResult{ItemID: item.ID, Status: StatusSkippedEmpty})
			continue
		}

		start := time.Now()
		result, err := proc.Process(ctx, item)
		if err != nil {
			result = ItemResult{ItemID: item.ID, Status: StatusFailed, Detail: err.Error()}
		}
		summary.Add(result)

		slog.Debug("Item done",
			"id", item.ID,
			"status", string(result.Status),
			"elapsed", time.Since(start).Round(time.Millisecond))

		// Throttle between consecutive backend calls, but not after
		// the final item.
		if r.Delay > 0 && i < len(items)-1 {
			sleep(r.Delay)
		}
	}

	return summary
}
