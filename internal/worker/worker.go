// Package worker defines the uniform Run/Analyze/Report contract and the
// thread-safe registry workers are looked up from.
package worker

import (
	"context"

	"github.com/atlas-agent/atlas/internal/task"
)

// Worker is the uniform contract every dispatchable component honors.
// Implementations must not panic on bad input: malformed payloads must map
// to a Result with Success=false and a populated Errors slice.
type Worker interface {
	// Name uniquely identifies the worker in the registry.
	Name() string
	// Run performs the work described by t. On success Result.Success is
	// true with Message/Data populated; on failure Result.Success is false
	// with diagnostic Errors. Run calls Analyze internally and surfaces its
	// output in Data["analysis"].
	Run(ctx context.Context, t task.Task) (task.Result, error)
	// Analyze is a post-processing hook classifying raw results into risk,
	// urgency, action, summary, and worker-specific fields.
	Analyze(ctx context.Context, data map[string]any) map[string]any
	// Report renders a human-readable summary used by the notifier.
	Report(result task.Result) string
}
