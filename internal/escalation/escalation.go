// Package escalation re-dispatches failed work one step up the ladder:
// auto_fix → immediate → alternate worker → notify_human. It never
// recurses; at most one level is applied per Task.
package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/atlas-agent/atlas/internal/observability"
	"github.com/atlas-agent/atlas/internal/router"
	"github.com/atlas-agent/atlas/internal/task"
	"github.com/atlas-agent/atlas/internal/worker"
)

// Level identifies which rung of the ladder an escalation took.
type Level string

const (
	LevelPromoteAction   Level = "promote_action"
	LevelAlternateWorker Level = "alternate_worker"
	LevelNotifyHuman     Level = "notify_human"
)

// Record is an immutable per-escalation-event audit record.
type Record struct {
	OriginalAction task.Action
	OriginalWorker string
	Reason         string
	Level          Level
	NewAction      task.Action
	NewWorker      string
	CreatedAt      time.Time
}

// RouteActionFunc re-dispatches a (possibly different) action/worker through
// the coordinator's action router. Injected to avoid a circular import with
// coordinator.
type RouteActionFunc func(ctx context.Context, t task.Task, action task.Action) (task.Result, error)

// Engine applies the escalation ladder.
type Engine struct {
	router   *router.Router
	registry *worker.Registry
	route    RouteActionFunc

	mu      sync.Mutex
	metrics *observability.Metrics
}

// New creates an escalation Engine.
func New(r *router.Router, registry *worker.Registry, route RouteActionFunc) *Engine {
	return &Engine{router: r, registry: registry, route: route}
}

// SetMetrics installs the Prometheus collector set Escalate reports
// escalation counts through. A nil *Metrics (the default) disables
// reporting.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
}

// Escalate is called only when a worker invocation fails and escalation is
// enabled.
func (e *Engine) Escalate(ctx context.Context, t task.Task, originalAction task.Action, originalWorker, reason string) (task.Result, Record) {
	rec := Record{
		OriginalAction: originalAction,
		OriginalWorker: originalWorker,
		Reason:         reason,
		CreatedAt:      time.Now().UTC(),
	}

	if originalAction == task.ActionAutoFix {
		rec.Level = LevelPromoteAction
		rec.NewAction = task.ActionImmediate
		rec.NewWorker = originalWorker
		e.recordLevel(rec.Level)
		result, _ := e.route(ctx, t, task.ActionImmediate)
		return result, rec
	}

	// originalAction == task.ActionImmediate: try an alternate worker.
	if alt, ok := e.findAlternateWorker(t, originalWorker); ok {
		rec.Level = LevelAlternateWorker
		rec.NewAction = originalAction
		rec.NewWorker = alt
		e.recordLevel(rec.Level)
		altTask := t
		altTask.TargetWorker = alt
		result, _ := e.route(ctx, altTask, originalAction)
		return result, rec
	}

	rec.Level = LevelNotifyHuman
	rec.NewAction = task.ActionNotify
	e.recordLevel(rec.Level)
	result, _ := e.route(ctx, t, task.ActionNotify)
	return result, rec
}

// recordLevel increments the escalation counter for the ladder rung taken.
func (e *Engine) recordLevel(level Level) {
	e.mu.Lock()
	m := e.metrics
	e.mu.Unlock()
	if m != nil {
		m.EscalationsTotal.WithLabelValues(string(level)).Inc()
	}
}

// findAlternateWorker reruns keyword matching on the task, excluding the
// failed worker, and returns the first categorized match found.
func (e *Engine) findAlternateWorker(t task.Task, exclude string) (string, bool) {
	snapshot := e.registry.Snapshot()
	delete(snapshot, exclude)

	// Exclude target_worker too: the original dispatch may have relied on an
	// explicit override that is now known-bad.
	retryTask := t
	retryTask.TargetWorker = ""

	name, method := e.router.Select(retryTask, snapshot)
	if method == router.MethodNone || name == "" {
		return "", false
	}
	return name, true
}
