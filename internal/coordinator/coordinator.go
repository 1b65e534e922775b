// Package coordinator implements the Master coordinator: the per-task
// orchestration of evaluate → route → audit → route-action → escalate.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/atlas-agent/atlas/internal/approval"
	"github.com/atlas-agent/atlas/internal/audit"
	"github.com/atlas-agent/atlas/internal/decision"
	"github.com/atlas-agent/atlas/internal/escalation"
	"github.com/atlas-agent/atlas/internal/notifier"
	"github.com/atlas-agent/atlas/internal/observability"
	"github.com/atlas-agent/atlas/internal/router"
	"github.com/atlas-agent/atlas/internal/task"
	"github.com/atlas-agent/atlas/internal/worker"
	"github.com/go-faster/errors"
	"github.com/sony/gobreaker"
)

// Coordinator is the top-level orchestrator. It is re-entrant: concurrent
// calls for independent Tasks share only the registry, matrix, and audit
// queue — each of which guards itself internally.
type Coordinator struct {
	Registry   *worker.Registry
	Router     *router.Router
	Matrix     *decision.Matrix
	Trail      *audit.Trail
	Notifier   notifier.Notifier
	Escalation *escalation.Engine
	Approval   *approval.Workflow

	// EscalationEnabled gates whether a failed auto_fix/immediate result
	// is retried through the escalation ladder.
	EscalationEnabled bool
	// ApprovalTimeoutSeconds / ApprovalAutoExecute hold approval-request
	// settings. The coordinator itself does not read them: routeImmediate
	// creates no ApprovalRequest (see routeImmediate).
	ApprovalTimeoutSeconds int
	ApprovalAutoExecute    bool

	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker

	metrics *observability.Metrics
}

// SetMetrics installs the Prometheus collector set RouteAction/invokeWorker
// report routing decisions and circuit breaker trips through. A nil
// *Metrics (the default) disables reporting.
func (c *Coordinator) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// New wires a Coordinator. Escalation and Approval are constructed by the
// caller with a RouteActionFunc bound to the returned Coordinator's
// RouteAction method (see cmd/atlas for the wiring order).
func New(registry *worker.Registry, r *router.Router, matrix *decision.Matrix, trail *audit.Trail, n notifier.Notifier) *Coordinator {
	return &Coordinator{
		Registry:               registry,
		Router:                 r,
		Matrix:                 matrix,
		Trail:                  trail,
		Notifier:               n,
		EscalationEnabled:      true,
		ApprovalTimeoutSeconds: 300,
		ApprovalAutoExecute:    false,
		breakers:               make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Handle runs the full evaluate → route → audit → route-action → escalate
// pipeline for a single Task.
func (c *Coordinator) Handle(ctx context.Context, t task.Task) (task.Result, error) {
	decisionResult := c.Matrix.Evaluate(t)

	workerName, method := c.selectWorker(t)

	auditID := c.Trail.Append(t.Description, t.Risk, t.Urgency, decisionResult.Action, decisionResult.Confidence, decisionResult.Reason, workerName, method, "")

	result, _ := c.RouteAction(ctx, t, decisionResult.Action)

	c.Trail.SetOutcome(auditID, result.Success)

	if !result.Success && c.EscalationEnabled && (decisionResult.Action == task.ActionAutoFix || decisionResult.Action == task.ActionImmediate) {
		escalated, rec := c.Escalation.Escalate(ctx, t, decisionResult.Action, workerName, firstError(result.Errors))
		result = escalated
		c.Trail.SetEscalated(auditID, rec.NewAction, result.Success)
	}

	return result, nil
}

// RouteAction dispatches a Decision's action to its handler.
func (c *Coordinator) RouteAction(ctx context.Context, t task.Task, action task.Action) (task.Result, error) {
	switch action {
	case task.ActionLog:
		return task.Result{Success: true, Message: "logged"}, nil

	case task.ActionNotify:
		message := fmt.Sprintf("%s: %s", action, t.Description)
		if c.Notifier != nil {
			_ = c.Notifier.Notify(ctx, message) // notifier errors are swallowed, not fatal to the action.
		}
		return task.Result{Success: true, Message: "notified"}, nil

	case task.ActionAutoFix:
		name := t.TargetWorker
		method := router.MethodExplicit
		if name == "" {
			name, method = c.selectWorker(t)
		}
		if name == "" {
			return task.Result{Success: false, Message: "no worker available for auto_fix", Errors: []string{"routing: no match"}}, nil
		}
		_ = method
		return c.invokeWorker(ctx, name, t)

	case task.ActionImmediate:
		return c.routeImmediate(ctx, t)

	default:
		return task.Result{Success: false, Errors: []string{fmt.Sprintf("unknown action %q", action)}}, nil
	}
}

// routeImmediate sends an Approve/Reject ask in parallel with an optional
// direct worker invocation; the worker outcome is the return value. Both
// paths run concurrently rather than gating the worker call on the human
// response. The Ask goes straight to the Notifier with the fixed callback
// IDs approve_immediate / reject_immediate; no approval.Request is created,
// so those callbacks are not resolvable through the approval workflow, and
// the Ask's reply is discarded.
func (c *Coordinator) routeImmediate(ctx context.Context, t task.Task) (task.Result, error) {
	name, _ := c.selectWorker(t)

	if c.Notifier != nil {
		// Detached from ctx: the HTTP handler that produced ctx returns long
		// before a human clicks Approve/Reject, and net/http cancels its
		// request context the moment the handler returns.
		askCtx := context.WithoutCancel(ctx)
		go func() {
			buttons := []notifier.Button{
				{Label: "Approve", CallbackID: "approve_immediate"},
				{Label: "Reject", CallbackID: "reject_immediate"},
			}
			_, _ = c.Notifier.Ask(askCtx, fmt.Sprintf("immediate: %s", t.Description), buttons)
		}()
	}

	if name == "" {
		return task.Result{Success: false, Message: "no worker available for immediate", Errors: []string{"routing: no match"}}, nil
	}
	return c.invokeWorker(ctx, name, t)
}

// selectWorker delegates to Router.Select and records the routing decision
// method, if a metrics collector set is installed.
func (c *Coordinator) selectWorker(t task.Task) (string, router.Method) {
	name, method := c.Router.Select(t, c.Registry.Snapshot())
	if c.metrics != nil {
		c.metrics.RoutingDecisions.WithLabelValues(string(method)).Inc()
	}
	return name, method
}

// invokeWorker runs a worker through a per-worker circuit breaker so a
// worker already known to be failing is recognized as failing without
// waiting out its own timeout.
func (c *Coordinator) invokeWorker(ctx context.Context, name string, t task.Task) (task.Result, error) {
	w, ok := c.Registry.Get(name)
	if !ok {
		return task.Result{Success: false, Message: fmt.Sprintf("worker %q not registered", name), Errors: []string{"worker not found"}}, nil
	}

	cb := c.breakerFor(name)
	out, err := cb.Execute(func() (interface{}, error) {
		res, runErr := w.Run(ctx, t)
		if runErr != nil {
			return res, errors.Wrapf(runErr, "worker %q", name)
		}
		if !res.Success {
			return res, errors.Newf("worker %q failed: %v", name, res.Errors)
		}
		return res, nil
	})

	if result, ok := out.(task.Result); ok {
		return result, nil
	}
	// Breaker tripped open (or a non-Result error without a cached result).
	return task.Result{Success: false, Message: fmt.Sprintf("worker %q unavailable: %v", name, err), Errors: []string{errString(err)}}, nil
}

func (c *Coordinator) breakerFor(name string) *gobreaker.CircuitBreaker {
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()
	if cb, ok := c.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen && c.metrics != nil {
				c.metrics.CircuitBreakerTrip.WithLabelValues(name).Inc()
			}
		},
	})
	c.breakers[name] = cb
	return cb
}

func firstError(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[0]
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
