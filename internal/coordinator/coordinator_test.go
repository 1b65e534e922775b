package coordinator

import (
	"context"
	"testing"

	"github.com/atlas-agent/atlas/internal/approval"
	"github.com/atlas-agent/atlas/internal/audit"
	"github.com/atlas-agent/atlas/internal/decision"
	"github.com/atlas-agent/atlas/internal/escalation"
	"github.com/atlas-agent/atlas/internal/notifier"
	"github.com/atlas-agent/atlas/internal/router"
	"github.com/atlas-agent/atlas/internal/task"
	"github.com/atlas-agent/atlas/internal/worker"
)

type stubWorker struct {
	name    string
	succeed bool
	calls   int
}

func (w *stubWorker) Name() string { return w.name }

func (w *stubWorker) Run(_ context.Context, t task.Task) (task.Result, error) {
	w.calls++
	if !w.succeed {
		return task.Result{Success: false, Errors: []string{"stub failure"}}, nil
	}
	return task.Result{Success: true, Message: "handled by " + w.name}, nil
}

func (w *stubWorker) Analyze(_ context.Context, data map[string]any) map[string]any { return data }
func (w *stubWorker) Report(r task.Result) string                                   { return r.Message }

func newCoordinator(workers ...*stubWorker) *Coordinator {
	registry := worker.NewRegistry()
	for _, w := range workers {
		registry.Register(w)
	}
	r := router.New()
	matrix := decision.New(decision.DefaultGateConfig(), nil)
	trail := audit.New(100)
	mem := notifier.NewMemory()

	c := New(registry, r, matrix, trail, mem)
	c.Approval = approval.New(mem, c.RouteAction)
	c.Escalation = escalation.New(r, registry, c.RouteAction)
	return c
}

func TestHandle_LowRiskLogsAndAudits(t *testing.T) {
	c := newCoordinator()

	result, err := c.Handle(context.Background(), task.Task{Description: "routine scan", Risk: task.RiskLow, Urgency: task.UrgencyLow})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got %+v", result)
	}
	if c.Trail.Len() != 1 {
		t.Errorf("Trail.Len() = %d, want 1", c.Trail.Len())
	}
	entries := c.Trail.Entries()
	if !entries[0].OutcomeSuccess {
		t.Error("audit entry outcome should reflect success")
	}
}

func TestHandle_AutoFixRoutesToMatchedWorker(t *testing.T) {
	w := &stubWorker{name: "coding-fixer", succeed: true}
	c := newCoordinator(w)

	result, err := c.Handle(context.Background(), task.Task{Description: "fix the failing build", Risk: task.RiskMedium, Urgency: task.UrgencyHigh})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got %+v", result)
	}
	if w.calls != 1 {
		t.Errorf("worker.calls = %d, want 1", w.calls)
	}
}

func TestHandle_AutoFixFailureEscalatesToImmediate(t *testing.T) {
	w := &stubWorker{name: "coding-fixer", succeed: false}
	c := newCoordinator(w)

	result, err := c.Handle(context.Background(), task.Task{Description: "fix the failing build", Risk: task.RiskMedium, Urgency: task.UrgencyHigh})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	// Escalation promotes auto_fix -> immediate, which retries the same
	// (still-failing) worker; outcome should reflect the final attempt.
	if w.calls < 2 {
		t.Errorf("worker.calls = %d, want at least 2 (original + escalated attempt)", w.calls)
	}
	_ = result
}

func TestHandle_EscalationDisabledLeavesFailureAsIs(t *testing.T) {
	w := &stubWorker{name: "coding-fixer", succeed: false}
	c := newCoordinator(w)
	c.EscalationEnabled = false

	result, err := c.Handle(context.Background(), task.Task{Description: "fix the failing build", Risk: task.RiskMedium, Urgency: task.UrgencyHigh})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Success {
		t.Error("expected failure to surface when escalation is disabled")
	}
	if w.calls != 1 {
		t.Errorf("worker.calls = %d, want exactly 1 (no escalated retry)", w.calls)
	}
}

func TestRouteAction_Log(t *testing.T) {
	c := newCoordinator()
	result, err := c.RouteAction(context.Background(), task.Task{Description: "x"}, task.ActionLog)
	if err != nil || !result.Success {
		t.Fatalf("RouteAction(log) = %+v, %v", result, err)
	}
}

func TestRouteAction_Notify(t *testing.T) {
	c := newCoordinator()
	result, err := c.RouteAction(context.Background(), task.Task{Description: "x"}, task.ActionNotify)
	if err != nil || !result.Success {
		t.Fatalf("RouteAction(notify) = %+v, %v", result, err)
	}
}

func TestRouteAction_AutoFixNoWorkerAvailable(t *testing.T) {
	c := newCoordinator()
	result, _ := c.RouteAction(context.Background(), task.Task{Description: "nothing matches anything"}, task.ActionAutoFix)
	if result.Success {
		t.Error("expected failure when no worker can be routed")
	}
}

func TestRouteAction_AutoFixExplicitTargetWorker(t *testing.T) {
	w := &stubWorker{name: "coding-fixer", succeed: true}
	c := newCoordinator(w)

	result, err := c.RouteAction(context.Background(), task.Task{Description: "anything", TargetWorker: "coding-fixer"}, task.ActionAutoFix)
	if err != nil || !result.Success {
		t.Fatalf("RouteAction(auto_fix) = %+v, %v", result, err)
	}
	if w.calls != 1 {
		t.Errorf("worker.calls = %d, want 1", w.calls)
	}
}

func TestRouteAction_UnknownActionFails(t *testing.T) {
	c := newCoordinator()
	result, err := c.RouteAction(context.Background(), task.Task{}, task.Action("bogus"))
	if err != nil {
		t.Fatalf("RouteAction: %v", err)
	}
	if result.Success {
		t.Error("expected failure for an unknown action")
	}
}

func TestInvokeWorker_MissingWorkerFails(t *testing.T) {
	c := newCoordinator()
	result, err := c.invokeWorker(context.Background(), "nonexistent", task.Task{})
	if err != nil {
		t.Fatalf("invokeWorker: %v", err)
	}
	if result.Success {
		t.Error("expected failure for an unregistered worker name")
	}
}

func TestInvokeWorker_TripsBreakerAfterConsecutiveFailures(t *testing.T) {
	w := &stubWorker{name: "flaky", succeed: false}
	c := newCoordinator(w)

	var last task.Result
	for i := 0; i < 6; i++ {
		last, _ = c.invokeWorker(context.Background(), "flaky", task.Task{})
	}
	if last.Success {
		t.Error("expected failure result after repeated worker failures")
	}
	// The circuit breaker should now be open; a further call must not reach
	// the worker's Run method.
	callsBefore := w.calls
	c.invokeWorker(context.Background(), "flaky", task.Task{})
	if w.calls != callsBefore {
		t.Errorf("worker.calls grew from %d to %d; breaker should have refused the call", callsBefore, w.calls)
	}
}
