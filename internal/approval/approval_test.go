package approval

import (
	"context"
	"testing"
	"time"

	"github.com/atlas-agent/atlas/internal/notifier"
	"github.com/atlas-agent/atlas/internal/task"
)

func routeRecorder(calls *[]task.Action) RouteActionFunc {
	return func(_ context.Context, _ task.Task, action task.Action) (task.Result, error) {
		*calls = append(*calls, action)
		return task.Result{Success: true, Message: "routed " + string(action)}, nil
	}
}

func TestRequestApproval_AddsToPending(t *testing.T) {
	mem := notifier.NewMemory()
	w := New(mem, nil)

	req := w.RequestApproval(context.Background(), task.Task{Description: "deploy"}, task.ActionImmediate, task.Decision{}, 60, false)

	if req.Status != StatusPending {
		t.Errorf("Status = %q, want pending", req.Status)
	}
	pending := w.GetPendingApprovals()
	if len(pending) != 1 || pending[0].ID != req.ID {
		t.Errorf("pending = %v", pending)
	}
}

func TestHandleApprovalResponse_ApprovedRoutesAction(t *testing.T) {
	mem := notifier.NewMemory()
	var routed []task.Action
	w := New(mem, routeRecorder(&routed))

	req := w.RequestApproval(context.Background(), task.Task{Description: "deploy"}, task.ActionImmediate, task.Decision{}, 60, false)
	result, err := w.HandleApprovalResponse(context.Background(), req.ID, true)
	if err != nil {
		t.Fatalf("HandleApprovalResponse: %v", err)
	}
	if !result.Success {
		t.Error("expected success from routed action")
	}
	if len(routed) != 1 || routed[0] != task.ActionImmediate {
		t.Errorf("routed = %v", routed)
	}
	if len(w.GetPendingApprovals()) != 0 {
		t.Error("request should be removed from pending after response")
	}
}

func TestHandleApprovalResponse_RejectedDoesNotRoute(t *testing.T) {
	mem := notifier.NewMemory()
	var routed []task.Action
	w := New(mem, routeRecorder(&routed))

	req := w.RequestApproval(context.Background(), task.Task{Description: "deploy"}, task.ActionImmediate, task.Decision{}, 60, false)
	result, err := w.HandleApprovalResponse(context.Background(), req.ID, false)
	if err != nil {
		t.Fatalf("HandleApprovalResponse: %v", err)
	}
	if !result.Success {
		t.Error("rejection itself is a successfully-handled response")
	}
	if len(routed) != 0 {
		t.Error("rejected approval must never route the proposed action")
	}
}

func TestHandleApprovalResponse_UnknownIDErrors(t *testing.T) {
	w := New(notifier.NewMemory(), nil)
	if _, err := w.HandleApprovalResponse(context.Background(), "nonexistent", true); err == nil {
		t.Error("expected error for unknown approval ID")
	}
}

func TestHandleApprovalResponse_IdempotentOnSecondCall(t *testing.T) {
	mem := notifier.NewMemory()
	var routed []task.Action
	w := New(mem, routeRecorder(&routed))

	req := w.RequestApproval(context.Background(), task.Task{}, task.ActionImmediate, task.Decision{}, 60, false)
	w.HandleApprovalResponse(context.Background(), req.ID, true)

	if _, err := w.HandleApprovalResponse(context.Background(), req.ID, true); err == nil {
		t.Error("second response for the same ID must error, not re-route")
	}
	if len(routed) != 1 {
		t.Errorf("routed %d times, want exactly 1", len(routed))
	}
}

func TestTimeout_WithoutAutoExecuteMarksTimedOut(t *testing.T) {
	mem := notifier.NewMemory()
	var routed []task.Action
	w := New(mem, routeRecorder(&routed))

	w.RequestApproval(context.Background(), task.Task{}, task.ActionImmediate, task.Decision{}, 0, false)

	time.Sleep(50 * time.Millisecond)

	if len(routed) != 0 {
		t.Error("timeout without auto-execute must not route the action")
	}
	if len(w.GetPendingApprovals()) != 0 {
		t.Error("timed-out request should be removed from pending")
	}
}

func TestTimeout_WithAutoExecuteRoutesAction(t *testing.T) {
	mem := notifier.NewMemory()
	var routed []task.Action
	w := New(mem, routeRecorder(&routed))

	w.RequestApproval(context.Background(), task.Task{}, task.ActionAutoFix, task.Decision{}, 0, true)

	deadline := time.Now().Add(2 * time.Second)
	for len(routed) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if len(routed) != 1 || routed[0] != task.ActionAutoFix {
		t.Errorf("routed = %v, want exactly one auto_fix after timeout auto-execute", routed)
	}
}
