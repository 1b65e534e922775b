// Package approval implements the human-in-the-loop approval workflow:
// pending requests, timeouts, and accept/reject callbacks.
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atlas-agent/atlas/internal/notifier"
	"github.com/atlas-agent/atlas/internal/observability"
	"github.com/atlas-agent/atlas/internal/task"
	"github.com/google/uuid"
)

// Status is the lifecycle state of an ApprovalRequest. Transitions form a
// DAG over {pending} → {approved, rejected, timed_out}; no two terminal
// states are ever observed for the same request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusTimedOut  Status = "timed_out"
)

// Request is a pending human approval for a proposed action.
type Request struct {
	ID                   string
	Task                 task.Task
	ProposedAction       task.Action
	Decision             task.Decision
	TimeoutSeconds       int
	AutoExecuteOnTimeout bool
	Status               Status
	CreatedAt            time.Time
	RespondedAt          time.Time
}

// RouteActionFunc re-dispatches an approved Task/action through the
// coordinator's action router. Injected to avoid a circular import between
// approval and coordinator.
type RouteActionFunc func(ctx context.Context, t task.Task, action task.Action) (task.Result, error)

// Workflow owns the pending-approvals map. All transitions (approve,
// reject, timeout) are serialized through its single mutex so a racing
// timeout and user reply cannot both fire execution.
type Workflow struct {
	mu       sync.Mutex
	pending  map[string]*pendingEntry
	notifier notifier.Notifier
	route    RouteActionFunc
	metrics  *observability.Metrics
}

type pendingEntry struct {
	req   *Request
	timer *time.Timer
}

// New creates an approval Workflow.
func New(n notifier.Notifier, route RouteActionFunc) *Workflow {
	return &Workflow{
		pending:  make(map[string]*pendingEntry),
		notifier: n,
		route:    route,
	}
}

// SetMetrics installs the Prometheus collector set resolution events are
// reported through. A nil *Metrics (the default) disables reporting.
func (w *Workflow) SetMetrics(m *observability.Metrics) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics = m
}

// recordResolution observes the time from CreatedAt to RespondedAt and
// increments the outcome counter for status. Called once per terminal
// transition (approved, rejected, or timed_out).
func (w *Workflow) recordResolution(req *Request, status Status) {
	w.mu.Lock()
	m := w.metrics
	w.mu.Unlock()
	if m == nil {
		return
	}
	m.ApprovalLatency.Observe(req.RespondedAt.Sub(req.CreatedAt).Seconds())
	m.ApprovalOutcomes.WithLabelValues(string(status)).Inc()
}

// RequestApproval creates an ApprovalRequest, stores it in the pending map,
// dispatches a notification with Approve/Reject buttons, and arms its
// timeout timer.
func (w *Workflow) RequestApproval(ctx context.Context, t task.Task, action task.Action, d task.Decision, timeoutSeconds int, autoExecuteOnTimeout bool) *Request {
	req := &Request{
		ID:                   uuid.NewString(),
		Task:                 t,
		ProposedAction:       action,
		Decision:             d,
		TimeoutSeconds:       timeoutSeconds,
		AutoExecuteOnTimeout: autoExecuteOnTimeout,
		Status:               StatusPending,
		CreatedAt:            time.Now().UTC(),
	}

	entry := &pendingEntry{req: req}
	w.mu.Lock()
	w.pending[req.ID] = entry
	w.mu.Unlock()

	entry.timer = time.AfterFunc(time.Duration(timeoutSeconds)*time.Second, func() {
		w.handleTimeout(ctx, req.ID)
	})

	if w.notifier != nil {
		buttons := []notifier.Button{
			{Label: "Approve", CallbackID: "approve_" + req.ID},
			{Label: "Reject", CallbackID: "reject_" + req.ID},
		}
		text := fmt.Sprintf("Approval requested for %q (action=%s, confidence=%.2f)", t.Description, action, d.Confidence)
		go func() {
			_, _ = w.notifier.Ask(ctx, text, buttons)
		}()
	}

	return req
}

// HandleApprovalResponse atomically removes the entry from the pending map
// and, if approved, re-routes the embedded Task through RouteAction using
// the stored action. If rejected, returns success with an acknowledgement
// message. A second call for an already-resolved ID returns an error — this
// makes rejection (and approval) idempotent on the request ID.
func (w *Workflow) HandleApprovalResponse(ctx context.Context, id string, approved bool) (task.Result, error) {
	w.mu.Lock()
	entry, ok := w.pending[id]
	if ok {
		delete(w.pending, id)
	}
	w.mu.Unlock()

	if !ok {
		return task.Result{}, fmt.Errorf("approval request %q: not found", id)
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}

	now := time.Now().UTC()
	entry.req.RespondedAt = now

	if !approved {
		entry.req.Status = StatusRejected
		w.recordResolution(entry.req, StatusRejected)
		return task.Result{Success: true, Message: "rejected by approver"}, nil
	}

	entry.req.Status = StatusApproved
	w.recordResolution(entry.req, StatusApproved)
	if w.route == nil {
		return task.Result{Success: true, Message: "approved"}, nil
	}
	return w.route(ctx, entry.req.Task, entry.req.ProposedAction)
}

// handleTimeout fires when a Request's timer expires without a response.
// Per invariant 4: if AutoExecuteOnTimeout is set, the transition to
// approved and the single execution it triggers are atomic with respect to
// a racing HandleApprovalResponse, because both paths go through the same
// pending-map removal under w.mu.
func (w *Workflow) handleTimeout(ctx context.Context, id string) {
	w.mu.Lock()
	entry, ok := w.pending[id]
	if ok {
		delete(w.pending, id)
	}
	w.mu.Unlock()

	if !ok {
		return // already resolved by a concurrent HandleApprovalResponse.
	}

	now := time.Now().UTC()
	entry.req.RespondedAt = now

	if entry.req.AutoExecuteOnTimeout {
		entry.req.Status = StatusApproved
		w.recordResolution(entry.req, StatusApproved)
		if w.route != nil {
			_, _ = w.route(ctx, entry.req.Task, entry.req.ProposedAction)
		}
		return
	}

	entry.req.Status = StatusTimedOut
	w.recordResolution(entry.req, StatusTimedOut)
}

// GetPendingApprovals returns a snapshot copy of all requests still pending.
func (w *Workflow) GetPendingApprovals() []Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Request, 0, len(w.pending))
	for _, e := range w.pending {
		out = append(out, *e.req)
	}
	return out
}
