package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atlas-agent/atlas/internal/approval"
	"github.com/atlas-agent/atlas/internal/audit"
	"github.com/atlas-agent/atlas/internal/coordinator"
	"github.com/atlas-agent/atlas/internal/decision"
	"github.com/atlas-agent/atlas/internal/notifier"
	"github.com/atlas-agent/atlas/internal/router"
	"github.com/atlas-agent/atlas/internal/task"
	"github.com/atlas-agent/atlas/internal/worker"
)

type stubWorker struct{ name string }

func (w *stubWorker) Name() string { return w.name }
func (w *stubWorker) Run(_ context.Context, _ task.Task) (task.Result, error) {
	return task.Result{Success: true, Message: "ok"}, nil
}
func (w *stubWorker) Analyze(_ context.Context, data map[string]any) map[string]any { return data }
func (w *stubWorker) Report(r task.Result) string                                   { return r.Message }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := worker.NewRegistry()
	registry.Register(&stubWorker{name: "coding-fixer"})

	r := router.New()
	matrix := decision.New(decision.DefaultGateConfig(), nil)
	trail := audit.New(50)
	mem := notifier.NewMemory()

	coord := coordinator.New(registry, r, matrix, trail, mem)
	approvalWF := approval.New(mem, coord.RouteAction)
	coord.Approval = approvalWF

	s := New("127.0.0.1:0", coord, approvalWF)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHandleTask_ValidRequest(t *testing.T) {
	srv := newTestServer(t)
	body := `{"description":"routine check","risk":"low","urgency":"low"}`
	resp, err := http.Post(srv.URL+"/task", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /task: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success {
		t.Errorf("Success = %v, want true", out.Success)
	}
}

func TestHandleTask_InvalidRiskRejected(t *testing.T) {
	srv := newTestServer(t)
	body := `{"description":"x","risk":"critical","urgency":"low"}`
	resp, err := http.Post(srv.URL+"/task", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /task: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleTask_MalformedJSONRejected(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/task", "application/json", bytes.NewBufferString("not json"))
	if err != nil {
		t.Fatalf("POST /task: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlePendingApprovals_EmptyByDefault(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/approval")
	if err != nil {
		t.Fatalf("GET /approval: %v", err)
	}
	defer resp.Body.Close()

	var pending []approval.Request
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestHandleApprove_UnknownIDReturns404(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/approval/nonexistent/approve", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /approval/.../approve: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAddr_ReflectsLiveListener(t *testing.T) {
	registry := worker.NewRegistry()
	r := router.New()
	matrix := decision.New(decision.DefaultGateConfig(), nil)
	trail := audit.New(10)
	mem := notifier.NewMemory()
	coord := coordinator.New(registry, r, matrix, trail, mem)
	approvalWF := approval.New(mem, coord.RouteAction)

	s := New("127.0.0.1:0", coord, approvalWF)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if s.Addr() == "127.0.0.1:0" {
		t.Error("Addr() should reflect the OS-assigned port once listening")
	}
	cancel()
	<-errCh
}
