package router

import (
	"context"
	"testing"

	"github.com/atlas-agent/atlas/internal/task"
	"github.com/atlas-agent/atlas/internal/worker"
)

type stubWorker struct{ name string }

func (s *stubWorker) Name() string { return s.name }
func (s *stubWorker) Run(_ context.Context, _ task.Task) (task.Result, error) {
	return task.Result{Success: true}, nil
}
func (s *stubWorker) Analyze(_ context.Context, data map[string]any) map[string]any { return data }
func (s *stubWorker) Report(r task.Result) string                                   { return r.Message }

func snapshotOf(names ...string) map[string]worker.Worker {
	out := make(map[string]worker.Worker, len(names))
	for _, n := range names {
		out[n] = &stubWorker{name: n}
	}
	return out
}

func TestSelect_ExplicitTargetWins(t *testing.T) {
	r := New()
	snap := snapshotOf("coding-fixer", "security-bot")

	tk := task.Task{Description: "investigate a breach", TargetWorker: "coding-fixer"}
	name, method := r.Select(tk, snap)

	if method != MethodExplicit {
		t.Errorf("method = %q, want explicit", method)
	}
	if name != "coding-fixer" {
		t.Errorf("name = %q, want coding-fixer despite security keywords", name)
	}
}

func TestSelect_ExplicitTargetMissingFallsBackToKeywords(t *testing.T) {
	r := New()
	snap := snapshotOf("security-bot")

	tk := task.Task{Description: "possible breach detected", TargetWorker: "nonexistent"}
	name, method := r.Select(tk, snap)

	if method != MethodKeyword {
		t.Errorf("method = %q, want keyword", method)
	}
	if name != "security-bot" {
		t.Errorf("name = %q, want security-bot", name)
	}
}

func TestSelect_KeywordMatch(t *testing.T) {
	r := New()
	snap := snapshotOf("coding-fixer", "security-bot")

	tk := task.Task{Description: "fix the failing build"}
	name, method := r.Select(tk, snap)

	if method != MethodKeyword {
		t.Errorf("method = %q, want keyword", method)
	}
	if name != "coding-fixer" {
		t.Errorf("name = %q, want coding-fixer", name)
	}
}

func TestSelect_NoMatch(t *testing.T) {
	r := New()
	snap := snapshotOf("coding-fixer")

	tk := task.Task{Description: "nothing relevant here whatsoever"}
	name, method := r.Select(tk, snap)

	if method != MethodNone || name != "" {
		t.Errorf("got (%q, %q), want (\"\", none)", name, method)
	}
}

func TestSelect_NoRegisteredWorkerForMatchedCategory(t *testing.T) {
	r := New()
	snap := snapshotOf("marketing-bot")

	tk := task.Task{Description: "investigate a security breach"}
	name, method := r.Select(tk, snap)

	if method != MethodNone || name != "" {
		t.Errorf("got (%q, %q), want none: no worker name contains 'security'", name, method)
	}
}

func TestSelect_TieBreaksByDeclarationOrder(t *testing.T) {
	r := New()
	// "server" scores server_monitor, "code" scores coding. Description
	// mentions one keyword from each; server_monitor is declared earlier.
	snap := snapshotOf("server_monitor-ops", "coding-fixer")

	tk := task.Task{Description: "server code issue"}
	name, _ := r.Select(tk, snap)

	if name != "server_monitor-ops" {
		t.Errorf("name = %q, want server_monitor-ops (earlier category wins equal score)", name)
	}
}

func TestSelect_WorkerNameLexicographicTieBreak(t *testing.T) {
	r := New()
	snap := snapshotOf("coding-zeta", "coding-alpha")

	tk := task.Task{Description: "fix this bug"}
	name, _ := r.Select(tk, snap)

	if name != "coding-alpha" {
		t.Errorf("name = %q, want lexicographically smallest coding-alpha", name)
	}
}

func TestNewWithCategories(t *testing.T) {
	tags := map[string][]string{"custom": {"widget"}}
	r := NewWithCategories(tags, []string{"custom"})
	snap := snapshotOf("custom-worker")

	tk := task.Task{Description: "the widget is broken"}
	name, method := r.Select(tk, snap)

	if method != MethodKeyword || name != "custom-worker" {
		t.Errorf("got (%q, %q)", name, method)
	}
}
