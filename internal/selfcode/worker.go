package selfcode

import (
	"context"
	"fmt"

	"github.com/atlas-agent/atlas/internal/task"
)

// WorkerName is the registry name the coordinator and router use to reach
// the self-coding pipeline: a task of kind "code request" dispatched to the
// code-meta worker.
const WorkerName = "code-meta"

// CodeMetaWorker adapts Pipeline to the worker.Worker contract so it can be
// registered and dispatched like any other worker.
type CodeMetaWorker struct {
	pipeline *Pipeline
}

// NewWorker wraps pipeline as a dispatchable worker.
func NewWorker(pipeline *Pipeline) *CodeMetaWorker {
	return &CodeMetaWorker{pipeline: pipeline}
}

func (w *CodeMetaWorker) Name() string { return WorkerName }

// Run decodes a SelfCodeRequest out of t.Payload and drives the pipeline.
// A Task that doesn't carry a "description" payload field is a caller
// error, not a pipeline failure, and is rejected before the pipeline runs.
func (w *CodeMetaWorker) Run(ctx context.Context, t task.Task) (task.Result, error) {
	req, err := requestFromPayload(t.Payload)
	if err != nil {
		return task.Result{Success: false, Errors: []string{err.Error()}}, nil
	}

	result := w.pipeline.Run(ctx, req)
	analysis := w.Analyze(ctx, map[string]any{
		"stages_completed": result.StagesCompleted,
		"artifacts":        result.Artifacts,
		"duration_ms":      result.Duration.Milliseconds(),
	})

	if !result.Success {
		return task.Result{
			Success: false,
			Message: fmt.Sprintf("self-coding pipeline halted after stages %v", result.StagesCompleted),
			Errors:  result.Errors,
			Data:    analysis,
		}, nil
	}
	return task.Result{
		Success: true,
		Message: fmt.Sprintf("self-coding pipeline completed stages %v", result.StagesCompleted),
		Data:    analysis,
	}, nil
}

// Analyze classifies the raw pipeline artifacts into the summary fields
// every worker surfaces in Result.Data["analysis"].
func (w *CodeMetaWorker) Analyze(_ context.Context, data map[string]any) map[string]any {
	data["analysis"] = "self-coding pipeline stage trace"
	return data
}

func (w *CodeMetaWorker) Report(result task.Result) string {
	if result.Success {
		return "self-coding pipeline: " + result.Message
	}
	return fmt.Sprintf("self-coding pipeline failed: %v", result.Errors)
}

// requestFromPayload decodes the loosely-typed Task.Payload map (as it
// arrives from JSON via the HTTP boundary) into a self-coding Request.
func requestFromPayload(payload map[string]any) (Request, error) {
	description, _ := payload["description"].(string)
	if description == "" {
		return Request{}, fmt.Errorf("selfcode: payload missing required \"description\" field")
	}

	req := Request{Description: description}
	if v, ok := payload["context"].(string); ok {
		req.Context = v
	}
	if v, ok := payload["language"].(string); ok {
		req.Language = v
	}
	if v, ok := payload["require_tests"].(bool); ok {
		req.RequireTests = v
	}
	switch v := payload["max_iterations"].(type) {
	case float64:
		req.MaxIterations = int(v)
	case int:
		req.MaxIterations = v
	}
	return req, nil
}
