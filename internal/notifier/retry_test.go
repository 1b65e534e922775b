package notifier

import (
	"context"
	"errors"
	"testing"
)

type flakyNotifier struct {
	failuresBeforeSuccess int
	notifyCalls           int
	askCalls              int
}

func (f *flakyNotifier) Notify(_ context.Context, _ string) error {
	f.notifyCalls++
	if f.notifyCalls <= f.failuresBeforeSuccess {
		return errors.New("transient error")
	}
	return nil
}

func (f *flakyNotifier) Ask(_ context.Context, _ string, buttons []Button) (string, error) {
	f.askCalls++
	if f.askCalls <= f.failuresBeforeSuccess {
		return "", errors.New("transient error")
	}
	return buttons[0].CallbackID, nil
}

func TestRetrying_Notify_RecoversFromTransientFailure(t *testing.T) {
	inner := &flakyNotifier{failuresBeforeSuccess: 2}
	r := NewRetrying(inner)

	if err := r.Notify(context.Background(), "hi"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if inner.notifyCalls < 3 {
		t.Errorf("notifyCalls = %d, want at least 3 (2 failures + success)", inner.notifyCalls)
	}
}

func TestRetrying_Notify_GivesUpEventually(t *testing.T) {
	inner := &flakyNotifier{failuresBeforeSuccess: 1000}
	r := NewRetrying(inner)

	if err := r.Notify(context.Background(), "hi"); err == nil {
		t.Error("expected error after exhausting retries against a permanently failing notifier")
	}
}

func TestRetrying_Ask_ReturnsCallbackOnEventualSuccess(t *testing.T) {
	inner := &flakyNotifier{failuresBeforeSuccess: 1}
	r := NewRetrying(inner)
	buttons := []Button{{Label: "Approve", CallbackID: "approve_1"}}

	cb, err := r.Ask(context.Background(), "approve?", buttons)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if cb != "approve_1" {
		t.Errorf("callback = %q", cb)
	}
}
