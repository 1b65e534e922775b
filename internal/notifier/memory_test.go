package notifier

import (
	"context"
	"testing"
)

func TestMemory_Notify_Records(t *testing.T) {
	m := NewMemory()
	if err := m.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(m.Notified) != 1 || m.Notified[0] != "hello" {
		t.Errorf("Notified = %v", m.Notified)
	}
}

func TestMemory_Ask_DefaultsToFirstButton(t *testing.T) {
	m := NewMemory()
	buttons := []Button{{Label: "Approve", CallbackID: "approve_x"}, {Label: "Reject", CallbackID: "reject_x"}}

	cb, err := m.Ask(context.Background(), "approve?", buttons)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if cb != "approve_x" {
		t.Errorf("callback = %q, want first button's ID", cb)
	}
}

func TestMemory_Ask_QueuedReply(t *testing.T) {
	m := NewMemory()
	m.QueueReply(0, "reject_x")
	buttons := []Button{{Label: "Approve", CallbackID: "approve_x"}, {Label: "Reject", CallbackID: "reject_x"}}

	cb, err := m.Ask(context.Background(), "approve?", buttons)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if cb != "reject_x" {
		t.Errorf("callback = %q, want queued reply", cb)
	}
}

func TestMemory_Ask_RecordsCall(t *testing.T) {
	m := NewMemory()
	buttons := []Button{{Label: "Approve", CallbackID: "approve_x"}}
	m.Ask(context.Background(), "text", buttons)

	if len(m.Asked) != 1 || m.Asked[0].Text != "text" {
		t.Errorf("Asked = %v", m.Asked)
	}
}
