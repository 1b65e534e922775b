package notifier

import (
	"context"
	"sync"
)

// Memory is an in-memory Notifier double used by coordinator/approval
// tests. Notify calls are recorded; Ask replies are pre-programmed or can
// be queued by a test via QueueReply.
type Memory struct {
	mu        sync.Mutex
	Notified  []string
	Asked     []AskCall
	replies   map[int]string
	nextAskID int
}

// AskCall records one Ask invocation for test assertions.
type AskCall struct {
	Text    string
	Buttons []Button
}

// NewMemory creates an in-memory Notifier double.
func NewMemory() *Memory {
	return &Memory{replies: make(map[int]string)}
}

// Notify records the message and always succeeds.
func (m *Memory) Notify(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notified = append(m.Notified, text)
	return nil
}

// Ask records the call and returns the reply queued via QueueReply for this
// call index, defaulting to the first button's callback ID if none was
// queued.
func (m *Memory) Ask(_ context.Context, text string, buttons []Button) (string, error) {
	m.mu.Lock()
	id := m.nextAskID
	m.nextAskID++
	m.Asked = append(m.Asked, AskCall{Text: text, Buttons: buttons})
	reply, ok := m.replies[id]
	m.mu.Unlock()

	if ok {
		return reply, nil
	}
	if len(buttons) > 0 {
		return buttons[0].CallbackID, nil
	}
	return "", nil
}

// QueueReply pre-programs the reply for the Nth (0-indexed) Ask call.
func (m *Memory) QueueReply(callIndex int, callbackID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[callIndex] = callbackID
}
