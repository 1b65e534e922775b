// Package audit implements the append-only, bounded audit trail: one
// AuditEntry per decision taken.
package audit

import (
	"sync"
	"time"

	"github.com/atlas-agent/atlas/internal/observability"
	"github.com/atlas-agent/atlas/internal/router"
	"github.com/atlas-agent/atlas/internal/task"
	"github.com/google/uuid"
)

// DefaultMaxHistory is the default bound on the audit queue.
const DefaultMaxHistory = 1000

// Entry is one record per decision taken. Append-only; the queue holding
// these is bounded — oldest dropped on overflow.
type Entry struct {
	ID                string
	TaskDescription   string
	Risk              task.Risk
	Urgency           task.Urgency
	Action            task.Action
	Confidence        float64
	Reason            string
	SelectedWorker    string
	SelectionMethod   router.Method
	EscalatedFrom     task.Action
	OutcomeSuccess    bool
	CreatedAt         time.Time
}

// Store is an optional persistence sink an entry can also be mirrored to.
// The core contract does not depend on it — persistence is an add-on, not a
// requirement of the in-memory trail.
type Store interface {
	Append(e Entry) error
}

// Trail is the bounded, mutex-guarded audit queue.
type Trail struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	store   Store
	metrics *observability.Metrics
}

// New creates a Trail bounded at max entries (DefaultMaxHistory if max<=0).
func New(max int) *Trail {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	return &Trail{max: max}
}

// SetStore installs an optional secondary sink every appended Entry is also
// mirrored to. Append succeeds regardless of the sink's outcome — audit
// logging must never block or fail the pipeline it observes.
func (t *Trail) SetStore(s Store) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store = s
}

// SetMetrics installs the Prometheus collector set Append reports through. A nil *Metrics (the default) disables reporting.
func (t *Trail) SetMetrics(m *observability.Metrics) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics = m
}

// Append records a new Entry, popping the oldest if the queue is already at
// its bound. Returns the entry's generated ID.
func (t *Trail) Append(taskDesc string, risk task.Risk, urgency task.Urgency, action task.Action, confidence float64, reason, selectedWorker string, method router.Method, escalatedFrom task.Action) string {
	e := Entry{
		ID:              uuid.NewString(),
		TaskDescription: taskDesc,
		Risk:            risk,
		Urgency:         urgency,
		Action:          action,
		Confidence:      confidence,
		Reason:          reason,
		SelectedWorker:  selectedWorker,
		SelectionMethod: method,
		EscalatedFrom:   escalatedFrom,
		CreatedAt:       time.Now().UTC(),
	}

	t.mu.Lock()
	t.entries = append(t.entries, e)
	if len(t.entries) > t.max {
		t.entries = t.entries[len(t.entries)-t.max:]
	}
	depth := len(t.entries)
	store := t.store
	metrics := t.metrics
	t.mu.Unlock()

	if store != nil {
		_ = store.Append(e)
	}
	if metrics != nil {
		metrics.AuditEntriesTotal.Inc()
		metrics.AuditQueueDepth.Set(float64(depth))
	}

	return e.ID
}

// SetOutcome fills in the outcome success flag for a previously-appended
// entry, identified by ID, and re-mirrors the updated entry to the store
// (INSERT OR REPLACE on SQLiteStore) so a persisted row never freezes at
// its pre-outcome state.
func (t *Trail) SetOutcome(id string, success bool) {
	t.mu.Lock()
	var updated Entry
	found := false
	for i := range t.entries {
		if t.entries[i].ID == id {
			t.entries[i].OutcomeSuccess = success
			updated = t.entries[i]
			found = true
			break
		}
	}
	store := t.store
	t.mu.Unlock()

	if found && store != nil {
		_ = store.Append(updated)
	}
}

// SetEscalated records that id's entry was re-executed as action after an
// escalation, and re-mirrors the updated entry (including the outcome of
// that re-execution) to the store. Action is the action actually executed
// post-escalation, and EscalatedFrom preserves what it was promoted from.
func (t *Trail) SetEscalated(id string, action task.Action, success bool) {
	t.mu.Lock()
	var updated Entry
	found := false
	for i := range t.entries {
		if t.entries[i].ID == id {
			t.entries[i].EscalatedFrom = t.entries[i].Action
			t.entries[i].Action = action
			t.entries[i].OutcomeSuccess = success
			updated = t.entries[i]
			found = true
			break
		}
	}
	store := t.store
	t.mu.Unlock()

	if found && store != nil {
		_ = store.Append(updated)
	}
}

// Entries returns a snapshot copy of the audit queue, oldest first.
func (t *Trail) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the current number of entries held.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
