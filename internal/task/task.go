// Package task defines the unit of work routed by the coordinator and the
// verdict attached to it.
package task

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Risk is the risk axis of the decision matrix.
type Risk string

// Urgency is the urgency axis of the decision matrix.
type Urgency string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"

	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Action is the verdict the decision matrix attaches to a Task.
type Action string

const (
	ActionLog       Action = "log"
	ActionNotify    Action = "notify"
	ActionAutoFix   Action = "auto_fix"
	ActionImmediate Action = "immediate"
)

// Request is the boundary-facing DTO accepted from HTTP, monitor ticks, or
// any other entry point. It is validated before becoming a Task.
type Request struct {
	Description   string             `json:"description" validate:"required"`
	Risk          string             `json:"risk" validate:"required,oneof=low medium high"`
	Urgency       string             `json:"urgency" validate:"required,oneof=low medium high"`
	TargetWorker  string             `json:"target_worker,omitempty"`
	Beliefs       map[string]float64 `json:"beliefs,omitempty"`
	Evidence      []string           `json:"evidence,omitempty"`
	Payload       map[string]any     `json:"payload,omitempty"`
	Source        string             `json:"source,omitempty"`
}

var validate = validator.New()

// Validate checks a Request against the boundary rules: unknown risk/urgency
// strings must be rejected here, before a Task ever reaches the coordinator.
func (r Request) Validate() error {
	return validate.Struct(r)
}

// Task is the immutable unit of work routed by the coordinator. Once
// accepted it is never mutated.
type Task struct {
	Description  string
	Risk         Risk
	Urgency      Urgency
	TargetWorker string
	Beliefs      map[string]float64
	Evidence     []string
	Payload      map[string]any
	// Source records which entry point produced the Task (http, monitor,
	// voice, schedule) for audit readability.
	Source    string
	CreatedAt time.Time
}

// FromRequest validates and converts a boundary Request into an immutable
// Task. Callers must call Validate (or rely on FromRequest's internal call)
// before the Task reaches the coordinator — an invalid risk/urgency never
// gets this far.
func FromRequest(r Request) (Task, error) {
	if err := r.Validate(); err != nil {
		return Task{}, err
	}
	return Task{
		Description:  r.Description,
		Risk:         Risk(r.Risk),
		Urgency:      Urgency(r.Urgency),
		TargetWorker: r.TargetWorker,
		Beliefs:      r.Beliefs,
		Evidence:     r.Evidence,
		Payload:      r.Payload,
		Source:       r.Source,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Decision is the verdict produced for a Task, exactly once per evaluation.
// It is downgraded in place only by the uncertainty gate.
type Decision struct {
	Risk       Risk
	Urgency    Urgency
	Action     Action
	Confidence float64
	Reason     string
}

// Result is the outcome of routing a Decision's action to a worker (or to
// the log/notify sinks). The coordinator always returns a Result, never an
// error — logic failures are carried inside it.
type Result struct {
	Success bool
	Message string
	Data    map[string]any
	Errors  []string
}
