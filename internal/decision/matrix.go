// Package decision implements the tri-axis decision matrix: (risk, urgency)
// → (action, confidence), with mutable rules, a tamper-evident change log,
// and the uncertainty-driven confidence gate.
package decision

import (
	"fmt"
	"sync"
	"time"

	"github.com/atlas-agent/atlas/internal/task"
	"github.com/atlas-agent/atlas/internal/uncertainty"
	"github.com/google/uuid"
)

// Rule is a single cell of the decision matrix.
type Rule struct {
	Action     task.Action
	Confidence float64
}

// RuleChange is an immutable audit record of a rule mutation. RuleChanges
// are never deleted — they form the tamper-evident trail even across
// ResetRules.
type RuleChange struct {
	ID         string
	Risk       task.Risk
	Urgency    task.Urgency
	OldAction  task.Action
	NewAction  task.Action
	OldConf    float64
	NewConf    float64
	Actor      string
	ChangedAt  time.Time
}

type cellKey struct {
	risk    task.Risk
	urgency task.Urgency
}

// fallback is returned for any (risk, urgency) pair missing from the table.
var fallback = Rule{Action: task.ActionNotify, Confidence: 0.5}

func defaultRules() map[cellKey]Rule {
	return map[cellKey]Rule{
		{task.RiskLow, task.UrgencyLow}:       {task.ActionLog, 0.95},
		{task.RiskLow, task.UrgencyMedium}:    {task.ActionLog, 0.90},
		{task.RiskLow, task.UrgencyHigh}:      {task.ActionNotify, 0.85},
		{task.RiskMedium, task.UrgencyLow}:    {task.ActionNotify, 0.85},
		{task.RiskMedium, task.UrgencyMedium}: {task.ActionNotify, 0.80},
		{task.RiskMedium, task.UrgencyHigh}:   {task.ActionAutoFix, 0.75},
		{task.RiskHigh, task.UrgencyLow}:      {task.ActionNotify, 0.80},
		{task.RiskHigh, task.UrgencyMedium}:   {task.ActionAutoFix, 0.70},
		{task.RiskHigh, task.UrgencyHigh}:     {task.ActionImmediate, 0.90},
	}
}

// GateConfig holds the confidence-gate tunables.
type GateConfig struct {
	Threshold     float64 // default 0.6
	RiskTolerance float64 // default 0.5
}

// DefaultGateConfig returns the default threshold/tolerance.
func DefaultGateConfig() GateConfig {
	return GateConfig{Threshold: 0.6, RiskTolerance: 0.5}
}

// BeliefNetwork is the optional Bayesian-style posterior propagator. The
// core only depends on this narrow interface; concrete implementations live
// outside the core.
type BeliefNetwork interface {
	Propagate(evidence []string) map[string]float64
}

// Matrix is the decision matrix: rules, guarded by a single mutex, plus an
// independently-guarded append-only change log.
type Matrix struct {
	mu    sync.Mutex
	rules map[cellKey]Rule

	logMu sync.Mutex
	log   []RuleChange

	gate       GateConfig
	aggregator uncertainty.Aggregator
	beliefNet  BeliefNetwork
}

// New creates a Matrix with the built-in default rule table.
func New(gate GateConfig, aggregator uncertainty.Aggregator) *Matrix {
	if aggregator == nil {
		aggregator = uncertainty.Mean{}
	}
	return &Matrix{
		rules:      defaultRules(),
		gate:       gate,
		aggregator: aggregator,
	}
}

// SetBeliefNetwork installs an optional Bayesian-style belief propagator
// used when a Task carries evidence.
func (m *Matrix) SetBeliefNetwork(bn BeliefNetwork) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beliefNet = bn
}

func riskWeight(r task.Risk) float64 {
	switch r {
	case task.RiskLow:
		return 0.2
	case task.RiskMedium:
		return 0.5
	case task.RiskHigh:
		return 0.9
	default:
		return 0.5
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Evaluate produces exactly one Decision for a Task.
func (m *Matrix) Evaluate(t task.Task) task.Decision {
	m.mu.Lock()
	rule, ok := m.rules[cellKey{t.Risk, t.Urgency}]
	m.mu.Unlock()
	if !ok {
		rule = fallback
	}

	action := rule.Action
	confidence := rule.Confidence
	reasonParts := []string{fmt.Sprintf("matrix(%s,%s)=(%s,%.2f)", t.Risk, t.Urgency, rule.Action, rule.Confidence)}

	rw := riskWeight(t.Risk)

	gated := false
	var aggregated float64

	if len(t.Evidence) > 0 && m.beliefNetInstalled() {
		posteriors := m.beliefNet.Propagate(t.Evidence)
		confs := make([]float64, 0, len(posteriors))
		for _, v := range posteriors {
			confs = append(confs, v)
		}
		aggregated = m.aggregator.Aggregate(confs)
		gated = true
		reasonParts = append(reasonParts, fmt.Sprintf("evidence_aggregated=%.2f", aggregated))
	} else if len(t.Beliefs) > 0 {
		confs := make([]float64, 0, len(t.Beliefs))
		for _, v := range t.Beliefs {
			confs = append(confs, v)
		}
		aggregated = m.aggregator.Aggregate(confs)
		gated = true
		reasonParts = append(reasonParts, fmt.Sprintf("belief_aggregated=%.2f", aggregated))
	}

	if gated {
		permitted := uncertainty.ShouldAct(aggregated, rw, m.gate.Threshold, m.gate.RiskTolerance)
		reasonParts = append(reasonParts, fmt.Sprintf("gate_permitted=%v", permitted))
		if !permitted && (action == task.ActionAutoFix || action == task.ActionImmediate) {
			action = task.ActionNotify
			confidence = confidence * aggregated
			reasonParts = append(reasonParts, "downgraded_to_notify")
		}
	}

	return task.Decision{
		Risk:       t.Risk,
		Urgency:    t.Urgency,
		Action:     action,
		Confidence: clamp01(confidence),
		Reason:     joinReason(reasonParts),
	}
}

func (m *Matrix) beliefNetInstalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beliefNet != nil
}

func joinReason(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "; " + p
	}
	return out
}

// UpdateRule mutates a cell, clamping confidence to [0,1], and appends
// exactly one RuleChange whose (old_action, old_confidence) equals the
// pre-update table value.
func (m *Matrix) UpdateRule(risk task.Risk, urgency task.Urgency, newAction task.Action, newConf float64, actor string) RuleChange {
	newConf = clamp01(newConf)
	key := cellKey{risk, urgency}

	m.mu.Lock()
	old, ok := m.rules[key]
	if !ok {
		old = fallback
	}
	m.rules[key] = Rule{Action: newAction, Confidence: newConf}
	m.mu.Unlock()

	change := RuleChange{
		ID:        uuid.NewString(),
		Risk:      risk,
		Urgency:   urgency,
		OldAction: old.Action,
		NewAction: newAction,
		OldConf:   old.Confidence,
		NewConf:   newConf,
		Actor:     actor,
		ChangedAt: time.Now().UTC(),
	}

	m.logMu.Lock()
	m.log = append(m.log, change)
	m.logMu.Unlock()

	return change
}

// ResetRules restores the built-in defaults without touching the change
// log.
func (m *Matrix) ResetRules() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = defaultRules()
}

// ChangeLog returns a snapshot copy of the rule-change history.
func (m *Matrix) ChangeLog() []RuleChange {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	out := make([]RuleChange, len(m.log))
	copy(out, m.log)
	return out
}

// ExplainDecision returns a multi-line human-readable trace of evaluating t,
// without mutating any state.
func (m *Matrix) ExplainDecision(t task.Task) string {
	d := m.Evaluate(t)
	return fmt.Sprintf("task(risk=%s, urgency=%s)\n-> %s\n-> action=%s confidence=%.2f",
		t.Risk, t.Urgency, d.Reason, d.Action, d.Confidence)
}
