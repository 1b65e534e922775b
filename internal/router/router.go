// Package router implements ATLAS's keyword-based routing engine: explicit
// target override, then keyword-category scoring, then no-match.
package router

import (
	"strings"

	"github.com/atlas-agent/atlas/internal/task"
	"github.com/atlas-agent/atlas/internal/worker"
)

// Method identifies how a worker was selected for a Task.
type Method string

const (
	MethodExplicit Method = "explicit"
	MethodKeyword  Method = "keyword"
	MethodNone     Method = "none"
)

// category pairs a worker-type tag with the fixed keyword set that scores
// it. Declaration order is the tie-break order.
type category struct {
	tag      string
	keywords []string
}

// defaultCategories mirrors the worker-type vocabulary used across the
// original agent set (security, server monitoring, communication, research,
// marketing, coding, analysis, creative).
var defaultCategories = []category{
	{tag: "security", keywords: []string{"security", "vulnerability", "breach", "exploit", "firewall", "intrusion", "malware", "cve"}},
	{tag: "server_monitor", keywords: []string{"server", "cpu", "memory", "disk", "uptime", "restart", "service", "nginx", "outage"}},
	{tag: "communication", keywords: []string{"email", "message", "notify", "chat", "slack", "reply", "inbox"}},
	{tag: "research", keywords: []string{"research", "investigate", "lookup", "find", "search", "gather"}},
	{tag: "marketing", keywords: []string{"campaign", "marketing", "ad", "promotion", "social", "brand"}},
	{tag: "coding", keywords: []string{"code", "bug", "refactor", "deploy", "build", "compile", "function", "test"}},
	{tag: "analysis", keywords: []string{"analyze", "report", "metric", "trend", "summary", "statistics"}},
	{tag: "creative", keywords: []string{"design", "draft", "write", "creative", "idea", "content"}},
}

// Router selects a worker for a Task. It is pure with respect to the
// registry snapshot it is given — it performs no side effect.
type Router struct {
	categories []category
}

// New creates a Router using the default keyword-category table.
func New() *Router {
	return &Router{categories: defaultCategories}
}

// NewWithCategories builds a Router over a caller-supplied category order;
// declaration order in the slice remains the tie-break order.
func NewWithCategories(tags map[string][]string, order []string) *Router {
	cats := make([]category, 0, len(order))
	for _, tag := range order {
		cats = append(cats, category{tag: tag, keywords: tags[tag]})
	}
	return &Router{categories: cats}
}

// Select resolves the worker for a Task against a registry snapshot.
// Invariant 6: an explicit target_worker always wins, even if a registered
// worker name would otherwise score higher on keywords.
func (r *Router) Select(t task.Task, snapshot map[string]worker.Worker) (string, Method) {
	if t.TargetWorker != "" {
		if _, ok := snapshot[t.TargetWorker]; ok {
			return t.TargetWorker, MethodExplicit
		}
	}

	tokens := tokenize(t.Description)
	bestTag := ""
	bestScore := 0
	for _, cat := range r.categories {
		score := scoreCategory(cat, tokens)
		if score > bestScore {
			name, ok := workerForCategory(cat.tag, snapshot)
			if ok {
				bestScore = score
				bestTag = name
			}
		}
	}
	if bestTag == "" {
		return "", MethodNone
	}
	return bestTag, MethodKeyword
}

func scoreCategory(cat category, tokens map[string]struct{}) int {
	score := 0
	for _, kw := range cat.keywords {
		if _, ok := tokens[kw]; ok {
			score++
		}
	}
	return score
}

// workerForCategory finds a registered worker whose name contains the
// category tag. Map iteration order is non-deterministic in Go, so ties
// within a category are broken by the lexicographically smallest worker
// name to keep selection deterministic.
func workerForCategory(tag string, snapshot map[string]worker.Worker) (string, bool) {
	best := ""
	for name := range snapshot {
		if strings.Contains(name, tag) {
			if best == "" || name < best {
				best = name
			}
		}
	}
	return best, best != ""
}

func tokenize(description string) map[string]struct{} {
	lower := strings.ToLower(description)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
