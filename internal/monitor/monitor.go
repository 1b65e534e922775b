// Package monitor implements the periodic check scheduler: each MonitorSpec
// owns a single-flight loop that synthesizes Tasks into the coordinator at a
// fixed interval.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atlas-agent/atlas/internal/observability"
	"github.com/atlas-agent/atlas/internal/task"
	"github.com/robfig/cron"
)

// DispatchFunc routes a synthesized Task through the coordinator.
type DispatchFunc func(ctx context.Context, t task.Task) (task.Result, error)

// Spec is one periodic check. Stateless between ticks aside from the
// next-fire time tracked internally by the Scheduler.
type Spec struct {
	Name          string
	Worker        string
	Description   string
	CheckInterval time.Duration
}

// Scheduler runs one goroutine per registered Spec.
type Scheduler struct {
	dispatch DispatchFunc
	logger   *observability.Logger
	metrics  *observability.Metrics

	mu    sync.Mutex
	specs map[string]*specState
	wg    sync.WaitGroup
}

type specState struct {
	spec     Spec
	schedule cron.Schedule
	mu       sync.Mutex
	inFlight bool
}

// New creates a Scheduler that dispatches synthesized Tasks via dispatch.
func New(dispatch DispatchFunc) *Scheduler {
	return &Scheduler{dispatch: dispatch, specs: make(map[string]*specState)}
}

// SetLogger installs the structured logger tick/drop/dispatch events are
// reported through. A nil logger (the default) disables logging.
func (s *Scheduler) SetLogger(l *observability.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

// SetMetrics installs the Prometheus collector set tick/drop counts are
// reported through. A nil *Metrics (the default) disables reporting.
func (s *Scheduler) SetMetrics(m *observability.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Register compiles the Spec's CheckInterval into a cron "@every" schedule
// (which both validates the interval and gives a Next(t) for the next-fire
// time) and adds it to the scheduler. Register must be called before Start.
func (s *Scheduler) Register(spec Spec) error {
	if spec.CheckInterval <= 0 {
		return fmt.Errorf("monitor %q: invalid interval %s: must be positive", spec.Name, spec.CheckInterval)
	}
	schedule, err := cron.Parse(fmt.Sprintf("@every %s", spec.CheckInterval))
	if err != nil {
		return fmt.Errorf("monitor %q: invalid interval %s: %w", spec.Name, spec.CheckInterval, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs[spec.Name] = &specState{spec: spec, schedule: schedule}
	return nil
}

// Start launches every registered Spec's loop. Graceful shutdown: cancelling
// ctx causes all loops to return within their own sleep granularity.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	states := make([]*specState, 0, len(s.specs))
	for _, st := range s.specs {
		states = append(states, st)
	}
	s.mu.Unlock()

	for _, st := range states {
		s.wg.Add(1)
		go s.loop(ctx, st)
	}
}

// Wait blocks until all monitor loops have drained after ctx is cancelled.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, st *specState) {
	defer s.wg.Done()
	next := st.schedule.Next(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			s.tick(ctx, st)
			next = st.schedule.Next(time.Now())
		}
	}
}

// tick runs a single check, guarded by the per-spec single-flight flag: a
// tick that finds the flag already set is dropped, not queued. Panics or
// errors inside the dispatch are logged and swallowed (fail open) so the
// loop always resumes at the next interval.
func (s *Scheduler) tick(ctx context.Context, st *specState) {
	s.mu.Lock()
	logger, metrics := s.logger, s.metrics
	s.mu.Unlock()

	st.mu.Lock()
	if st.inFlight {
		st.mu.Unlock()
		if logger != nil {
			logger.Warn("tick dropped, previous run still in flight", "spec", st.spec.Name)
		}
		if metrics != nil {
			metrics.MonitorDropsTotal.WithLabelValues(st.spec.Name).Inc()
		}
		return
	}
	st.inFlight = true
	st.mu.Unlock()

	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("tick panicked", "spec", st.spec.Name, "panic", fmt.Sprintf("%v", r))
		}
		st.mu.Lock()
		st.inFlight = false
		st.mu.Unlock()
	}()

	if metrics != nil {
		metrics.MonitorTicksTotal.WithLabelValues(st.spec.Name).Inc()
	}

	t := task.Task{
		Description:  st.spec.Description,
		Risk:         task.RiskLow,
		Urgency:      task.UrgencyLow,
		TargetWorker: st.spec.Worker,
		Source:       "monitor",
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := s.dispatch(ctx, t); err != nil && logger != nil {
		logger.Error("dispatch error", "spec", st.spec.Name, "error", err.Error())
	}
}
