// sim/schedule.go
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daysim/daysim/sim/trace"
)

// ScheduleConfig groups the construction parameters of a Schedule.
type ScheduleConfig struct {
	Name        string // dispatcher name in logs (default "schedule")
	Workers     int    // pool size when no pool is supplied; <= 0 uses GOMAXPROCS
	HaltOnFault bool   // see DriverOptions.HaltOnFault
}

// Option customizes a Schedule.
type Option func(*Schedule)

// WithPool runs bodies on p instead of a private pool.
func WithPool(p *Pool) Option {
	return func(s *Schedule) { s.pool = p }
}

// WithMetrics records resolution metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Schedule) { s.metrics = m }
}

// WithTrace records one trace.PhaseRecord per phase resolution on rt.
func WithTrace(rt *trace.ResolutionTrace) Option {
	return func(s *Schedule) { s.trace = rt }
}

// Schedule is the central coordinator. It owns every registered action and
// pending effect, and resolves them phase by phase.
//
// Registration is fire-and-forget and safe from any goroutine, including
// action and effect bodies. Resolution is synchronous and must be driven
// from a single goroutine that is not itself a body of this schedule.
type Schedule struct {
	*DayDriver

	name       string
	dispatcher *Dispatcher
	pool       *Pool
	metrics    *Metrics
	trace      *trace.ResolutionTrace // written by the driving goroutine only

	// owned by the dispatcher goroutine
	actions     [NumPhases][]Action
	effects     map[AgentID][]Effect
	effectOrder []AgentID
}

// NewSchedule creates a schedule and starts its dispatcher.
func NewSchedule(cfg ScheduleConfig, opts ...Option) *Schedule {
	if cfg.Name == "" {
		cfg.Name = "schedule"
	}
	s := &Schedule{
		name:    cfg.Name,
		effects: make(map[AgentID][]Effect),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = NewPool(cfg.Workers)
	}
	s.DayDriver = NewDayDriver(s, DriverOptions{HaltOnFault: cfg.HaltOnFault, Metrics: s.metrics})
	s.dispatcher = NewDispatcher(cfg.Name)
	s.dispatcher.Start(context.Background())
	return s
}

// Close stops the dispatcher. Registrations still queued are dropped.
func (s *Schedule) Close() {
	s.dispatcher.Stop()
}

// Pool returns the pool bodies run on.
func (s *Schedule) Pool() *Pool { return s.pool }

// RegisterRecurringAction adds action to phase's bucket; it will run at that
// phase every day from the next resolution on. Registering the same action
// twice makes it run twice. Panics on an invalid phase or nil action.
func (s *Schedule) RegisterRecurringAction(phase Phase, action Action) {
	if !phase.IsValid() {
		panic(fmt.Sprintf("RegisterRecurringAction: invalid phase %d", int(phase)))
	}
	if action == nil {
		panic("RegisterRecurringAction: nil action")
	}
	s.dispatcher.Submit(func() {
		s.actions[phase] = append(s.actions[phase], action)
	})
}

// RegisterEffect queues effect under agent for the next effect resolution.
func (s *Schedule) RegisterEffect(effect Effect, agent AgentID) {
	s.dispatcher.Submit(func() {
		if _, ok := s.effects[agent]; !ok {
			s.effectOrder = append(s.effectOrder, agent)
		}
		s.effects[agent] = append(s.effects[agent], effect)
	})
}

// ResolvePhaseActions runs phase's actions as one parallel batch and waits
// for all of them. Actions registered while the batch runs join the bucket
// afterwards. An invalid phase is an error.
func (s *Schedule) ResolvePhaseActions(ctx context.Context, phase Phase) error {
	if err := phase.check(); err != nil {
		return err
	}
	_, err := s.resolvePhaseActions(ctx, phase)
	return err
}

// ResolvePendingEffects drains the effect registry and resolves it: agents in
// parallel, each agent's effects sequentially by priority. Effects registered
// by running bodies are left for the next call.
func (s *Schedule) ResolvePendingEffects(ctx context.Context) error {
	_, _, err := s.resolvePendingEffects(ctx, AnyPhase)
	return err
}

// CompletePhase resolves phase's actions and then every pending effect,
// including the effects those actions registered.
func (s *Schedule) CompletePhase(ctx context.Context, phase Phase) error {
	if err := phase.check(); err != nil {
		return err
	}
	day := s.Day()
	start := time.Now()

	nActions, actionErr := s.resolvePhaseActions(ctx, phase)
	if IsInterrupted(actionErr) {
		return &PhaseError{Day: day, Phase: phase, Err: actionErr}
	}
	nAgents, nEffects, effectErr := s.resolvePendingEffects(ctx, phase)
	if IsInterrupted(effectErr) {
		return &PhaseError{Day: day, Phase: phase, Err: effectErr}
	}

	failures := Failures(errors.Join(actionErr, effectErr))
	s.trace.RecordPhase(trace.PhaseRecord{
		Day:      day,
		Phase:    phase.String(),
		Actions:  nActions,
		Agents:   nAgents,
		Effects:  nEffects,
		Failures: len(failures),
		Elapsed:  time.Since(start),
	})
	for _, f := range failures {
		s.trace.RecordFault(faultRecord(day, phase, f))
	}
	logrus.WithFields(logrus.Fields{"schedule": s.name, "day": day, "phase": phase}).
		Debugf("resolved %d action(s), %d effect(s) across %d agent(s)", nActions, nEffects, nAgents)

	if err := errors.Join(actionErr, effectErr); err != nil {
		return &PhaseError{Day: day, Phase: phase, Err: err}
	}
	return nil
}

// RegisteredActions reports the size of phase's bucket once every earlier
// registration has been applied.
func (s *Schedule) RegisteredActions(ctx context.Context, phase Phase) (int, error) {
	if err := phase.check(); err != nil {
		return 0, err
	}
	var n int
	err := Call(ctx, s.dispatcher, func() error {
		n = len(s.actions[phase])
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// PendingEffects reports how many effects wait for the next resolution.
func (s *Schedule) PendingEffects(ctx context.Context) (int, error) {
	var n int
	err := Call(ctx, s.dispatcher, func() error {
		for _, batch := range s.effects {
			n += len(batch)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Schedule) resolvePhaseActions(ctx context.Context, phase Phase) (int, error) {
	var n int
	err := Call(ctx, s.dispatcher, func() error {
		bucket := s.actions[phase]
		if len(bucket) == 0 {
			return nil
		}
		// the bucket may grow once this command returns; the batch may not
		snapshot := append([]Action(nil), bucket...)
		n = len(snapshot)

		start := time.Now()
		err := s.pool.Invoke(context.WithoutCancel(ctx), snapshot...)
		s.metrics.ObserveStep(phase, "actions", time.Since(start))
		s.metrics.AddRun(TaskAction, n)
		return s.label(phase, err, nil)
	})
	if IsInterrupted(err) {
		return 0, err
	}
	return n, err
}

func (s *Schedule) resolvePendingEffects(ctx context.Context, phase Phase) (int, int, error) {
	var agents, effects int
	err := Call(ctx, s.dispatcher, func() error {
		if len(s.effectOrder) == 0 {
			return nil
		}
		pending, order := s.effects, s.effectOrder
		s.effects = make(map[AgentID][]Effect)
		s.effectOrder = nil

		agents = len(order)
		for _, id := range order {
			effects += len(pending[id])
		}

		start := time.Now()
		failures := s.pool.run(context.WithoutCancel(ctx), len(order), func(i int, _ *Scope) error {
			batch := pending[order[i]]
			if ran, err := runEffects(batch); err != nil {
				return fmt.Errorf("effect %d of %d: %w", ran+1, len(batch), err)
			}
			return nil
		})
		s.metrics.ObserveStep(phase, "effects", time.Since(start))
		s.metrics.AddRun(TaskEffect, effects)
		return s.label(phase, batchError(failures, TaskEffect), order)
	})
	if IsInterrupted(err) {
		return 0, 0, err
	}
	return agents, effects, err
}

// label fills in the phase (and agent, for effect batches) of each failure,
// counts them and logs them.
func (s *Schedule) label(phase Phase, err error, order []AgentID) error {
	var batch *BatchError
	if !errors.As(err, &batch) {
		return err
	}
	for i := range batch.Failures {
		f := &batch.Failures[i]
		f.Phase = phase
		if f.Kind == TaskEffect && f.Index >= 0 && f.Index < len(order) {
			f.Agent = order[f.Index]
		}
		logrus.WithFields(logrus.Fields{"schedule": s.name, "phase": phase, "kind": f.Kind}).Warn(f.Error())
	}
	s.metrics.AddFailures(phase, batch.Failures)
	return batch
}

func faultRecord(day int, phase Phase, f TaskFailure) trace.FaultRecord {
	return trace.FaultRecord{
		Day:     day,
		Phase:   phase.String(),
		Kind:    string(f.Kind),
		Agent:   string(f.Agent),
		Index:   f.Index,
		Message: f.Err.Error(),
	}
}
