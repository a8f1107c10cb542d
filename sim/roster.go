package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/daysim/daysim/sim/trace"
)

// RosterConfig groups the construction parameters of a Roster.
type RosterConfig struct {
	HaltOnFault bool
	Metrics     *Metrics
	Trace       *trace.ResolutionTrace // one PhaseRecord per CompletePhase; may be nil
}

// Roster is the coordinator of the decentralized layout: agents keep their own
// work in AgentServers and the roster only tracks who has something to
// resolve. It implements Notifier.
type Roster struct {
	*DayDriver

	dispatcher *Dispatcher
	trace      *trace.ResolutionTrace // written by the driving goroutine only

	// owned by the dispatcher goroutine
	members    []PhaseAgent
	performers [NumPhases][]PhaseAgent
	performing [NumPhases]map[AgentID]bool
	effects    []PhaseAgent
	hasEffects map[AgentID]bool
}

// NewRoster creates a roster and starts its dispatcher.
func NewRoster(cfg RosterConfig) *Roster {
	r := &Roster{
		dispatcher: NewDispatcher("roster"),
		trace:      cfg.Trace,
		hasEffects: make(map[AgentID]bool),
	}
	for i := range r.performing {
		r.performing[i] = make(map[AgentID]bool)
	}
	r.DayDriver = NewDayDriver(r, DriverOptions{HaltOnFault: cfg.HaltOnFault, Metrics: cfg.Metrics})
	r.dispatcher.Start(context.Background())
	return r
}

// Close stops the roster's dispatcher.
func (r *Roster) Close() {
	r.dispatcher.Stop()
}

// Join adds a to the members synced before every effect step.
func (r *Roster) Join(a PhaseAgent) {
	r.dispatcher.Submit(func() {
		for _, m := range r.members {
			if m.ID() == a.ID() {
				return
			}
		}
		r.members = append(r.members, a)
	})
}

// Leave forgets a entirely.
func (r *Roster) Leave(a PhaseAgent) {
	r.dispatcher.Submit(func() {
		id := a.ID()
		r.members = without(r.members, id)
		for p := range r.performers {
			if r.performing[p][id] {
				r.performers[p] = without(r.performers[p], id)
				delete(r.performing[p], id)
			}
		}
		if r.hasEffects[id] {
			r.effects = without(r.effects, id)
			delete(r.hasEffects, id)
		}
	})
}

// NotifyActions records that a has recurring actions for phase. Panics on an
// invalid phase.
func (r *Roster) NotifyActions(a PhaseAgent, phase Phase) {
	if !phase.IsValid() {
		panic(fmt.Sprintf("NotifyActions: invalid phase %d", int(phase)))
	}
	r.dispatcher.Submit(func() {
		if r.performing[phase][a.ID()] {
			return
		}
		r.performing[phase][a.ID()] = true
		r.performers[phase] = append(r.performers[phase], a)
	})
}

// NotifyEffects records that a has pending effects.
func (r *Roster) NotifyEffects(a PhaseAgent) {
	r.dispatcher.Submit(func() {
		if r.hasEffects[a.ID()] {
			return
		}
		r.hasEffects[a.ID()] = true
		r.effects = append(r.effects, a)
	})
}

// CompletePhase asks every performer of phase to resolve its actions, then
// every agent with pending effects to resolve them.
//
// Every member is synced before each step: registrations already queued at
// the agents are applied, and the notifications they trigger reach this
// roster before the step reads its lists.
func (r *Roster) CompletePhase(ctx context.Context, phase Phase) error {
	if err := phase.check(); err != nil {
		return err
	}
	day := r.Day()
	start := time.Now()

	if err := r.syncMembers(ctx); IsInterrupted(err) {
		return &PhaseError{Day: day, Phase: phase, Err: err}
	}

	var nActions, nEffects atomic.Int64
	actionErr := Call(ctx, r.dispatcher, func() error {
		cctx := context.WithoutCancel(ctx)
		performers := append([]PhaseAgent(nil), r.performers[phase]...)
		members := append([]PhaseAgent(nil), r.members...)
		err := fanOut(performers, func(a PhaseAgent) error {
			n, err := a.ResolveActions(cctx, phase)
			nActions.Add(int64(n))
			return err
		})
		if syncErr := fanOut(members, func(a PhaseAgent) error { return a.Sync(cctx) }); syncErr != nil {
			err = errors.Join(err, syncErr)
		}
		return err
	})
	if IsInterrupted(actionErr) {
		return &PhaseError{Day: day, Phase: phase, Err: actionErr}
	}

	var nAgents int
	effectErr := Call(ctx, r.dispatcher, func() error {
		cctx := context.WithoutCancel(ctx)
		agents := r.effects
		r.effects = nil
		r.hasEffects = make(map[AgentID]bool)
		nAgents = len(agents)
		return fanOut(agents, func(a PhaseAgent) error {
			n, err := a.ResolveEffects(cctx, phase)
			nEffects.Add(int64(n))
			return err
		})
	})
	if IsInterrupted(effectErr) {
		return &PhaseError{Day: day, Phase: phase, Err: effectErr}
	}

	err := errors.Join(actionErr, effectErr)
	failures := Failures(err)
	r.trace.RecordPhase(trace.PhaseRecord{
		Day:      day,
		Phase:    phase.String(),
		Actions:  int(nActions.Load()),
		Agents:   nAgents,
		Effects:  int(nEffects.Load()),
		Failures: len(failures),
		Elapsed:  time.Since(start),
	})
	for _, f := range failures {
		r.trace.RecordFault(faultRecord(day, phase, f))
	}
	logrus.WithFields(logrus.Fields{"day": day, "phase": phase}).
		Debugf("resolved %d action(s), %d effect(s) across %d agent(s)", nActions.Load(), nEffects.Load(), nAgents)

	if err != nil {
		return &PhaseError{Day: day, Phase: phase, Err: err}
	}
	return nil
}

// syncMembers waits until every member has applied the registrations queued
// before this call.
func (r *Roster) syncMembers(ctx context.Context) error {
	var members []PhaseAgent
	err := Call(ctx, r.dispatcher, func() error {
		members = append([]PhaseAgent(nil), r.members...)
		return nil
	})
	if err != nil {
		return err
	}
	return fanOut(members, func(a PhaseAgent) error { return a.Sync(ctx) })
}

// fanOut calls fn for every agent concurrently and joins all failures.
// Agents whose dispatcher has stopped are skipped.
func fanOut(agents []PhaseAgent, fn func(PhaseAgent) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, a := range agents {
		g.Go(func() error {
			err := fn(a)
			switch {
			case err == nil:
			case errors.Is(err, ErrDispatcherStopped):
				logrus.WithField("agent", a.ID()).Debug("skipping agent that turned off")
			default:
				mu.Lock()
				errs = append(errs, fmt.Errorf("agent %s: %w", a.ID(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func without(agents []PhaseAgent, id AgentID) []PhaseAgent {
	out := agents[:0]
	for _, a := range agents {
		if a.ID() != id {
			out = append(out, a)
		}
	}
	return out
}
