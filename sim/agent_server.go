package sim

import (
	"context"
	"fmt"
	"time"
)

// PhaseAgent is an agent that keeps its own pending work and resolves it when
// a Roster calls back.
//
// Both resolve calls report how many bodies they took.
type PhaseAgent interface {
	ID() AgentID
	ResolveActions(ctx context.Context, phase Phase) (int, error)
	// ResolveEffects labels its metrics and failures with phase, which may
	// be AnyPhase.
	ResolveEffects(ctx context.Context, phase Phase) (int, error)
	// Sync returns once every registration submitted before the call has
	// been applied.
	Sync(ctx context.Context) error
}

// Notifier is told which agents have work to resolve.
type Notifier interface {
	Join(a PhaseAgent)
	Leave(a PhaseAgent)
	NotifyActions(a PhaseAgent, phase Phase)
	NotifyEffects(a PhaseAgent)
}

// AgentServer holds one agent's recurring actions and pending effects behind
// a private dispatcher. It reports itself to its Notifier the first time a
// bucket becomes non-empty.
type AgentServer struct {
	id         AgentID
	dispatcher *Dispatcher
	pool       *Pool
	metrics    *Metrics

	// owned by the dispatcher goroutine
	notifier Notifier
	actions  [NumPhases][]Action
	pending  []Effect
}

// NewAgentServer creates a server running bodies on pool and starts its
// dispatcher. Work can be registered before Start.
func NewAgentServer(id AgentID, pool *Pool, metrics *Metrics) *AgentServer {
	a := &AgentServer{
		id:         id,
		dispatcher: NewDispatcher(string(id)),
		pool:       pool,
		metrics:    metrics,
	}
	a.dispatcher.Start(context.Background())
	return a
}

// ID returns the agent key.
func (a *AgentServer) ID() AgentID { return a.id }

// Start attaches the server to n and reports any work registered so far.
// The join itself is issued from the caller, so it is ordered before any
// later call the caller makes on n.
func (a *AgentServer) Start(n Notifier) {
	n.Join(a)
	a.dispatcher.Submit(func() {
		a.notifier = n
		for p := range a.actions {
			if len(a.actions[p]) > 0 {
				n.NotifyActions(a, Phase(p))
			}
		}
		if len(a.pending) > 0 {
			n.NotifyEffects(a)
		}
	})
}

// TurnOff leaves the notifier and stops the dispatcher.
func (a *AgentServer) TurnOff() {
	done := make(chan struct{})
	a.dispatcher.Submit(func() {
		if a.notifier != nil {
			a.notifier.Leave(a)
		}
		close(done)
	})
	select {
	case <-done:
	case <-a.dispatcher.Done():
	}
	a.dispatcher.Stop()
}

// RegisterAction adds a recurring action for phase.
func (a *AgentServer) RegisterAction(phase Phase, action Action) {
	if !phase.IsValid() {
		panic(fmt.Sprintf("RegisterAction: invalid phase %d", int(phase)))
	}
	if action == nil {
		panic("RegisterAction: nil action")
	}
	a.dispatcher.Submit(func() {
		wasEmpty := len(a.actions[phase]) == 0
		a.actions[phase] = append(a.actions[phase], action)
		if wasEmpty && a.notifier != nil {
			a.notifier.NotifyActions(a, phase)
		}
	})
}

// RegisterEffect queues an effect for the next ResolveEffects.
func (a *AgentServer) RegisterEffect(effect Effect) {
	a.dispatcher.Submit(func() {
		wasEmpty := len(a.pending) == 0
		a.pending = append(a.pending, effect)
		if wasEmpty && a.notifier != nil {
			a.notifier.NotifyEffects(a)
		}
	})
}

// ResolveActions runs phase's actions as one parallel batch and waits for them.
// An invalid phase is an error.
func (a *AgentServer) ResolveActions(ctx context.Context, phase Phase) (int, error) {
	if err := phase.check(); err != nil {
		return 0, err
	}
	var n int
	err := Call(ctx, a.dispatcher, func() error {
		bucket := a.actions[phase]
		if len(bucket) == 0 {
			return nil
		}
		snapshot := append([]Action(nil), bucket...)
		n = len(snapshot)
		start := time.Now()
		err := a.pool.Invoke(context.WithoutCancel(ctx), snapshot...)
		a.metrics.ObserveStep(phase, "actions", time.Since(start))
		a.metrics.AddRun(TaskAction, n)
		if batch, ok := err.(*BatchError); ok {
			for i := range batch.Failures {
				batch.Failures[i].Phase = phase
				batch.Failures[i].Agent = a.id
			}
			a.metrics.AddFailures(phase, batch.Failures)
		}
		return err
	})
	if IsInterrupted(err) {
		return 0, err
	}
	return n, err
}

// ResolveEffects takes every pending effect, clears the list, and runs them
// sequentially by priority on the pool. phase is either a day phase or
// AnyPhase.
func (a *AgentServer) ResolveEffects(ctx context.Context, phase Phase) (int, error) {
	if phase != AnyPhase {
		if err := phase.check(); err != nil {
			return 0, err
		}
	}
	var n int
	err := Call(ctx, a.dispatcher, func() error {
		if len(a.pending) == 0 {
			return nil
		}
		batch := a.pending
		a.pending = nil
		n = len(batch)
		start := time.Now()
		failures := a.pool.run(context.WithoutCancel(ctx), 1, func(int, *Scope) error {
			if ran, err := runEffects(batch); err != nil {
				return fmt.Errorf("effect %d of %d: %w", ran+1, len(batch), err)
			}
			return nil
		})
		a.metrics.ObserveStep(phase, "effects", time.Since(start))
		a.metrics.AddRun(TaskEffect, n)
		for i := range failures {
			failures[i].Agent = a.id
			failures[i].Phase = phase
		}
		err := batchError(failures, TaskEffect)
		if err != nil {
			a.metrics.AddFailures(phase, failures)
		}
		return err
	})
	if IsInterrupted(err) {
		return 0, err
	}
	return n, err
}

// Sync is a no-op round trip through the dispatcher.
func (a *AgentServer) Sync(ctx context.Context) error {
	return Call(ctx, a.dispatcher, func() error { return nil })
}
