package sim

import "sort"

// AgentID is the opaque key effects are bucketed under. The schedule never
// interprets it beyond equality.
type AgentID string

// Effect is a one-shot unit of sequential work. Effects of one agent resolve
// in ascending Priority; equal priorities keep their registration order.
// An Effect is immutable once built.
type Effect struct {
	priority int
	body     func() error
}

// NewEffect builds an effect. A nil body is replaced with a no-op.
func NewEffect(priority int, body func() error) Effect {
	if body == nil {
		body = func() error { return nil }
	}
	return Effect{priority: priority, body: body}
}

// EffectFunc is NewEffect for bodies that cannot fail.
func EffectFunc(priority int, body func()) Effect {
	return NewEffect(priority, func() error {
		body()
		return nil
	})
}

// Priority returns the ordering key; lower runs first.
func (e Effect) Priority() int { return e.priority }

// Run executes the effect body.
func (e Effect) Run() error {
	if e.body == nil {
		return nil
	}
	return e.body()
}

// sortEffects orders a batch in place by priority (ascending), keeping
// registration order on ties.
func sortEffects(effects []Effect) {
	sort.SliceStable(effects, func(i, j int) bool {
		return effects[i].priority < effects[j].priority
	})
}

// runEffects resolves one agent's batch in order. The first failure aborts
// the rest of the batch; the skipped effects are consumed all the same.
func runEffects(effects []Effect) (int, error) {
	sortEffects(effects)
	for i, e := range effects {
		if err := e.Run(); err != nil {
			return i, err
		}
	}
	return len(effects), nil
}
