package sim

import "fmt"

// Phase is one of the fixed synchronization points of a simulated day.
// Phases are totally ordered; a day resolves them in ascending order.
type Phase int

const (
	Production Phase = iota
	PlaceOrders
	Trade
	PostTrade
	DataAndOutput
)

// AnyPhase labels work that is not tied to one phase, such as a standalone
// effect resolution. It is not part of the day order.
const AnyPhase Phase = -1

// NumPhases is the number of phases in one day.
const NumPhases = int(DataAndOutput) + 1

var phaseNames = [NumPhases]string{
	Production:    "production",
	PlaceOrders:   "place_orders",
	Trade:         "trade",
	PostTrade:     "post_trade",
	DataAndOutput: "data_and_output",
}

// Phases returns the day order. The returned slice is a fresh copy.
func Phases() []Phase {
	out := make([]Phase, NumPhases)
	for i := range out {
		out[i] = Phase(i)
	}
	return out
}

// IsValid reports whether p is one of the five day phases.
func (p Phase) IsValid() bool {
	return p >= Production && p <= DataAndOutput
}

// check returns an error for anything but a day phase. Entry points call it
// before indexing per-phase state on a dispatcher.
func (p Phase) check() error {
	if !p.IsValid() {
		return fmt.Errorf("sim: invalid phase %d", int(p))
	}
	return nil
}

func (p Phase) String() string {
	if p == AnyPhase {
		return "any"
	}
	if !p.IsValid() {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase maps a phase name ("production", "place_orders", ...) back to its Phase.
func ParsePhase(name string) (Phase, error) {
	for i, n := range phaseNames {
		if n == name {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}
