// Package sim provides the phase-based coordination engine for day-stepped
// multi-agent simulations.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - dispatcher.go: the single-goroutine command loop that owns every registry
//   - barrier.go: Call, the blocking wrapper over a fire-and-forget Submit
//   - schedule.go: the central coordinator (register, resolve, CompletePhase)
//
// # Architecture
//
// A day is the fixed sequence of Phases (phase.go). At each phase the
// coordinator runs that phase's recurring Actions as one parallel batch on a
// Pool (pool.go), then drains every pending Effect (effect.go): agents in
// parallel, each agent's effects in ascending priority. DayDriver (driver.go)
// walks the phases and owns the day counter.
//
// Two coordinator layouts share the Dispatcher and Call machinery:
//   - Schedule: one dispatcher holds all actions and effects.
//   - Roster + AgentServer: every agent keeps its own work behind its own
//     dispatcher; the roster only tracks who has something to resolve.
//
// Supporting packages:
//   - sim/trace/: per-phase resolution records for post-run analysis
//   - sim/economy/: agent-owned state and a farm/market economy
//
// # Key Interfaces
//
//   - PhaseCompleter: resolves one phase; implemented by Schedule and Roster
//   - PhaseAgent: an agent the roster calls back into
//   - Notifier: what an AgentServer reports its work to
//
// # Errors
//
// Blocking calls return ErrCanceled when the caller's context ends and
// ErrDispatcherStopped once the coordinator is closed; IsInterrupted tells
// these apart from faulting bodies, which are collected per task into
// *BatchError, *PhaseError and *DayError.
package sim
