package trace

import "time"

// PhaseRecord captures one resolution of one phase.
type PhaseRecord struct {
	Day      int
	Phase    string
	Actions  int // action bodies in the batch snapshot
	Agents   int // agents whose effect batches were resolved
	Effects  int // effects taken from the registry
	Failures int // failed tasks across both steps
	Elapsed  time.Duration
}

// FaultRecord captures a single failed pool task.
type FaultRecord struct {
	Day     int
	Phase   string
	Kind    string // "action" or "effect"
	Agent   string // set for effect faults
	Index   int
	Message string
}
