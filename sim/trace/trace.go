// Package trace provides resolution-trace recording for post-run analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// TraceLevel controls the verbosity of resolution tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelFaults captures failed tasks only.
	TraceLevelFaults TraceLevel = "faults"
	// TraceLevelPhases captures every phase resolution and every fault.
	TraceLevelPhases TraceLevel = "phases"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelFaults: true,
	TraceLevelPhases: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// ResolutionTrace collects records during a run.
//
// Thread-safety: NOT thread-safe. The coordinator writes it from the goroutine
// driving the days; read it after the run, or between blocking calls.
type ResolutionTrace struct {
	Config TraceConfig
	Phases []PhaseRecord
	Faults []FaultRecord
}

// NewResolutionTrace creates a ResolutionTrace ready for recording.
func NewResolutionTrace(config TraceConfig) *ResolutionTrace {
	return &ResolutionTrace{
		Config: config,
		Phases: make([]PhaseRecord, 0),
		Faults: make([]FaultRecord, 0),
	}
}

// RecordPhase appends a phase record when the level includes phases.
func (rt *ResolutionTrace) RecordPhase(record PhaseRecord) {
	if rt == nil || rt.Config.Level != TraceLevelPhases {
		return
	}
	rt.Phases = append(rt.Phases, record)
}

// RecordFault appends a fault record unless tracing is disabled.
func (rt *ResolutionTrace) RecordFault(record FaultRecord) {
	if rt == nil {
		return
	}
	switch rt.Config.Level {
	case TraceLevelFaults, TraceLevelPhases:
		rt.Faults = append(rt.Faults, record)
	}
}
