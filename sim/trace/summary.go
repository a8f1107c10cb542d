package trace

// TraceSummary aggregates statistics from a ResolutionTrace.
type TraceSummary struct {
	Resolutions     int
	Days            int
	ActionsRun      int
	EffectsResolved int
	TotalFaults     int
	BusiestPhase    string         // phase with the most action runs; "" if none ran
	ActionsByPhase  map[string]int // phase name → action bodies run
	FaultsByKind    map[string]int // "action"/"effect" → failed tasks
}

// Summarize computes aggregate statistics from a ResolutionTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *ResolutionTrace) *TraceSummary {
	summary := &TraceSummary{
		ActionsByPhase: make(map[string]int),
		FaultsByKind:   make(map[string]int),
	}
	if rt == nil {
		return summary
	}

	days := make(map[int]bool)
	summary.Resolutions = len(rt.Phases)
	for _, p := range rt.Phases {
		days[p.Day] = true
		summary.ActionsRun += p.Actions
		summary.EffectsResolved += p.Effects
		if p.Actions > 0 {
			summary.ActionsByPhase[p.Phase] += p.Actions
		}
	}
	summary.Days = len(days)

	best := 0
	for _, p := range rt.Phases {
		// first phase in record order wins ties
		if n := summary.ActionsByPhase[p.Phase]; n > best {
			best = n
			summary.BusiestPhase = p.Phase
		}
	}

	summary.TotalFaults = len(rt.Faults)
	for _, f := range rt.Faults {
		summary.FaultsByKind[f.Kind]++
	}
	return summary
}
