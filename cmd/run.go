package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"

	"github.com/daysim/daysim/sim"
	"github.com/daysim/daysim/sim/economy"
	"github.com/daysim/daysim/sim/trace"
)

// RunOutput is the JSON document printed after a run.
type RunOutput struct {
	Layout    string              `json:"layout"`
	Days      int                 `json:"days_completed"`
	Faults    int                 `json:"faults"`
	WallTimeS float64             `json:"wall_time_s"`
	Economy   economy.Summary     `json:"economy"`
	Trace     *trace.TraceSummary `json:"trace,omitempty"`
}

// dayRunner is what both layouts expose to the run loop.
type dayRunner interface {
	RunDays(ctx context.Context, n int) error
	Day() int
}

// Run builds the economy on the layout cfg selects, runs it for cfg.Days and
// prints a RunOutput to out. Task faults are reported in the output rather
// than failing the run unless cfg.HaltOnFault is set. When metricsPath is
// non-empty the Prometheus registry is written there in text format.
func Run(ctx context.Context, cfg Config, out io.Writer, metricsPath string) error {
	registry := prometheus.NewRegistry()
	metrics := sim.MustNewMetrics(registry)
	rt := trace.NewResolutionTrace(trace.TraceConfig{Level: trace.TraceLevel(cfg.Trace)})

	econ, err := economy.New(cfg.Economy, sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed)))
	if err != nil {
		return err
	}

	var (
		runner dayRunner
		layout string
	)
	if cfg.Decentralized {
		layout = "decentralized"
		roster := sim.NewRoster(sim.RosterConfig{HaltOnFault: cfg.HaltOnFault, Metrics: metrics, Trace: rt})
		defer roster.Close()
		servers := economy.NewDistributed(roster, sim.NewPool(cfg.Workers), metrics)
		defer servers.TurnOff()
		econ.StartDistributed(servers)
		runner = roster
	} else {
		layout = "central"
		schedule := sim.NewSchedule(
			sim.ScheduleConfig{Workers: cfg.Workers, HaltOnFault: cfg.HaltOnFault},
			sim.WithMetrics(metrics),
			sim.WithTrace(rt),
		)
		defer schedule.Close()
		econ.Start(economy.Central(schedule))
		runner = schedule
	}
	defer econ.TurnOff()

	start := time.Now()
	runErr := runner.RunDays(ctx, cfg.Days)
	faults := sim.Failures(runErr)
	if runErr != nil && (sim.IsInterrupted(runErr) || cfg.HaltOnFault) {
		return fmt.Errorf("stopped after %d day(s): %w", runner.Day(), runErr)
	}
	if len(faults) > 0 {
		logrus.Warnf("%d task fault(s) during the run", len(faults))
	}

	result := RunOutput{
		Layout:    layout,
		Days:      runner.Day(),
		Faults:    len(faults),
		WallTimeS: time.Since(start).Seconds(),
		Economy:   econ.Summarize(),
	}
	if rt.Config.Level != trace.TraceLevelNone && rt.Config.Level != "" {
		result.Trace = trace.Summarize(rt)
	}
	if err := printOutput(out, result); err != nil {
		return err
	}
	if metricsPath != "" {
		return writeMetrics(registry, metricsPath)
	}
	return nil
}

func printOutput(out io.Writer, result RunOutput) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintf(out, "=== Run Summary ===\n%s\n", data)
	return err
}

// writeMetrics dumps every gathered family in the Prometheus text format.
func writeMetrics(g prometheus.Gatherer, path string) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	logrus.Infof("Metrics written to %s", path)
	return nil
}
