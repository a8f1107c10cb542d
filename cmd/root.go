package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// CLI flags; each overrides the config file only when set explicitly
	configPath    string // Path to daysim.yaml
	days          int    // Number of simulated days
	workers       int    // Pool size
	seed          int64  // Seed of the per-agent random streams
	logLevel      string // Log verbosity level
	haltOnFault   bool   // Abort at the first faulting phase
	traceLevel    string // Resolution trace verbosity
	metricsOut    string // File receiving Prometheus text metrics
	farms         int    // Number of farms
	fields        int    // Fields per farm
	decentralized bool   // Per-agent servers instead of one schedule
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "daysim",
	Short: "Phase-based day scheduler for multi-agent simulations",
}

// runCmd runs the farm/market economy using the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the economy for a number of days",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := DefaultConfig()
		if configPath != "" {
			cfg, err = LoadConfig(configPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		applyFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		logrus.Infof("Starting run: %d day(s), %d farm(s) x %d field(s), workers=%d, seed=%d, decentralized=%v",
			cfg.Days, cfg.Economy.Farms, cfg.Economy.Fields, cfg.Workers, cfg.Seed, cfg.Decentralized)

		if err := Run(cmd.Context(), cfg, os.Stdout, metricsOut); err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}
		logrus.Info("Run complete.")
	},
}

// applyFlags copies explicitly set flags over cfg. Flag defaults never
// override values coming from the config file.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("days") {
		cfg.Days = days
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("halt-on-fault") {
		cfg.HaltOnFault = haltOnFault
	}
	if flags.Changed("trace") {
		cfg.Trace = traceLevel
	}
	if flags.Changed("farms") {
		cfg.Economy.Farms = farms
	}
	if flags.Changed("fields") {
		cfg.Economy.Fields = fields
	}
	if flags.Changed("decentralized") {
		cfg.Decentralized = decentralized
	}
}

// Execute runs the CLI root command. An interrupt cancels the run between
// barrier waits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	defaults := DefaultConfig()

	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a daysim.yaml config file")
	runCmd.Flags().IntVar(&days, "days", defaults.Days, "Number of days to simulate")
	runCmd.Flags().IntVar(&workers, "workers", defaults.Workers, "Parallel pool size (0 = GOMAXPROCS)")
	runCmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "Seed for the per-agent random streams")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().BoolVar(&haltOnFault, "halt-on-fault", defaults.HaltOnFault, "Abort the day at the first phase with a failed body")
	runCmd.Flags().StringVar(&traceLevel, "trace", defaults.Trace, "Resolution trace level (none, faults, phases)")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus text metrics to this file after the run")

	// economy
	runCmd.Flags().IntVar(&farms, "farms", defaults.Economy.Farms, "Number of farms")
	runCmd.Flags().IntVar(&fields, "fields", defaults.Economy.Fields, "Fields per farm")
	runCmd.Flags().BoolVar(&decentralized, "decentralized", defaults.Decentralized, "Give every agent its own server attached to a roster")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
