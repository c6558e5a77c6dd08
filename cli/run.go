package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/twosigma/uberjob"
	"github.com/twosigma/uberjob/uberjobotel"
)

// NewRunCmd creates the "run" subcommand: build one of the built-in demo
// plans (or, in a real deployment, one assembled by caller code linking
// against this package) and execute it via uberjob.Run.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan>",
		Short: "Execute a built-in demonstration plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}

	cmd.Flags().Int("workers", 0, "Maximum worker goroutines (0 = default)")
	cmd.Flags().Int("max-errors", uberjob.DefaultMaxErrors, "Node failures tolerated before scheduling stops")
	cmd.Flags().String("store-dir", ".uberjob", "Directory for JSON value stores used by the pipeline demo")
	cmd.Flags().String("scheduler", "fifo", "Queue discipline: fifo | random | priority")
	cmd.Flags().Bool("dry-run", false, "Build and prune the physical plan, but do not execute it")
	cmd.Flags().Int("retries", 1, "Maximum attempts per Call node (1 disables retrying)")
	cmd.Flags().String("config", "", "Path to a YAML config file supplying values for flags not set on the command line (default: ./uberjob.yaml or ~/.uberjob/config.yaml)")
	cmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP collector address for exporting node and scope spans (disabled when empty)")

	return cmd
}

// applyRunConfig overrides any flag the caller did not explicitly set
// with the value from cfg, matching the precedence "explicit flag wins
// over config file wins over built-in default".
func applyRunConfig(cmd *cobra.Command, cfg RunConfigFile) {
	if cfg.Workers != nil && !cmd.Flags().Changed("workers") {
		_ = cmd.Flags().Set("workers", fmt.Sprint(*cfg.Workers))
	}
	if cfg.MaxErrors != nil && !cmd.Flags().Changed("max-errors") {
		_ = cmd.Flags().Set("max-errors", fmt.Sprint(*cfg.MaxErrors))
	}
	if cfg.StoreDir != "" && !cmd.Flags().Changed("store-dir") {
		_ = cmd.Flags().Set("store-dir", cfg.StoreDir)
	}
	if cfg.Scheduler != "" && !cmd.Flags().Changed("scheduler") {
		_ = cmd.Flags().Set("scheduler", cfg.Scheduler)
	}
	if cfg.Retries != nil && !cmd.Flags().Changed("retries") {
		_ = cmd.Flags().Set("retries", fmt.Sprint(*cfg.Retries))
	}
}

func parseScheduler(name string) (uberjob.QueueDiscipline, error) {
	switch name {
	case "", "fifo":
		return uberjob.SchedulerFIFO, nil
	case "random":
		return uberjob.SchedulerRandom, nil
	case "priority":
		return uberjob.SchedulerPriority, nil
	default:
		return 0, fmt.Errorf("unknown scheduler %q (try fifo, random, or priority)", name)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	name := args[0]

	configPath, _ := cmd.Flags().GetString("config")
	cwd, err := os.Getwd()
	if err != nil {
		return exitError(exitRuntime, "resolve working directory: %v", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return exitError(exitRuntime, "resolve user home: %v", err)
	}
	if resolved, found, err := discoverConfigPath(configPath, cwd, homeDir); err != nil {
		return exitError(exitBadArgument, "%v", err)
	} else if found {
		cfg, err := loadRunConfig(resolved)
		if err != nil {
			return exitError(exitBadArgument, "%v", err)
		}
		applyRunConfig(cmd, cfg)
	}

	workers, _ := cmd.Flags().GetInt("workers")
	maxErrors, _ := cmd.Flags().GetInt("max-errors")
	storeDir, _ := cmd.Flags().GetString("store-dir")
	schedulerName, _ := cmd.Flags().GetString("scheduler")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	retries, _ := cmd.Flags().GetInt("retries")

	discipline, err := parseScheduler(schedulerName)
	if err != nil {
		return exitError(exitBadArgument, "%v", err)
	}

	plan, registry, output, err := demoPlan(name, storeDir)
	if err != nil {
		return exitError(exitBadArgument, "%v", err)
	}

	logger := slog.Default()
	start := time.Now()
	runID := uuid.NewString()

	progress := uberjob.ProgressObserver(uberjob.NewSlogObserver(logger))
	var tracerProvider *sdktrace.TracerProvider
	if endpoint, _ := cmd.Flags().GetString("otlp-endpoint"); endpoint != "" {
		var err error
		tracerProvider, err = uberjobotel.NewOTLPTracerProvider(cmd.Context(), uberjobotel.ProviderConfig{
			Endpoint:    endpoint,
			Insecure:    true,
			ServiceName: "uberjobctl",
		})
		if err != nil {
			return exitError(exitRuntime, "configure OTLP tracing: %v", err)
		}
		tracing := uberjobotel.NewTracingObserver(tracerProvider.Tracer("uberjobctl"), context.Background())
		progress = uberjob.NewMultiObserver(uberjob.NewSlogObserver(logger).WithRunID(runID), tracing)
	}

	opts := []uberjob.RunOption{
		uberjob.WithOutput(output),
		uberjob.WithMaxWorkers(workers),
		uberjob.WithMaxErrors(maxErrors),
		uberjob.WithProgress(progress),
		uberjob.WithScheduler(discipline),
		uberjob.WithRetry(uberjob.Retry(retries)),
		uberjob.WithRunID(runID),
	}
	if registry != nil {
		opts = append(opts, uberjob.WithRegistry(registry))
	}
	if dryRun {
		opts = append(opts, uberjob.WithDryRun())
	}

	result, runErr := uberjob.Run(plan, opts...)

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Warn("shut down tracer provider", slog.Any("error", err))
		}
	}

	if runErr != nil {
		return exitError(exitRuntime, "run %s failed: %v", runID, runErr)
	}

	logger.Info("run finished", slog.String("run_id", runID), slog.Duration("elapsed", time.Since(start)))

	if pp, ok := result.(*uberjob.PhysicalPlan); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "dry run: %d node(s) would execute\n", len(pp.Nodes()))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%v\n", result)
	return nil
}
