// dbbench runs the standardized scenario battery against every configured
// storage backend and writes one normalized result document. The databases
// themselves are external collaborators: they must already be running and
// reachable at the configured DSNs.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dbbench/internal/config"
	"dbbench/internal/driver"
	"dbbench/internal/orchestrator"
)

var (
	flagConfig    string
	flagOutput    string
	flagScenarios []string
	flagVerbose   bool
)

func main() {
	cmd := &cobra.Command{
		Use:           "dbbench",
		Short:         "Compare storage backends under a common synthetic workload battery",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().StringVarP(&flagConfig, "config", "c", "config.yaml", "path to run configuration")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "override the configured output path")
	cmd.Flags().StringSliceVar(&flagScenarios, "scenarios", nil, "run only the named scenarios")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	if err := cmd.Execute(); err != nil {
		zlog.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	setupLogging(flagVerbose)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagOutput != "" {
		cfg.Settings.OutputPath = flagOutput
	}
	if len(flagScenarios) > 0 {
		cfg.Settings.Scenarios = flagScenarios
	}

	drivers, err := buildDrivers(cfg)
	if err != nil {
		return err
	}

	report, err := orchestrator.New(cfg, drivers).Run(cmd.Context())
	if err != nil {
		return err
	}
	if err := report.Write(cfg.Settings.OutputPath); err != nil {
		return err
	}
	zlog.Info().Str("output", cfg.Settings.OutputPath).Msg("report written")

	if report.Partial() {
		// Partial results are still results; unreachable backends were
		// recorded as failed cells, not dropped.
		zlog.Warn().Int("skipped_backends", len(report.Skipped)).
			Msg("run finished with skipped backends")
	}
	return nil
}

func buildDrivers(cfg *config.Config) (map[string]driver.Driver, error) {
	ioTimeout := cfg.Settings.IOTimeoutDuration()
	out := make(map[string]driver.Driver, len(cfg.Databases))
	for id, dsn := range cfg.Databases {
		switch id {
		case "postgres":
			out[id] = &driver.Postgres{DSN: dsn, IOTimeout: ioTimeout}
		case "mysql":
			out[id] = &driver.MySQL{DSN: dsn, IOTimeout: ioTimeout}
		case "mongo":
			out[id] = &driver.Mongo{DSN: dsn, IOTimeout: ioTimeout}
		case "sqlite":
			out[id] = &driver.SQLite{DSN: dsn, IOTimeout: ioTimeout}
		default:
			return nil, fmt.Errorf("unsupported backend %q in config", id)
		}
	}
	return out, nil
}

func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
