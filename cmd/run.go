package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scenarioctl/internal/color"
	"scenarioctl/internal/config"
	"scenarioctl/internal/scenario"
	"scenarioctl/pkg/logging"
)

type runFlags struct {
	commonFlags
	enabled    bool
	failFast   bool
	reportPath string
	output     string
	verbose    bool
	noColor    bool
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <suite.yaml>...",
		Short: "Run scenario suites against their compose topology",
		Long: `Run one or more scenario suites.

For every suite the fixture setup command runs and the artifacts are packaged
once. Then, for every case, the compose topology is started, scenarioctl waits
for the readiness marker in its output, probes the case path and tears the
topology down again.

Runs are gated: unless DOCKER_COMPOSE_DETECTED is set (or --enabled is passed,
or enabled: true is configured) every case is reported as skipped and nothing
is started.

Examples:
  # Run a suite with docker-compose
  DOCKER_COMPOSE_DETECTED=1 scenarioctl run suite.yaml

  # Use the compose plugin and stop at the first failing case
  scenarioctl run --enabled --compose-tool "docker compose" --fail-fast suite.yaml

  # Write a JSON report next to the console output
  scenarioctl run --enabled --report reports/ suite.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: f.run,
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&f.enabled, "enabled", false, "Open the run gate regardless of DOCKER_COMPOSE_DETECTED")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", false, "Skip the remaining cases after the first case that does not pass")
	cmd.Flags().StringVar(&f.reportPath, "report", "", "Write a JSON report to this file or directory")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output format: console, quiet or json (default console)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Show the compose output of failing cases")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colored console output")

	_ = cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{config.OutputConsole, config.OutputQuiet, config.OutputJSON}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func (f *runFlags) run(cmd *cobra.Command, args []string) error {
	// Interrupts cancel the run; teardown of a started topology still happens.
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := f.loadConfig(cmd, f.apply(cmd))
	if err != nil {
		return err
	}
	if err := initLogging(cmd, cfg); err != nil {
		return err
	}

	suites, err := scenario.LoadSuites(args)
	if err != nil {
		return fmt.Errorf("failed to load suites: %w", err)
	}

	color.Configure(f.noColor)
	runner, err := scenario.NewRunner(scenarioOptions(cfg), newReporter(cmd.OutOrStdout(), cfg.Output, f.verbose))
	if err != nil {
		return err
	}

	var results []scenario.SuiteResult
	for _, suite := range suites {
		if ctx.Err() != nil {
			break
		}
		result, err := runner.Run(ctx, suite)
		if err != nil {
			return err
		}
		results = append(results, *result)
	}

	if cfg.ReportPath != "" {
		written, err := scenario.SaveReport(cfg.ReportPath, results)
		if err != nil {
			return err
		}
		logging.Info("CLI", "Report written to %s", written)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}

	failed := 0
	for _, result := range results {
		if !result.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d suite(s) did not pass", failed, len(results))
	}
	return nil
}

// apply returns the override for the run specific flags.
func (f *runFlags) apply(cmd *cobra.Command) func(*config.ScenarioctlConfig) {
	return func(cfg *config.ScenarioctlConfig) {
		flags := cmd.Flags()
		if flags.Changed("enabled") {
			enabled := f.enabled
			cfg.Enabled = &enabled
		}
		if flags.Changed("fail-fast") {
			failFast := f.failFast
			cfg.FailFast = &failFast
		}
		if flags.Changed("report") {
			cfg.ReportPath = f.reportPath
		}
		if flags.Changed("output") {
			cfg.Output = f.output
		}
	}
}

func newReporter(out io.Writer, output string, verbose bool) scenario.Reporter {
	switch output {
	case config.OutputJSON:
		return scenario.NewJSONReporter(out)
	case config.OutputQuiet:
		return scenario.NewQuietReporter(out)
	default:
		return scenario.NewConsoleReporter(out, verbose)
	}
}
