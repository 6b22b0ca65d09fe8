package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scenarioctl/internal/compose"
	"scenarioctl/internal/config"
	"scenarioctl/internal/probe"
	"scenarioctl/internal/readiness"
	"scenarioctl/internal/scenario"
	"scenarioctl/pkg/logging"
)

// commonFlags are the configuration overrides shared by every suite command.
// A flag only overrides the file and environment configuration when it was set.
type commonFlags struct {
	configPath   string
	baseURL      string
	composeTool  string
	readyTimeout time.Duration
	debug        bool
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to an additional configuration file")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", fmt.Sprintf("Base URL probes are resolved against (default %s)", probe.DefaultBaseURL))
	cmd.Flags().StringVar(&f.composeTool, "compose-tool", "", fmt.Sprintf("Compose executable and fixed arguments, e.g. \"docker compose\" (default %s)", compose.DefaultTool))
	cmd.Flags().DurationVar(&f.readyTimeout, "ready-timeout", 0, fmt.Sprintf("How long to wait for the readiness marker (default %s)", readiness.DefaultTimeout))
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging, including compose output")
}

// loadConfig loads the layered configuration, applies the flag overrides and
// any command specific overrides, then validates the result.
func (f *commonFlags) loadConfig(cmd *cobra.Command, overrides ...func(*config.ScenarioctlConfig)) (config.ScenarioctlConfig, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if flags.Changed("compose-tool") {
		cfg.Compose.Tool = strings.Fields(f.composeTool)
	}
	if flags.Changed("ready-timeout") {
		cfg.Readiness.Timeout = f.readyTimeout
	}
	if f.debug {
		cfg.LogLevel = logging.LevelDebug.String()
	}
	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogging routes log records to the command's error stream.
func initLogging(cmd *cobra.Command, cfg config.ScenarioctlConfig) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())
	return nil
}

func composeConfig(cfg config.ScenarioctlConfig) compose.Config {
	return compose.Config{
		Tool: cfg.Compose.Tool,
		Files: compose.Files{
			Base:         cfg.Compose.File,
			LinuxOverlay: cfg.Compose.LinuxOverlay,
		},
		StopTimeout: cfg.Compose.StopTimeout,
	}
}

func scenarioOptions(cfg config.ScenarioctlConfig) scenario.Options {
	return scenario.Options{
		Enabled:  cfg.IsEnabled(),
		FailFast: cfg.IsFailFast(),
		Compose:  composeConfig(cfg),
		Readiness: readiness.Gate{
			Marker:    cfg.Readiness.Marker,
			Timeout:   cfg.Readiness.Timeout,
			ExitGrace: cfg.Readiness.ExitGrace,
		},
		Probe: probe.Options{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Probe.Timeout,
			Retries: cfg.ProbeRetries(),
		},
		ArtifactsDir: cfg.ArtifactsDir,
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
