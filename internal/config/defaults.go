package config

import (
	"scenarioctl/internal/artifact"
	"scenarioctl/internal/compose"
	"scenarioctl/internal/probe"
	"scenarioctl/internal/readiness"
)

// GetDefaultConfig returns the built-in configuration.
// Runs are disabled until the gate is opened by DOCKER_COMPOSE_DETECTED,
// a config file or the --enabled flag.
func GetDefaultConfig() ScenarioctlConfig {
	return ScenarioctlConfig{
		BaseURL: probe.DefaultBaseURL,
		Compose: ComposeConfig{
			Tool:         []string{compose.DefaultTool},
			File:         compose.DefaultFile,
			LinuxOverlay: compose.DefaultLinuxOverlay,
			StopTimeout:  compose.DefaultStopTimeout,
		},
		Readiness: ReadinessConfig{
			Marker:    readiness.DefaultMarker,
			Timeout:   readiness.DefaultTimeout,
			ExitGrace: readiness.DefaultExitGrace,
		},
		Probe: ProbeConfig{
			Timeout: probe.DefaultTimeout,
			Retries: intPtr(probe.DefaultRetries),
		},
		ArtifactsDir: artifact.DefaultOutputDir,
		Enabled:      boolPtr(false),
		FailFast:     boolPtr(false),
		Output:       OutputConsole,
		LogLevel:     "info",
	}
}
