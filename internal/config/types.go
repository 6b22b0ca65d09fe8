package config

import (
	"fmt"
	"net/url"
	"time"

	"scenarioctl/pkg/logging"
)

// Output formats understood by the run command.
const (
	OutputConsole = "console"
	OutputQuiet   = "quiet"
	OutputJSON    = "json"
)

// ScenarioctlConfig is the top-level configuration structure for scenarioctl.
type ScenarioctlConfig struct {
	// BaseURL is where the topology serves HTTP once ready, e.g. "http://localhost:3000".
	BaseURL   string          `yaml:"baseURL,omitempty"`
	Compose   ComposeConfig   `yaml:"compose"`
	Readiness ReadinessConfig `yaml:"readiness"`
	Probe     ProbeConfig     `yaml:"probe"`

	// ArtifactsDir is where archives are written, relative to the fixture directory.
	ArtifactsDir string `yaml:"artifactsDir,omitempty"`

	// Enabled gates every run. When false all cases are skipped without starting anything.
	Enabled *bool `yaml:"enabled,omitempty"`
	// FailFast skips the remaining cases after the first case that does not pass.
	FailFast *bool `yaml:"failFast,omitempty"`

	ReportPath string `yaml:"reportPath,omitempty"` // Optional JSON report file
	Output     string `yaml:"output,omitempty"`     // console, quiet or json
	LogLevel   string `yaml:"logLevel,omitempty"`   // debug, info, warn or error
}

// ComposeConfig describes how the compose tool is invoked.
type ComposeConfig struct {
	Tool         []string      `yaml:"tool,omitempty"`         // e.g. ["docker-compose"] or ["docker", "compose"]
	File         string        `yaml:"file,omitempty"`         // Base compose file
	LinuxOverlay string        `yaml:"linuxOverlay,omitempty"` // Added on Linux hosts only
	StopTimeout  time.Duration `yaml:"stopTimeout,omitempty"`
}

// ReadinessConfig describes how readiness is detected.
type ReadinessConfig struct {
	Marker    string        `yaml:"marker,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	ExitGrace time.Duration `yaml:"exitGrace,omitempty"`
}

// ProbeConfig tunes the HTTP probe client.
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Retries *int          `yaml:"retries,omitempty"`
}

// IsEnabled reports whether scenario runs are enabled.
func (c ScenarioctlConfig) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

// IsFailFast reports whether a run stops after the first non-passing case.
func (c ScenarioctlConfig) IsFailFast() bool {
	return c.FailFast != nil && *c.FailFast
}

// ProbeRetries returns the configured retry count.
func (c ScenarioctlConfig) ProbeRetries() int {
	if c.Probe.Retries == nil {
		return 0
	}
	return *c.Probe.Retries
}

// Validate checks the merged configuration.
func (c ScenarioctlConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("baseURL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("baseURL %q must be an absolute http(s) URL", c.BaseURL)
	}

	if len(c.Compose.Tool) == 0 || c.Compose.Tool[0] == "" {
		return fmt.Errorf("compose.tool must name an executable")
	}
	if c.Compose.File == "" {
		return fmt.Errorf("compose.file is required")
	}
	if c.Compose.StopTimeout <= 0 {
		return fmt.Errorf("compose.stopTimeout must be positive, got %s", c.Compose.StopTimeout)
	}

	if c.Readiness.Marker == "" {
		return fmt.Errorf("readiness.marker is required")
	}
	if c.Readiness.Timeout <= 0 {
		return fmt.Errorf("readiness.timeout must be positive, got %s", c.Readiness.Timeout)
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout)
	}
	if c.ProbeRetries() < 0 {
		return fmt.Errorf("probe.retries must not be negative, got %d", c.ProbeRetries())
	}

	switch c.Output {
	case OutputConsole, OutputQuiet, OutputJSON:
	default:
		return fmt.Errorf("output %q must be one of: %s, %s, %s", c.Output, OutputConsole, OutputQuiet, OutputJSON)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }
