package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"scenarioctl/pkg/logging"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/scenarioctl"
	projectConfigDir = ".scenarioctl"
	configFileName   = "config.yaml"
	dotenvFileName   = ".env"
)

// LoadConfig builds the configuration by layering, in order: defaults, the user
// config, the project config, the explicit file (if any), and the environment.
// The result is validated.
func LoadConfig(explicitPath string) (ScenarioctlConfig, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. User-specific configuration
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional
		logging.Warn("Config", "Could not determine user config path: %v", err)
	} else {
		config, err = mergeOptionalFile(config, userConfigPath)
		if err != nil {
			return ScenarioctlConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
		}
	}

	// 3. Project-specific configuration
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine project config path: %v", err)
	} else {
		config, err = mergeOptionalFile(config, projectConfigPath)
		if err != nil {
			return ScenarioctlConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
		}
	}

	// 4. Explicit configuration file must exist
	if explicitPath != "" {
		explicitConfig, err := loadConfigFromFile(explicitPath)
		if err != nil {
			return ScenarioctlConfig{}, fmt.Errorf("error loading config from %s: %w", explicitPath, err)
		}
		config = mergeConfigs(config, explicitConfig)
	}

	// 5. Environment, with .env as a fallback for unset variables
	env, err := newEnvLookup()
	if err != nil {
		return ScenarioctlConfig{}, err
	}
	config, err = applyEnv(config, env)
	if err != nil {
		return ScenarioctlConfig{}, err
	}

	if err := config.Validate(); err != nil {
		return ScenarioctlConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

var getDotenvPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, dotenvFileName), nil
}

func mergeOptionalFile(base ScenarioctlConfig, path string) (ScenarioctlConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return ScenarioctlConfig{}, err
	}
	logging.Debug("Config", "Merged configuration from %s", path)
	return mergeConfigs(base, overlay), nil
}

// loadConfigFromFile loads a ScenarioctlConfig from a YAML file. Unknown keys are rejected.
func loadConfigFromFile(filePath string) (ScenarioctlConfig, error) {
	var config ScenarioctlConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ScenarioctlConfig{}, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return ScenarioctlConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Only fields set in
// the overlay override the base.
func mergeConfigs(base, overlay ScenarioctlConfig) ScenarioctlConfig {
	merged := base

	if overlay.BaseURL != "" {
		merged.BaseURL = overlay.BaseURL
	}

	// Compose settings
	if len(overlay.Compose.Tool) > 0 {
		merged.Compose.Tool = overlay.Compose.Tool
	}
	if overlay.Compose.File != "" {
		merged.Compose.File = overlay.Compose.File
	}
	if overlay.Compose.LinuxOverlay != "" {
		merged.Compose.LinuxOverlay = overlay.Compose.LinuxOverlay
	}
	if overlay.Compose.StopTimeout != 0 {
		merged.Compose.StopTimeout = overlay.Compose.StopTimeout
	}

	// Readiness settings
	if overlay.Readiness.Marker != "" {
		merged.Readiness.Marker = overlay.Readiness.Marker
	}
	if overlay.Readiness.Timeout != 0 {
		merged.Readiness.Timeout = overlay.Readiness.Timeout
	}
	if overlay.Readiness.ExitGrace != 0 {
		merged.Readiness.ExitGrace = overlay.Readiness.ExitGrace
	}

	// Probe settings
	if overlay.Probe.Timeout != 0 {
		merged.Probe.Timeout = overlay.Probe.Timeout
	}
	if overlay.Probe.Retries != nil {
		merged.Probe.Retries = overlay.Probe.Retries
	}

	if overlay.ArtifactsDir != "" {
		merged.ArtifactsDir = overlay.ArtifactsDir
	}
	// Booleans only when explicitly set in the overlay
	if overlay.Enabled != nil {
		merged.Enabled = overlay.Enabled
	}
	if overlay.FailFast != nil {
		merged.FailFast = overlay.FailFast
	}
	if overlay.ReportPath != "" {
		merged.ReportPath = overlay.ReportPath
	}
	if overlay.Output != "" {
		merged.Output = overlay.Output
	}
	if overlay.LogLevel != "" {
		merged.LogLevel = overlay.LogLevel
	}

	return merged
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
