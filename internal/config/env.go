package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"scenarioctl/pkg/logging"
)

// Environment variables read on top of the file configuration.
const (
	EnvBaseURL      = "SCENARIOCTL_BASE_URL"
	EnvComposeTool  = "SCENARIOCTL_COMPOSE_TOOL"
	EnvReadyTimeout = "SCENARIOCTL_READY_TIMEOUT"
	EnvLogLevel     = "SCENARIOCTL_LOG_LEVEL"

	// EnvGate opens the run gate. Environments without a container runtime
	// leave it unset so every case is skipped.
	EnvGate = "DOCKER_COMPOSE_DETECTED"
)

// envLookup resolves variables from the process environment first, then from
// the values read from a .env file.
type envLookup struct {
	dotenv map[string]string
}

func newEnvLookup() (envLookup, error) {
	path, err := getDotenvPath()
	if err != nil {
		logging.Warn("Config", "Could not determine .env path: %v", err)
		return envLookup{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return envLookup{}, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return envLookup{}, fmt.Errorf("error reading %s: %w", path, err)
	}
	logging.Debug("Config", "Read %d variable(s) from %s", len(values), path)
	return envLookup{dotenv: values}, nil
}

func (e envLookup) get(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	v, ok := e.dotenv[key]
	return v, ok
}

// applyEnv overrides config fields from the environment.
func applyEnv(config ScenarioctlConfig, env envLookup) (ScenarioctlConfig, error) {
	if v, ok := env.get(EnvBaseURL); ok && v != "" {
		config.BaseURL = v
	}
	if v, ok := env.get(EnvComposeTool); ok && strings.TrimSpace(v) != "" {
		config.Compose.Tool = strings.Fields(v)
	}
	if v, ok := env.get(EnvReadyTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return ScenarioctlConfig{}, fmt.Errorf("%s: %w", EnvReadyTimeout, err)
		}
		config.Readiness.Timeout = d
	}
	if v, ok := env.get(EnvLogLevel); ok && v != "" {
		config.LogLevel = v
	}
	if v, ok := env.get(EnvGate); ok {
		config.Enabled = boolPtr(IsGateOpen(v))
	}
	return config, nil
}

// IsGateOpen interprets a value of the gate variable. Any non-empty value opens
// the gate (compose detection scripts often export a version or a word), except
// the explicit falsy values 0, false, no and off, matched case-insensitively.
func IsGateOpen(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
