package scenario

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenarioctl/internal/compose"
	"scenarioctl/internal/config"
	"scenarioctl/internal/probe"
	"scenarioctl/internal/readiness"
)

// TestDockerInDocker runs the fixture suite against a real compose topology.
// It only runs where DOCKER_COMPOSE_DETECTED is set and the tools are installed.
func TestDockerInDocker(t *testing.T) {
	if !config.IsGateOpen(os.Getenv(config.EnvGate)) {
		t.Skipf("%s not set", config.EnvGate)
	}
	if testing.Short() {
		t.Skip("skipping docker-in-docker scenario in short mode")
	}
	for _, bin := range []string{compose.DefaultTool, "npm"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}

	suite, err := LoadSuite(filepath.Join("testdata", "docker-in-docker", "suite.yaml"))
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(filepath.Join(suite.FixtureDir, "artifacts")) })

	runner, err := NewRunner(Options{
		Enabled:   true,
		Compose:   compose.Config{Files: compose.Files{Base: compose.DefaultFile, LinuxOverlay: compose.DefaultLinuxOverlay}},
		Readiness: readiness.Gate{Marker: readiness.DefaultMarker, Timeout: 5 * time.Minute},
		Probe:     probe.Options{BaseURL: probe.DefaultBaseURL, Retries: probe.DefaultRetries},
	}, NewConsoleReporter(os.Stdout, true))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	result, err := runner.Run(ctx, suite)
	require.NoError(t, err)
	assert.Equal(t, len(suite.Cases), result.PassedCases)
	assert.Equal(t, result.Starts, result.Stops)
}
