package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenarioctl/internal/config"
	"scenarioctl/internal/scenario"
)

// clearEnv keeps configuration from the environment out of command tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvBaseURL, config.EnvComposeTool, config.EnvReadyTimeout, config.EnvLogLevel, config.EnvGate} {
		t.Setenv(key, "")
	}
}

// writeFixture creates a fixture directory with a handler and a suite file
// referencing it, and returns the suite path.
func writeFixture(t *testing.T, suite string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handler.js"), []byte("module.exports = {}\n"), 0644))
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suite), 0644))
	return path
}

const fixtureSuite = `name: hello
artifacts:
  - archive: hello.zip
    files: [handler.js]
cases:
  - description: says hello
    path: /dev/hello
    expected:
      message: Hello
`

func execute(t *testing.T, cmd *cobra.Command, args ...string) (stdout string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	clearEnv(t)
	suitePath := writeFixture(t, fixtureSuite)
	dir := filepath.Dir(suitePath)

	tests := []struct {
		name     string
		args     []string
		contains []string
		excludes []string
	}{
		{
			name: "linux adds overlay and ids",
			args: []string{"--platform", "linux"},
			contains: []string{
				"Platform:  linux",
				"Start:     docker-compose -f docker-compose.yml -f docker-compose.linux.yml up",
				"HOST_SERVICE_PATH=" + dir,
				"UID=",
				"GID=",
				"Stop:      docker-compose down",
			},
			excludes: []string{"COMPOSE_CONVERT_WINDOWS_PATHS"},
		},
		{
			name: "windows converts paths",
			args: []string{"--platform", "windows"},
			contains: []string{
				"Start:     docker-compose -f docker-compose.yml up",
				"COMPOSE_CONVERT_WINDOWS_PATHS=1",
				"HOST_SERVICE_PATH=" + dir,
			},
			excludes: []string{"docker-compose.linux.yml", "UID="},
		},
		{
			name: "darwin uses base file only",
			args: []string{"--platform", "darwin", "--compose-tool", "docker compose"},
			contains: []string{
				"Platform:  other",
				"Start:     docker compose -f docker-compose.yml up",
				"Stop:      docker compose down",
				"UID=",
			},
			excludes: []string{"docker-compose.linux.yml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, newPlanCmd(), append(tt.args, suitePath)...)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestPlanCommand_InvalidPlatform(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, newPlanCmd(), "--platform", "plan9", writeFixture(t, fixtureSuite))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown platform")
}

func TestPackageCommand(t *testing.T) {
	clearEnv(t)
	suitePath := writeFixture(t, fixtureSuite)

	out, err := execute(t, newPackageCmd(), suitePath)
	require.NoError(t, err)

	archive := filepath.Join(filepath.Dir(suitePath), "artifacts", "hello.zip")
	assert.Contains(t, out, archive)
	assert.FileExists(t, archive)
}

func TestPackageCommand_ArtifactsDir(t *testing.T) {
	clearEnv(t)
	suitePath := writeFixture(t, fixtureSuite)
	outDir := t.TempDir()

	_, err := execute(t, newPackageCmd(), "--artifacts-dir", outDir, suitePath)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "hello.zip"))
}

func TestRunCommand_GateClosed(t *testing.T) {
	clearEnv(t)
	suitePath := writeFixture(t, fixtureSuite)
	reportDir := t.TempDir()

	out, err := execute(t, newRunCmd(), "--enabled=false", "--output", "json", "--report", reportDir, suitePath)
	require.NoError(t, err)

	var result scenario.SuiteResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Enabled)
	assert.Equal(t, 1, result.SkippedCases)
	assert.Zero(t, result.Starts)

	entries, err := os.ReadDir(reportDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Nothing is packaged while the gate is closed.
	assert.NoDirExists(t, filepath.Join(filepath.Dir(suitePath), "artifacts"))
}

func TestRunCommand_FailingSuite(t *testing.T) {
	clearEnv(t)
	suitePath := writeFixture(t, `name: broken
artifacts:
  - archive: missing.zip
    files: [missing.js]
cases:
  - description: never starts
    path: /dev/hello
`)

	out, err := execute(t, newRunCmd(), "--enabled", "--output", "quiet", suitePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 suite(s) did not pass")
	assert.Contains(t, out, "ERROR /dev/hello [packaging]")
}

func TestRunCommand_InvalidFlags(t *testing.T) {
	clearEnv(t)
	suitePath := writeFixture(t, fixtureSuite)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "output", args: []string{"--output", "xml"}, wantErr: "output"},
		{name: "base url", args: []string{"--base-url", "localhost:3000"}, wantErr: "baseURL"},
		{name: "compose tool", args: []string{"--compose-tool", " "}, wantErr: "compose.tool"},
		{name: "missing config file", args: []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, wantErr: "failed to load configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, newRunCmd(), append(tt.args, suitePath)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunCommand_RequiresSuite(t *testing.T) {
	_, err := execute(t, newRunCmd())
	assert.Error(t, err)
}
