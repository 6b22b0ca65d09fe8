package scenario

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenarioctl/internal/artifact"
	"scenarioctl/internal/compose"
	"scenarioctl/internal/compose/composetest"
	"scenarioctl/internal/probe"
	"scenarioctl/internal/readiness"
)

// TestHelperProcess is not a real test. It runs the fake compose tool.
func TestHelperProcess(t *testing.T) {
	composetest.Main()
}

var dockerInDockerCases = []Case{
	{Description: "should work with docker in docker", Path: "/dev/hello", Expected: Expectation{Message: "Hello Node.js 12.x!"}},
	{Description: "should work with artifact with docker in docker", Path: "/dev/artifact", Expected: Expectation{Message: "Hello Node.js 12.x!"}},
	{Description: "should work with layer with docker in docker", Path: "/dev/layer", Expected: Expectation{Message: "Hello from Bash!"}},
	{Description: "should work with artifact and layer with docker in docker", Path: "/dev/artifact-with-layer", Expected: Expectation{Message: "Hello from Bash!"}},
}

// serviceStub answers like the fixture service would once it is up.
func serviceStub(t *testing.T, overrides map[string]string) *httptest.Server {
	t.Helper()
	messages := map[string]string{
		"/dev/hello":               "Hello Node.js 12.x!",
		"/dev/artifact":            "Hello Node.js 12.x!",
		"/dev/layer":               "Hello from Bash!",
		"/dev/artifact-with-layer": "Hello from Bash!",
	}
	for k, v := range overrides {
		messages[k] = v
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		msg, ok := messages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		fmt.Fprintf(w, `{"message":%q}`, msg)
	}))
	t.Cleanup(server.Close)
	return server
}

func newFixtureSuite(t *testing.T) *Suite {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handler.js"), []byte("exports.hello = async () => ({})"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handler.sh"), []byte("#!/bin/bash\n"), 0755))

	return &Suite{
		Name:       "docker-in-docker",
		FixtureDir: dir,
		Artifacts: []artifact.Spec{
			{ArchiveName: "hello.zip", SourceFiles: []string{"handler.js"}},
			{ArchiveName: "layer.zip", SourceFiles: []string{"handler.sh"}},
		},
		Cases: append([]Case(nil), dockerInDockerCases...),
	}
}

func testOptions(enabled bool, baseURL string) Options {
	return Options{
		Enabled: enabled,
		Compose: compose.Config{
			Tool:        composetest.Tool("TestHelperProcess"),
			Files:       compose.Files{Base: compose.DefaultFile, LinuxOverlay: compose.DefaultLinuxOverlay},
			Platform:    compose.PlatformLinux,
			Identity:    compose.Identity{UID: 1000, GID: 1000},
			StopTimeout: 5 * time.Second,
		},
		Readiness: readiness.Gate{Marker: readiness.DefaultMarker, Timeout: 5 * time.Second, ExitGrace: 200 * time.Millisecond},
		Probe:     probe.Options{BaseURL: baseURL, Timeout: 5 * time.Second},
	}
}

func run(t *testing.T, opts Options, suite *Suite) *SuiteResult {
	t.Helper()
	runner, err := NewRunner(opts, nil)
	require.NoError(t, err)
	result, err := runner.Run(context.Background(), suite)
	require.NoError(t, err)
	return result
}

func TestRun_GateClosedSkipsEverything(t *testing.T) {
	logPath := composetest.Setup(t, composetest.ModeReady)
	suite := newFixtureSuite(t)
	suite.Setup = []string{"definitely-not-a-setup-command-xyz"}

	result := run(t, testOptions(false, "http://localhost:3000"), suite)

	assert.Equal(t, 4, result.SkippedCases)
	assert.Equal(t, 0, result.Starts)
	assert.Equal(t, 0, composetest.Count(t, logPath, "up"))
	assert.True(t, result.Succeeded())
	for _, cr := range result.CaseResults {
		assert.Equal(t, ResultSkipped, cr.Result)
		assert.Equal(t, PhaseIdle, cr.Phase)
	}

	_, err := os.Stat(filepath.Join(suite.FixtureDir, artifact.DefaultOutputDir))
	assert.True(t, os.IsNotExist(err), "nothing may be packaged while the gate is closed")
}

func TestRun_AllCasesPass(t *testing.T) {
	logPath := composetest.Setup(t, composetest.ModeReady)
	server := serviceStub(t, nil)
	suite := newFixtureSuite(t)

	result := run(t, testOptions(true, server.URL), suite)

	assert.Equal(t, 4, result.PassedCases, "%+v", result.CaseResults)
	assert.True(t, result.Succeeded())
	assert.NotEmpty(t, result.RunID)

	// One full environment cycle per case.
	assert.Equal(t, 4, result.Starts)
	assert.Equal(t, 4, result.Stops)
	assert.Equal(t, 4, composetest.Count(t, logPath, "up"))
	assert.Equal(t, 4, composetest.Count(t, logPath, "down"))

	for _, call := range composetest.Invocations(t, logPath) {
		if call.Subcommand == "up" {
			assert.Contains(t, call.Args, compose.DefaultLinuxOverlay)
			assert.Equal(t, "1000", call.UID)
			assert.NotEmpty(t, call.HostServicePath)
		}
	}

	assert.FileExists(t, filepath.Join(suite.FixtureDir, "artifacts", "hello.zip"))
	assert.FileExists(t, filepath.Join(suite.FixtureDir, "artifacts", "layer.zip"))
}

func TestRun_AssertionFailureStillTearsDown(t *testing.T) {
	logPath := composetest.Setup(t, composetest.ModeReady)
	server := serviceStub(t, map[string]string{"/dev/layer": "hello from bash!"})
	suite := newFixtureSuite(t)

	result := run(t, testOptions(true, server.URL), suite)

	assert.Equal(t, 3, result.PassedCases)
	assert.Equal(t, 1, result.FailedCases)
	assert.False(t, result.Succeeded())

	failed := result.CaseResults[2]
	assert.Equal(t, ResultFailed, failed.Result)
	assert.Equal(t, PhaseProbing, failed.Phase)
	assert.Contains(t, failed.Error, `expected message "Hello from Bash!", got "hello from bash!"`)

	assert.Equal(t, result.Starts, result.Stops)
	assert.Equal(t, composetest.Count(t, logPath, "up"), composetest.Count(t, logPath, "down"))
}

func TestRun_PackagingFailureStartsNothing(t *testing.T) {
	logPath := composetest.Setup(t, composetest.ModeReady)
	suite := newFixtureSuite(t)
	require.NoError(t, os.Remove(filepath.Join(suite.FixtureDir, "handler.sh")))

	result := run(t, testOptions(true, "http://localhost:3000"), suite)

	assert.Equal(t, 4, result.ErrorCases)
	assert.Equal(t, 0, composetest.Count(t, logPath, "up"))
	for _, cr := range result.CaseResults {
		assert.Equal(t, ResultError, cr.Result)
		assert.Equal(t, PhasePackaging, cr.Phase)
		assert.Contains(t, cr.Error, "handler.sh")
	}
}

func TestRun_SetupFailureStartsNothing(t *testing.T) {
	logPath := composetest.Setup(t, composetest.ModeReady)
	suite := newFixtureSuite(t)
	suite.Setup = []string{"definitely-not-a-setup-command-xyz", "install"}

	result := run(t, testOptions(true, "http://localhost:3000"), suite)

	assert.Equal(t, 4, result.ErrorCases)
	assert.Equal(t, PhasePackaging, result.CaseResults[0].Phase)
	assert.Contains(t, result.CaseResults[0].Error, "fixture setup")
	assert.Equal(t, 0, composetest.Count(t, logPath, "up"))
}

func TestRun_ProcessExitsBeforeReady(t *testing.T) {
	logPath := composetest.Setup(t, composetest.ModeExit)
	suite := newFixtureSuite(t)
	suite.Cases = suite.Cases[:1]

	result := run(t, testOptions(true, "http://localhost:3000"), suite)

	require.Len(t, result.CaseResults, 1)
	cr := result.CaseResults[0]
	assert.Equal(t, ResultError, cr.Result)
	assert.Equal(t, PhaseAwaitingReady, cr.Phase)
	assert.Contains(t, cr.Error, "exited before marker")
	assert.Contains(t, cr.Output, "image not found")

	assert.Equal(t, 1, composetest.Count(t, logPath, "up"))
	assert.Equal(t, 1, composetest.Count(t, logPath, "down"))
}

func TestRun_ReadinessTimeout(t *testing.T) {
	logPath := composetest.Setup(t, composetest.ModeSilent)
	suite := newFixtureSuite(t)
	suite.Cases = suite.Cases[:1]

	opts := testOptions(true, "http://localhost:3000")
	opts.Readiness.Timeout = 300 * time.Millisecond
	result := run(t, opts, suite)

	cr := result.CaseResults[0]
	assert.Equal(t, ResultError, cr.Result)
	assert.Equal(t, PhaseAwaitingReady, cr.Phase)
	assert.Contains(t, cr.Error, "not seen within")
	assert.Equal(t, 1, composetest.Count(t, logPath, "down"))
}

func TestRun_FailFastSkipsRemainingCases(t *testing.T) {
	logPath := composetest.Setup(t, composetest.ModeReady)
	server := serviceStub(t, map[string]string{"/dev/hello": "Goodbye"})
	suite := newFixtureSuite(t)

	opts := testOptions(true, server.URL)
	opts.FailFast = true
	result := run(t, opts, suite)

	assert.Equal(t, 1, result.FailedCases)
	assert.Equal(t, 3, result.SkippedCases)
	assert.Equal(t, 1, composetest.Count(t, logPath, "up"))
	assert.Equal(t, 1, composetest.Count(t, logPath, "down"))
}

func TestRun_TeardownFailureKeepsCaseResult(t *testing.T) {
	composetest.Setup(t, composetest.ModeFailDown)
	server := serviceStub(t, map[string]string{"/dev/hello": "Goodbye"})
	suite := newFixtureSuite(t)
	suite.Cases = suite.Cases[:2]

	result := run(t, testOptions(true, server.URL), suite)

	assert.Equal(t, ResultFailed, result.CaseResults[0].Result)
	assert.Equal(t, PhaseProbing, result.CaseResults[0].Phase)

	// The probe passed; the failed teardown is recorded without failing the case.
	assert.Equal(t, ResultPassed, result.CaseResults[1].Result)
	assert.Equal(t, PhaseIdle, result.CaseResults[1].Phase)
	assert.Contains(t, result.CaseResults[1].TeardownError, "active endpoints")
	assert.Contains(t, result.CaseResults[0].TeardownError, "active endpoints")
	assert.Equal(t, 2, result.Starts)
	assert.Equal(t, 2, result.Stops)
}

func TestRun_CancelledContextSkipsCases(t *testing.T) {
	logPath := composetest.Setup(t, composetest.ModeReady)
	suite := newFixtureSuite(t)

	runner, err := NewRunner(testOptions(true, "http://localhost:3000"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := runner.Run(ctx, suite)
	require.NoError(t, err)

	assert.Equal(t, 4, result.ErrorCases+result.SkippedCases)
	assert.Equal(t, 0, composetest.Count(t, logPath, "up"))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantResult Result
		wantPhase  Phase
	}{
		{"nil", nil, ResultPassed, ""},
		{"packaging", &artifact.PackagingError{Archive: "layer.zip", File: "handler.sh", Err: fs.ErrNotExist}, ResultError, PhasePackaging},
		{"setup", &SetupError{Command: "npm ci", Err: errors.New("exit status 1")}, ResultError, PhasePackaging},
		{"start", &compose.StartError{Command: "docker-compose up", Err: errors.New("not found")}, ResultError, PhaseStarting},
		{"already up", compose.ErrAlreadyUp, ResultError, PhaseStarting},
		{"readiness timeout", &readiness.TimeoutError{Marker: "Server ready:", Timeout: time.Minute}, ResultError, PhaseAwaitingReady},
		{"exited", &readiness.ExitedError{Marker: "Server ready:"}, ResultError, PhaseAwaitingReady},
		{"network", &probe.NetworkError{Path: "/dev/hello", Err: errors.New("refused")}, ResultError, PhaseProbing},
		{"parse", &probe.ParseError{Path: "/dev/hello", Err: errors.New("bad json")}, ResultError, PhaseProbing},
		{"assertion", &probe.AssertionError{Path: "/dev/hello", Expected: "a", Actual: "b"}, ResultFailed, PhaseProbing},
		{"wrapped assertion", fmt.Errorf("case: %w", &probe.AssertionError{Path: "/dev/hello"}), ResultFailed, PhaseProbing},
		{"stop", &compose.StopError{Command: "docker-compose down", Err: errors.New("exit status 1")}, ResultError, PhaseTearingDown},
		{"unknown", errors.New("boom"), ResultError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, phase := ClassifyError(tt.err)
			assert.Equal(t, tt.wantResult, result)
			assert.Equal(t, tt.wantPhase, phase)
		})
	}
}

func TestPackage_BuildsWithoutStarting(t *testing.T) {
	logPath := composetest.Setup(t, composetest.ModeReady)
	suite := newFixtureSuite(t)

	runner, err := NewRunner(testOptions(false, "http://localhost:3000"), nil)
	require.NoError(t, err)

	paths, err := runner.Package(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(suite.FixtureDir, artifact.DefaultOutputDir, "hello.zip"),
		filepath.Join(suite.FixtureDir, artifact.DefaultOutputDir, "layer.zip"),
	}, paths)
	assert.Equal(t, 0, composetest.Count(t, logPath, "up"))
}

func TestPackage_NoArtifacts(t *testing.T) {
	suite := newFixtureSuite(t)
	suite.Artifacts = nil

	runner, err := NewRunner(testOptions(true, "http://localhost:3000"), nil)
	require.NoError(t, err)

	paths, err := runner.Package(context.Background(), suite)
	require.NoError(t, err)
	assert.Empty(t, paths)
}
