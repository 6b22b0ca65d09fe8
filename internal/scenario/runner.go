package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scenarioctl/internal/artifact"
	"scenarioctl/internal/compose"
	"scenarioctl/internal/probe"
	"scenarioctl/internal/process"
	"scenarioctl/internal/readiness"
	"scenarioctl/pkg/logging"
)

// SetupError reports a failed fixture setup command.
type SetupError struct {
	Command string
	Err     error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("fixture setup %q failed: %v", e.Command, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Options configures a Runner. It is built once from configuration and
// threaded into the runner rather than read from the environment per case.
type Options struct {
	// Enabled gates the whole run. When false every case is skipped and no
	// environment is ever started.
	Enabled bool
	// FailFast skips the remaining cases after the first one that does not pass.
	FailFast bool
	// Compose describes the topology; ProjectDir is taken from each suite.
	Compose compose.Config
	// Readiness is copied per case.
	Readiness readiness.Gate
	Probe     probe.Options
	// ArtifactsDir is relative to the fixture directory unless absolute.
	ArtifactsDir string
}

// Runner drives suites through packaging, start, readiness, probing and teardown.
type Runner struct {
	opts     Options
	reporter Reporter
	probe    *probe.Runner
	packager *artifact.Packager
}

// NewRunner validates the probe options and returns a runner that reports to reporter.
func NewRunner(opts Options, reporter Reporter) (*Runner, error) {
	probeRunner, err := probe.NewRunner(opts.Probe)
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = NewQuietReporter(nil)
	}
	return &Runner{
		opts:     opts,
		reporter: reporter,
		probe:    probeRunner,
		packager: artifact.NewPackager(opts.ArtifactsDir),
	}, nil
}

// Run executes one suite. The returned error is reserved for failures of the
// harness itself; case failures are recorded in the SuiteResult.
func (r *Runner) Run(ctx context.Context, suite *Suite) (*SuiteResult, error) {
	if suite == nil {
		return nil, fmt.Errorf("suite is nil")
	}

	result := &SuiteResult{
		RunID:      uuid.NewString(),
		Suite:      suite.Name,
		StartTime:  time.Now(),
		Enabled:    r.opts.Enabled,
		TotalCases: len(suite.Cases),
	}
	logging.Info("Scenario", "Run %s: suite %s with %d case(s)", result.RunID, suite.Name, len(suite.Cases))
	r.reporter.ReportStart(*suite, r.opts.Enabled)

	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		r.reporter.ReportSuiteResult(*result)
	}()

	if !r.opts.Enabled {
		r.skipAll(result, suite.Cases, PhaseIdle,
			"scenario runs are disabled; set DOCKER_COMPOSE_DETECTED or pass --enabled")
		return result, nil
	}

	// Packaging: once per suite, before any environment starts.
	if _, err := r.Package(ctx, suite); err != nil {
		logging.Error("Scenario", err, "Packaging failed for suite %s", suite.Name)
		now := time.Now()
		for _, c := range suite.Cases {
			r.record(result, CaseResult{
				Case:      c,
				Result:    ResultError,
				Phase:     PhasePackaging,
				StartTime: now,
				EndTime:   now,
				Error:     err.Error(),
			})
		}
		return result, nil
	}

	composeCfg := r.opts.Compose
	composeCfg.ProjectDir = suite.FixtureDir
	orch := compose.NewOrchestrator(composeCfg)
	defer func() {
		result.Starts = orch.Starts()
		result.Stops = orch.Stops()
	}()

	for i, c := range suite.Cases {
		if err := ctx.Err(); err != nil {
			r.skipAll(result, suite.Cases[i:], PhaseIdle, fmt.Sprintf("run cancelled: %v", err))
			break
		}

		r.reporter.ReportCaseStart(c)
		cr := r.runCase(ctx, orch, c)
		r.record(result, cr)

		if r.opts.FailFast && cr.Result != ResultPassed {
			r.skipAll(result, suite.Cases[i+1:], PhaseIdle, "skipped after an earlier case did not pass (fail-fast)")
			break
		}
	}
	return result, nil
}

// Package runs the fixture setup command, then builds every archive of the
// suite. It returns the paths of the written archives.
func (r *Runner) Package(ctx context.Context, suite *Suite) ([]string, error) {
	if len(suite.Setup) > 0 {
		cmd := process.Command{Name: suite.Setup[0], Args: suite.Setup[1:], Dir: suite.FixtureDir}
		logging.Info("Scenario", "Running fixture setup: %s", cmd)
		if _, err := process.Run(ctx, cmd); err != nil {
			return nil, &SetupError{Command: cmd.String(), Err: err}
		}
	}
	if len(suite.Artifacts) == 0 {
		return nil, nil
	}
	return r.packager.Build(ctx, suite.FixtureDir, suite.Artifacts)
}

// runCase runs one start/await/probe/teardown cycle.
func (r *Runner) runCase(ctx context.Context, orch *compose.Orchestrator, c Case) CaseResult {
	cr := CaseResult{Case: c, StartTime: time.Now(), Phase: PhaseStarting}

	var handle *process.Handle
	err := orch.Run(ctx, func(ctx context.Context, h *process.Handle) error {
		handle = h

		cr.Phase = PhaseAwaitingReady
		gate := r.opts.Readiness
		gate.Echo = func(line string) { logging.Debug("Compose", "%s", line) }
		if err := gate.Wait(ctx, h); err != nil {
			return err
		}

		cr.Phase = PhaseProbing
		return r.probe.Probe(ctx, c.Path, c.Expected.Message)
	})

	cr.EndTime = time.Now()
	cr.Duration = cr.EndTime.Sub(cr.StartTime)
	if stopErr := orch.LastStopError(); stopErr != nil {
		cr.TeardownError = stopErr.Error()
	}

	if err == nil {
		cr.Result = ResultPassed
		cr.Phase = PhaseIdle
		return cr
	}

	result, phase := ClassifyError(err)
	cr.Result = result
	if phase != "" {
		cr.Phase = phase
	}
	cr.Error = err.Error()
	if handle != nil {
		cr.Output = handle.Output()
	}
	return cr
}

func (r *Runner) record(result *SuiteResult, cr CaseResult) {
	result.add(cr)
	r.reporter.ReportCaseResult(cr)
}

func (r *Runner) skipAll(result *SuiteResult, cases []Case, phase Phase, reason string) {
	now := time.Now()
	for _, c := range cases {
		r.record(result, CaseResult{
			Case:      c,
			Result:    ResultSkipped,
			Phase:     phase,
			StartTime: now,
			EndTime:   now,
			Error:     reason,
		})
	}
}

// ClassifyError maps a lifecycle error to a case result and the phase it
// belongs to. Only an assertion mismatch is a FAILED case; every other error
// means the case could not be evaluated. The phase is empty for errors that
// do not identify one.
func ClassifyError(err error) (Result, Phase) {
	var (
		packagingErr *artifact.PackagingError
		setupErr     *SetupError
		startErr     *compose.StartError
		stopErr      *compose.StopError
		assertionErr *probe.AssertionError
		networkErr   *probe.NetworkError
		parseErr     *probe.ParseError
	)

	switch {
	case err == nil:
		return ResultPassed, ""
	case errors.As(err, &assertionErr):
		return ResultFailed, PhaseProbing
	case errors.As(err, &networkErr), errors.As(err, &parseErr):
		return ResultError, PhaseProbing
	case errors.Is(err, readiness.ErrTimeout), errors.Is(err, readiness.ErrProcessExited):
		return ResultError, PhaseAwaitingReady
	case errors.As(err, &startErr), errors.Is(err, compose.ErrAlreadyUp):
		return ResultError, PhaseStarting
	case errors.As(err, &packagingErr), errors.As(err, &setupErr):
		return ResultError, PhasePackaging
	case errors.As(err, &stopErr):
		return ResultError, PhaseTearingDown
	default:
		return ResultError, ""
	}
}
