package scenario

import (
	"time"

	"scenarioctl/internal/artifact"
)

// Result represents the result of a case or suite
type Result string

const (
	// ResultPassed indicates the case passed successfully
	ResultPassed Result = "PASSED"
	// ResultFailed indicates the probe answered with an unexpected message
	ResultFailed Result = "FAILED"
	// ResultSkipped indicates the case was not run
	ResultSkipped Result = "SKIPPED"
	// ResultError indicates a lifecycle phase failed before an assertion could be made
	ResultError Result = "ERROR"
)

// Phase is a state of the per-suite lifecycle.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhasePackaging     Phase = "packaging"
	PhaseStarting      Phase = "starting"
	PhaseAwaitingReady Phase = "awaiting-ready"
	PhaseProbing       Phase = "probing"
	PhaseTearingDown   Phase = "tearing-down"
)

// Expectation is the response a case expects.
type Expectation struct {
	// Message must equal the "message" field of the JSON response exactly
	Message string `yaml:"message" json:"message"`
}

// Case is one probe against a running environment.
type Case struct {
	// Description is a human-readable name for the case
	Description string `yaml:"description" json:"description"`
	// Path is the URL path probed, resolved against the base URL
	Path string `yaml:"path" json:"path"`
	// Expected is the expected response
	Expected Expectation `yaml:"expected" json:"expected"`
}

// Suite is a scenario file: a fixture, the archives built from it and the cases run against it.
type Suite struct {
	// Name is the unique identifier for the suite
	Name string `yaml:"name" json:"name"`
	// Description provides a human-readable suite description
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// FixtureDir is the compose project directory, relative to the suite file
	FixtureDir string `yaml:"fixtureDir,omitempty" json:"fixture_dir"`
	// Setup is an optional command run in the fixture directory before packaging,
	// e.g. ["npm", "ci"]
	Setup []string `yaml:"setup,omitempty" json:"setup,omitempty"`
	// Artifacts are built once per suite before any environment starts
	Artifacts []artifact.Spec `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	// Cases are run in order, each against a freshly started environment
	Cases []Case `yaml:"cases" json:"cases"`

	// Path is the file the suite was loaded from
	Path string `yaml:"-" json:"path,omitempty"`
}

// CaseResult represents the result of a single case
type CaseResult struct {
	// Case is the case that was executed
	Case Case `json:"case"`
	// Result is the outcome of the case
	Result Result `json:"result"`
	// Phase is the lifecycle phase the case ended in
	Phase Phase `json:"phase"`
	// StartTime when case execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when case execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of case execution, including start and teardown
	Duration time.Duration `json:"duration"`
	// Error message if the case failed or had an error
	Error string `json:"error,omitempty"`
	// TeardownError is set when stopping the environment failed. It does not
	// change Result.
	TeardownError string `json:"teardown_error,omitempty"`
	// Output is the tail of the compose output, kept for cases that did not pass
	Output string `json:"output,omitempty"`
}

// SuiteResult represents the overall result of running one suite
type SuiteResult struct {
	// RunID identifies this run in logs and reports
	RunID string `json:"run_id"`
	// Suite is the name of the suite
	Suite string `json:"suite"`
	// StartTime when suite execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when suite execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of suite execution
	Duration time.Duration `json:"duration"`
	// Enabled records whether the run gate was open
	Enabled bool `json:"enabled"`
	// TotalCases is the total number of cases in the suite
	TotalCases int `json:"total_cases"`
	// PassedCases is the number of cases that passed
	PassedCases int `json:"passed_cases"`
	// FailedCases is the number of cases that failed
	FailedCases int `json:"failed_cases"`
	// SkippedCases is the number of cases that were skipped
	SkippedCases int `json:"skipped_cases"`
	// ErrorCases is the number of cases that had errors
	ErrorCases int `json:"error_cases"`
	// Starts is the number of environment starts issued
	Starts int `json:"starts"`
	// Stops is the number of environment stops issued
	Stops int `json:"stops"`
	// CaseResults contains individual case results in run order
	CaseResults []CaseResult `json:"case_results"`
}

// Succeeded reports whether no case failed or errored.
func (r *SuiteResult) Succeeded() bool {
	return r.FailedCases == 0 && r.ErrorCases == 0
}

func (r *SuiteResult) add(cr CaseResult) {
	r.CaseResults = append(r.CaseResults, cr)
	switch cr.Result {
	case ResultPassed:
		r.PassedCases++
	case ResultFailed:
		r.FailedCases++
	case ResultSkipped:
		r.SkippedCases++
	case ResultError:
		r.ErrorCases++
	}
}

// Reporter receives progress while a suite runs.
type Reporter interface {
	// ReportStart is called when suite execution begins
	ReportStart(suite Suite, enabled bool)
	// ReportCaseStart is called when a case begins
	ReportCaseStart(c Case)
	// ReportCaseResult is called when a case completes
	ReportCaseResult(result CaseResult)
	// ReportSuiteResult is called when all cases complete
	ReportSuiteResult(result SuiteResult)
}
