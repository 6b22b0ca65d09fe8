package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"scenarioctl/internal/color"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	passedStyle  = lipgloss.NewStyle().Foreground(color.Success).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(color.Error).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(color.Warning)
	mutedStyle   = lipgloss.NewStyle().Foreground(color.Muted)
	outputStyle  = lipgloss.NewStyle().Foreground(color.Muted).PaddingLeft(6)
)

// consoleReporter prints human-readable progress
type consoleReporter struct {
	out     io.Writer
	verbose bool
}

// NewConsoleReporter creates a reporter for interactive use. Verbose mode adds
// suite details and the compose output of cases that did not pass.
func NewConsoleReporter(out io.Writer, verbose bool) Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &consoleReporter{out: out, verbose: verbose}
}

// ReportStart is called when suite execution begins
func (r *consoleReporter) ReportStart(suite Suite, enabled bool) {
	fmt.Fprintf(r.out, "%s\n", titleStyle.Render("▶ Suite "+suite.Name))
	if suite.Description != "" {
		fmt.Fprintf(r.out, "  %s\n", mutedStyle.Render(suite.Description))
	}
	if r.verbose {
		fmt.Fprintf(r.out, "  %s\n", mutedStyle.Render("Fixture: "+suite.FixtureDir))
		for _, a := range suite.Artifacts {
			fmt.Fprintf(r.out, "  %s\n", mutedStyle.Render(fmt.Sprintf("Artifact: %s (%s)", a.ArchiveName, strings.Join(a.SourceFiles, ", "))))
		}
	}
	if !enabled {
		fmt.Fprintf(r.out, "  %s\n", skippedStyle.Render("Runs disabled, all cases will be skipped"))
	}
	fmt.Fprintln(r.out)
}

// ReportCaseStart is called when a case begins
func (r *consoleReporter) ReportCaseStart(c Case) {
	if r.verbose {
		fmt.Fprintf(r.out, "  … %s %s\n", c.Description, mutedStyle.Render("GET "+c.Path))
	}
}

// ReportCaseResult is called when a case completes
func (r *consoleReporter) ReportCaseResult(result CaseResult) {
	fmt.Fprintf(r.out, "  %s %s %s\n",
		resultLabel(result.Result),
		result.Case.Description,
		mutedStyle.Render(fmt.Sprintf("(%v)", result.Duration.Round(time.Millisecond))))

	if result.Result == ResultFailed || result.Result == ResultError {
		fmt.Fprintf(r.out, "      %s %s\n", failedStyle.Render(string(result.Phase)+":"), result.Error)
		if r.verbose && result.Output != "" {
			fmt.Fprintln(r.out, outputStyle.Render(strings.TrimRight(result.Output, "\n")))
		}
	} else if result.Result == ResultSkipped && r.verbose && result.Error != "" {
		fmt.Fprintf(r.out, "      %s\n", mutedStyle.Render(result.Error))
	}
	if result.TeardownError != "" {
		fmt.Fprintf(r.out, "      %s %s\n", skippedStyle.Render("teardown:"), result.TeardownError)
	}
}

// ReportSuiteResult is called when all cases complete
func (r *consoleReporter) ReportSuiteResult(result SuiteResult) {
	parts := []string{passedStyle.Render(fmt.Sprintf("%d passed", result.PassedCases))}
	if result.FailedCases > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d failed", result.FailedCases)))
	}
	if result.ErrorCases > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d errors", result.ErrorCases)))
	}
	if result.SkippedCases > 0 {
		parts = append(parts, skippedStyle.Render(fmt.Sprintf("%d skipped", result.SkippedCases)))
	}

	fmt.Fprintf(r.out, "\n  %s %s\n", strings.Join(parts, ", "),
		mutedStyle.Render(fmt.Sprintf("of %d in %v", result.TotalCases, result.Duration.Round(time.Millisecond))))
	if r.verbose {
		fmt.Fprintf(r.out, "  %s\n", mutedStyle.Render(fmt.Sprintf("Run %s: %d start(s), %d stop(s)", result.RunID, result.Starts, result.Stops)))
	}
	fmt.Fprintln(r.out)
}

func resultLabel(result Result) string {
	switch result {
	case ResultPassed:
		return passedStyle.Render("✓ PASS ")
	case ResultFailed:
		return failedStyle.Render("✗ FAIL ")
	case ResultError:
		return failedStyle.Render("! ERROR")
	case ResultSkipped:
		return skippedStyle.Render("- SKIP ")
	default:
		return "?"
	}
}

// NewQuietReporter creates a reporter that only outputs essential information
func NewQuietReporter(out io.Writer) Reporter {
	if out == nil {
		out = io.Discard
	}
	return &quietReporter{out: out}
}

// quietReporter implements minimal output for CI/CD integration
type quietReporter struct {
	out io.Writer
}

func (r *quietReporter) ReportStart(suite Suite, enabled bool) {}

func (r *quietReporter) ReportCaseStart(c Case) {}

func (r *quietReporter) ReportCaseResult(result CaseResult) {
	// Only report failures
	if result.Result == ResultFailed || result.Result == ResultError {
		fmt.Fprintf(r.out, "%s %s [%s]: %s\n", result.Result, result.Case.Path, result.Phase, result.Error)
	}
}

func (r *quietReporter) ReportSuiteResult(result SuiteResult) {
	switch {
	case !result.Succeeded():
		fmt.Fprintf(r.out, "%s: %d/%d cases failed\n", result.Suite, result.FailedCases+result.ErrorCases, result.TotalCases)
	case result.SkippedCases == result.TotalCases:
		fmt.Fprintf(r.out, "%s: all %d cases skipped\n", result.Suite, result.TotalCases)
	default:
		fmt.Fprintf(r.out, "%s: %d/%d cases passed\n", result.Suite, result.PassedCases, result.TotalCases)
	}
}

// NewJSONReporter creates a reporter that writes each suite result as JSON
func NewJSONReporter(out io.Writer) Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &jsonReporter{out: out}
}

// jsonReporter implements JSON output for machine consumption
type jsonReporter struct {
	out io.Writer
}

func (r *jsonReporter) ReportStart(suite Suite, enabled bool) {}

func (r *jsonReporter) ReportCaseStart(c Case) {}

func (r *jsonReporter) ReportCaseResult(result CaseResult) {}

func (r *jsonReporter) ReportSuiteResult(result SuiteResult) {
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(r.out, `{"error": "Failed to marshal results: %v"}`+"\n", err)
		return
	}
	fmt.Fprintln(r.out, string(jsonData))
}

// SaveReport writes results as an indented JSON array. When path is an
// existing directory a timestamped file is created inside it. The written
// file path is returned.
func SaveReport(path string, results []SuiteResult) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		timestamp := time.Now().Format("20060102-150405")
		path = filepath.Join(path, fmt.Sprintf("scenarioctl-report-%s.json", timestamp))
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	if results == nil {
		results = []SuiteResult{}
	}
	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}
