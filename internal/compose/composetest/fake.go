// Package composetest provides a fake compose tool for tests.
//
// The fake is the test binary itself, re-executed through a TestHelperProcess
// function that calls Main. Every invocation is appended to a log file so tests
// can count "up" and "down" calls and inspect the arguments and environment the
// orchestrator passed.
package composetest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	EnvWantHelper = "GO_WANT_HELPER_PROCESS"
	EnvMode       = "FAKE_COMPOSE_MODE"
	EnvLog        = "FAKE_COMPOSE_LOG"

	stopFile = ".fake-compose.stop"
)

// Modes select how "up" and "down" behave.
const (
	// ModeReady prints some boot output, the readiness marker twice, then runs until "down".
	ModeReady = "ready"
	// ModeExit makes "up" fail before printing the marker.
	ModeExit = "exit"
	// ModeSilent never prints the marker but keeps running until "down".
	ModeSilent = "silent"
	// ModeFailDown behaves like ModeReady but "down" exits non-zero.
	ModeFailDown = "fail-down"
)

// Tool returns the compose tool prefix that re-executes the test binary as the
// fake, dispatching to the named helper test.
func Tool(helperTest string) []string {
	return []string{os.Args[0], "-test.run=" + helperTest, "--"}
}

// Setup enables the fake for the current test in the given mode and returns the
// invocation log path.
func Setup(t testing.TB, mode string) string {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "compose.log")
	t.Setenv(EnvWantHelper, "1")
	t.Setenv(EnvMode, mode)
	t.Setenv(EnvLog, logPath)
	return logPath
}

// Invocation is one recorded call of the fake.
type Invocation struct {
	Subcommand      string
	Args            []string
	HostServicePath string
	UID             string
	GID             string
}

// Invocations reads the log written by the fake. A missing log means no calls.
func Invocations(t testing.TB, logPath string) []Invocation {
	t.Helper()
	f, err := os.Open(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to open fake compose log: %v", err)
	}
	defer f.Close()

	var calls []Invocation
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != 5 {
			continue
		}
		calls = append(calls, Invocation{
			Subcommand:      fields[0],
			Args:            strings.Fields(fields[1]),
			HostServicePath: fields[2],
			UID:             fields[3],
			GID:             fields[4],
		})
	}
	return calls
}

// Count returns how many times the fake ran the given subcommand.
func Count(t testing.TB, logPath, subcommand string) int {
	t.Helper()
	n := 0
	for _, call := range Invocations(t, logPath) {
		if call.Subcommand == subcommand {
			n++
		}
	}
	return n
}

// Main runs the fake when the helper environment is set and exits the process.
// It returns immediately otherwise.
func Main() {
	if os.Getenv(EnvWantHelper) != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "fake compose: no subcommand")
		os.Exit(2)
	}
	args = args[1:]
	subcommand := args[len(args)-1]
	mode := os.Getenv(EnvMode)

	record(subcommand, args)

	switch subcommand {
	case "up":
		os.Exit(up(mode))
	case "down":
		os.Exit(down(mode))
	}
	fmt.Fprintf(os.Stderr, "fake compose: unknown subcommand %q\n", subcommand)
	os.Exit(2)
}

func record(subcommand string, args []string) {
	logPath := os.Getenv(EnvLog)
	if logPath == "" {
		return
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s\t%s\t%s\t%s\t%s\n", subcommand, strings.Join(args, " "),
		os.Getenv("HOST_SERVICE_PATH"), os.Getenv("UID"), os.Getenv("GID"))
}

func up(mode string) int {
	os.Remove(stopFile)

	fmt.Println("Creating network \"fixture_default\" with the default driver")
	fmt.Println("Creating fixture_app_1 ... done")
	switch mode {
	case ModeExit:
		fmt.Fprintln(os.Stderr, "ERROR: for app  Cannot start service app: image not found")
		return 1
	case ModeSilent:
		fmt.Println("app_1  | Serverless: Starting Offline")
	default:
		fmt.Println("app_1  | Serverless: Starting Offline")
		fmt.Fprintln(os.Stderr, "app_1  | Server ready: http://0.0.0.0:3000")
		fmt.Println("app_1  | Server ready: http://0.0.0.0:3000")
	}

	deadline := time.Now().Add(time.Minute)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(stopFile); err == nil {
			fmt.Println("Gracefully stopping... (press Ctrl+C again to force)")
			return 0
		}
		time.Sleep(20 * time.Millisecond)
	}
	return 0
}

func down(mode string) int {
	os.WriteFile(stopFile, nil, 0644)
	if mode == ModeFailDown {
		fmt.Fprintln(os.Stderr, "ERROR: network fixture_default has active endpoints")
		return 2
	}
	fmt.Println("Removing fixture_app_1 ... done")
	fmt.Println("Removing network fixture_default")
	return 0
}
