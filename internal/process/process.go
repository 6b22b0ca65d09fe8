package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"scenarioctl/pkg/logging"
)

// For mocking in tests
var execCommand = exec.CommandContext

const (
	lineBufferSize     = 256
	maxLineLength      = 1024 * 1024
	defaultStopTimeout = 10 * time.Second
)

// Command describes an external command invocation: what to run, where, and with
// which environment overrides. Env entries are applied on top of the inherited
// process environment; a nil Env runs with the default environment.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// environ returns the child environment, or nil to inherit the parent's unchanged.
func (c Command) environ() []string {
	if len(c.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, c.Env[k]))
	}
	return env
}

// StartError reports that an external command could not be spawned.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Handle is a running external process whose stdout and stderr are merged into a
// single line stream.
type Handle struct {
	command string
	cmd     *exec.Cmd

	lines   chan string
	drained chan struct{}
	exited  chan struct{}
	capture *logCapture

	drainOnce sync.Once

	mu  sync.RWMutex
	err error
}

// Start spawns cmd and returns a handle to its combined output and exit status.
// Callers must consume Lines or call Drain, otherwise the reader stalls once its
// buffer fills and later output is only visible through Output.
func Start(ctx context.Context, c Command) (*Handle, error) {
	cmd := execCommand(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.environ()

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, &StartError{Command: c.String(), Err: fmt.Errorf("failed to create output pipe: %w", err)}
	}
	cmd.Stdout = writer
	cmd.Stderr = writer

	if err := cmd.Start(); err != nil {
		reader.Close()
		writer.Close()
		return nil, &StartError{Command: c.String(), Err: err}
	}
	// The child holds its own copy of the write end; EOF arrives once it and any
	// descendants have closed theirs.
	writer.Close()

	h := &Handle{
		command: c.String(),
		cmd:     cmd,
		lines:   make(chan string, lineBufferSize),
		drained: make(chan struct{}),
		exited:  make(chan struct{}),
		capture: newLogCapture(defaultCaptureLines),
	}

	logging.Debug("Process", "Started %s (PID: %d, dir: %s)", h.command, cmd.Process.Pid, c.Dir)

	go h.readOutput(reader)
	go h.wait()

	return h, nil
}

// readOutput scans the merged output pipe line by line until EOF.
func (h *Handle) readOutput(reader *os.File) {
	defer close(h.drained)
	defer close(h.lines)
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		line := scanner.Text()
		h.capture.add(line)
		h.lines <- line
	}
	if err := scanner.Err(); err != nil {
		logging.Debug("Process", "Output of %s ended with read error: %v", h.command, err)
	}
}

func (h *Handle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.err = err
	h.mu.Unlock()

	if err != nil {
		logging.Debug("Process", "%s exited with: %v", h.command, err)
	} else {
		logging.Debug("Process", "%s exited cleanly", h.command)
	}
	close(h.exited)
}

// Command returns the rendered command line of the process.
func (h *Handle) Command() string { return h.command }

// PID returns the operating system process id.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Lines streams combined output lines in order. It is closed at end of stream.
func (h *Handle) Lines() <-chan string { return h.lines }

// Exited is closed once the process has terminated.
func (h *Handle) Exited() <-chan struct{} { return h.exited }

// Drained is closed once the output stream has reached EOF and every line has been captured.
func (h *Handle) Drained() <-chan struct{} { return h.drained }

// Err returns the exit error of the process, or nil while it is running or after a clean exit.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Output returns the retained tail of the combined output.
func (h *Handle) Output() string { return h.capture.text() }

// Drain discards any lines not yet consumed so the process never blocks on its
// output. It is safe to call more than once and concurrently with other readers.
func (h *Handle) Drain() {
	h.drainOnce.Do(func() {
		go func() {
			for range h.lines {
			}
		}()
	})
}

// Wait blocks until the process exits and its output is drained, or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.exited:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-h.drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	return h.Err()
}

// Stop asks the process to terminate with SIGTERM and kills it if it has not
// exited within timeout. A non-positive timeout uses a ten second grace period.
func (h *Handle) Stop(timeout time.Duration) error {
	select {
	case <-h.exited:
		return nil
	default:
	}
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}

	process := h.cmd.Process
	if err := process.Signal(syscall.SIGTERM); err != nil {
		logging.Debug("Process", "SIGTERM failed for %s, killing: %v", h.command, err)
		if killErr := process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill %q: %w", h.command, killErr)
		}
	}

	select {
	case <-h.exited:
		return nil
	case <-time.After(timeout):
		logging.Debug("Process", "Graceful shutdown timeout for %s, forcing kill", h.command)
		if err := process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill %q: %w", h.command, err)
		}
		<-h.exited
		return nil
	}
}

// Run spawns c, waits for it to finish, and returns its combined output.
// A non-zero exit is reported as an error that includes the output tail.
func Run(ctx context.Context, c Command) (string, error) {
	h, err := Start(ctx, c)
	if err != nil {
		return "", err
	}
	h.Drain()

	if err := h.Wait(ctx); err != nil {
		return h.Output(), fmt.Errorf("%q failed: %w\n%s", h.command, err, h.Output())
	}
	return h.Output(), nil
}
