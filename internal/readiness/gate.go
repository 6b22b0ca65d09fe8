// Package readiness detects when a started topology is ready by watching its
// combined output for a marker line.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scenarioctl/pkg/logging"
)

const (
	// DefaultMarker is printed by the service once it accepts connections.
	DefaultMarker = "Server ready:"

	DefaultTimeout   = 2 * time.Minute
	DefaultExitGrace = 2 * time.Second
)

var (
	// ErrTimeout matches every TimeoutError.
	ErrTimeout = errors.New("readiness timeout")
	// ErrProcessExited matches every ExitedError.
	ErrProcessExited = errors.New("process exited before ready")
)

// TimeoutError reports that the marker did not appear in time while the process kept running.
type TimeoutError struct {
	Marker  string
	Timeout time.Duration
	Lines   int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("marker %q not seen within %s (%d lines of output)", e.Marker, e.Timeout, e.Lines)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ExitedError reports that the output stream ended before the marker appeared.
type ExitedError struct {
	Marker string
	Lines  int
	// Err is the process exit error, if any.
	Err error
}

func (e *ExitedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("process exited before marker %q appeared (%d lines of output): %v", e.Marker, e.Lines, e.Err)
	}
	return fmt.Sprintf("process exited before marker %q appeared (%d lines of output)", e.Marker, e.Lines)
}

func (e *ExitedError) Is(target error) bool { return target == ErrProcessExited }

func (e *ExitedError) Unwrap() error { return e.Err }

// Stream is the observable side of a running process.
type Stream interface {
	Lines() <-chan string
	Exited() <-chan struct{}
	Err() error
}

// Gate waits for a marker line on a Stream.
type Gate struct {
	Marker  string
	Timeout time.Duration
	// ExitGrace is how long to keep reading after the process exited, for output
	// still buffered in the pipe.
	ExitGrace time.Duration
	// Echo receives every line read while waiting. Nil disables echoing.
	Echo func(line string)
}

// New returns a gate with the default marker and timeouts.
func New() *Gate {
	return &Gate{
		Marker:    DefaultMarker,
		Timeout:   DefaultTimeout,
		ExitGrace: DefaultExitGrace,
	}
}

// Wait blocks until a line containing the marker is read, returning nil. Only
// the first marker counts: once ready, the remaining output is drained in the
// background, still echoed, so the process never blocks on a full pipe.
// Wait fails with an ExitedError when the stream ends or the process exits
// first, with a TimeoutError when Timeout elapses, or with ctx's error.
func (g *Gate) Wait(ctx context.Context, s Stream) error {
	marker := g.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	grace := g.ExitGrace
	if grace <= 0 {
		grace = DefaultExitGrace
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		lines  = s.Lines()
		exited = s.Exited()
		graceC <-chan time.Time
		count  int
	)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if exited != nil {
					// The pipe can close just before the exit status is known.
					awaitExit(ctx, exited, grace)
				}
				return &ExitedError{Marker: marker, Lines: count, Err: s.Err()}
			}
			count++
			if g.Echo != nil {
				g.Echo(line)
			}
			if strings.Contains(line, marker) {
				logging.Debug("Readiness", "Marker %q seen after %d line(s)", marker, count)
				go g.follow(lines)
				return nil
			}

		case <-exited:
			// Keep reading whatever is still in the pipe, but not forever: a
			// grandchild holding the pipe open must not stall the gate.
			exited = nil
			graceTimer := time.NewTimer(grace)
			defer graceTimer.Stop()
			graceC = graceTimer.C

		case <-graceC:
			return &ExitedError{Marker: marker, Lines: count, Err: s.Err()}

		case <-timer.C:
			return &TimeoutError{Marker: marker, Timeout: timeout, Lines: count}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func awaitExit(ctx context.Context, exited <-chan struct{}, grace time.Duration) {
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-exited:
	case <-t.C:
	case <-ctx.Done():
	}
}

func (g *Gate) follow(lines <-chan string) {
	for line := range lines {
		if g.Echo != nil {
			g.Echo(line)
		}
	}
}
