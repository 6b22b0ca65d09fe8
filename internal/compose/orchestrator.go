package compose

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"scenarioctl/internal/process"
	"scenarioctl/pkg/logging"
)

// Defaults for the compose topology.
const (
	DefaultTool         = "docker-compose"
	DefaultFile         = "docker-compose.yml"
	DefaultLinuxOverlay = "docker-compose.linux.yml"
	DefaultStopTimeout  = 30 * time.Second

	teardownTimeout = 2 * time.Minute
)

// ErrAlreadyUp is returned by Start while a previously started topology has not been stopped.
var ErrAlreadyUp = errors.New("compose topology is already up")

// StartError reports that the "up" command could not be spawned.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("compose start failed (%s): %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// StopError reports a failed teardown.
type StopError struct {
	Command string
	Err     error
}

func (e *StopError) Error() string {
	return fmt.Sprintf("compose stop failed (%s): %v", e.Command, e.Err)
}

func (e *StopError) Unwrap() error { return e.Err }

// Config describes one compose topology.
type Config struct {
	// Tool is the compose executable followed by any fixed arguments,
	// e.g. ["docker", "compose"].
	Tool []string
	// Files are relative to ProjectDir.
	Files Files
	// ProjectDir is the working directory for every compose invocation and the
	// host path bound into the containers.
	ProjectDir string
	Platform   Platform
	Identity   Identity
	// StopTimeout bounds how long the "up" process may take to exit after "down".
	StopTimeout time.Duration
}

// Orchestrator starts and stops a compose topology. At most one topology is up
// at a time per orchestrator.
type Orchestrator struct {
	cfg Config

	mu     sync.Mutex
	handle *process.Handle
	starts int
	stops  int

	lastStopErr error
}

// NewOrchestrator fills in defaults for unset fields and returns an orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if len(cfg.Tool) == 0 {
		cfg.Tool = []string{DefaultTool}
	}
	if cfg.Files.Base == "" {
		cfg.Files.Base = DefaultFile
	}
	if cfg.Platform == "" {
		cfg.Platform = HostPlatform()
	}
	if cfg.Identity == (Identity{}) {
		cfg.Identity = HostIdentity()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.ProjectDir != "" {
		if abs, err := filepath.Abs(cfg.ProjectDir); err == nil {
			cfg.ProjectDir = abs
		}
	}
	return &Orchestrator{cfg: cfg}
}

// UpCommand returns the process invocation used by Start.
func (o *Orchestrator) UpCommand() process.Command {
	plan := BuildUpPlan(o.cfg.Tool, o.cfg.Files, o.cfg.Platform)
	return process.Command{
		Name: plan.Name(),
		Args: plan.Args(),
		Dir:  o.cfg.ProjectDir,
		Env:  BuildEnvironment(o.cfg.Platform, o.cfg.ProjectDir, o.cfg.Identity),
	}
}

// DownCommand returns the process invocation used by Stop. It carries no
// environment overrides.
func (o *Orchestrator) DownCommand() process.Command {
	plan := BuildDownPlan(o.cfg.Tool)
	return process.Command{
		Name: plan.Name(),
		Args: plan.Args(),
		Dir:  o.cfg.ProjectDir,
	}
}

// Start spawns "up" and returns the handle to its combined output. It does not
// wait for the topology to become ready.
func (o *Orchestrator) Start(ctx context.Context) (*process.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.handle != nil {
		return nil, ErrAlreadyUp
	}

	cmd := o.UpCommand()
	o.starts++
	logging.Info("Compose", "Starting topology in %s: %s", cmd.Dir, cmd)

	h, err := process.Start(ctx, cmd)
	if err != nil {
		return nil, &StartError{Command: cmd.String(), Err: err}
	}
	o.handle = h
	return h, nil
}

// Stop runs "down" in the project directory and waits for it, then makes sure
// the "up" process has exited. It is safe to call without a running topology,
// which covers cleanup after a partially failed start.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stops++
	h := o.handle
	o.handle = nil

	if h != nil {
		// Nobody may be reading the output anymore.
		h.Drain()
	}

	cmd := o.DownCommand()
	logging.Info("Compose", "Stopping topology in %s: %s", cmd.Dir, cmd)

	var errs []error
	if _, err := process.Run(ctx, cmd); err != nil {
		errs = append(errs, err)
	}

	if h != nil {
		select {
		case <-h.Exited():
		case <-time.After(o.cfg.StopTimeout):
			logging.Warn("Compose", "%s still running %s after down, terminating it", h.Command(), o.cfg.StopTimeout)
			if err := h.Stop(o.cfg.StopTimeout); err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			if err := h.Stop(o.cfg.StopTimeout); err != nil {
				errs = append(errs, err)
			}
			errs = append(errs, ctx.Err())
		}
	}

	if len(errs) > 0 {
		o.lastStopErr = &StopError{Command: cmd.String(), Err: errors.Join(errs...)}
		return o.lastStopErr
	}
	o.lastStopErr = nil
	logging.Debug("Compose", "Topology in %s stopped", cmd.Dir)
	return nil
}

// Run starts the topology, runs body against it and stops the topology on every
// exit path. Teardown uses a fresh context so a cancelled run still cleans up.
// A teardown failure is logged, never returned; see LastStopError.
// When a topology is already up, Run returns ErrAlreadyUp and leaves it running.
func (o *Orchestrator) Run(ctx context.Context, body func(ctx context.Context, h *process.Handle) error) error {
	h, err := o.Start(ctx)
	if errors.Is(err, ErrAlreadyUp) {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		if stopErr := o.Stop(stopCtx); stopErr != nil {
			logging.Error("Compose", stopErr, "Teardown failed")
		}
	}()

	if err != nil {
		return err
	}
	return body(ctx, h)
}

// LastStopError returns the error of the most recent Stop, or nil.
func (o *Orchestrator) LastStopError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastStopErr
}

// Starts returns how many times Start has been called.
func (o *Orchestrator) Starts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.starts
}

// Stops returns how many times Stop has been called.
func (o *Orchestrator) Stops() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stops
}
