// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/events"
)

// DefaultStopGrace is how long a plane has to exit after SIGTERM
// before it is killed.
const DefaultStopGrace = 5 * time.Second

// ErrGaveUp is returned by Run when at least one plane exhausted its
// restart budget.
var ErrGaveUp = errors.New("supervisor: plane restart budget exhausted")

// Plane is one child process under supervision.
type Plane struct {
	Name   string
	Binary string
	Args   []string

	// Env is appended to the supervisor's own environment.
	Env []string
}

// Options configures a Supervisor.
type Options struct {
	Planes  []Plane
	Policy  Policy
	Backoff Backoff

	// MaxRestarts bounds restarts of one plane within Window. Zero
	// disables restarts regardless of Policy.
	MaxRestarts int
	Window      time.Duration

	StopGrace time.Duration

	// StatePath receives the state file after every change. Empty
	// keeps state in memory only.
	StatePath string

	// Stdout and Stderr receive child output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	Sink   events.Sink
	Clock  clock.Clock
	Logger *slog.Logger
}

// Supervisor starts planes, restarts them per policy, and stops them
// when its context ends.
type Supervisor struct {
	options Options
	clock   clock.Clock
	sink    events.Sink
	logger  *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates a supervisor. Nothing starts until Run.
func New(options Options) *Supervisor {
	if options.StopGrace <= 0 {
		options.StopGrace = DefaultStopGrace
	}
	supervisor := &Supervisor{
		options: options,
		clock:   options.Clock,
		sink:    options.Sink,
		logger:  options.Logger,
	}
	if supervisor.clock == nil {
		supervisor.clock = clock.Real()
	}
	if supervisor.sink == nil {
		supervisor.sink = events.Discard
	}
	if supervisor.logger == nil {
		supervisor.logger = slog.New(slog.DiscardHandler)
	}
	supervisor.state = State{BootPID: os.Getpid()}
	for _, plane := range options.Planes {
		supervisor.state.Planes = append(supervisor.state.Planes, PlaneState{Name: plane.Name, Binary: plane.Binary})
	}
	return supervisor
}

// State returns a copy of the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	state.Planes = slices.Clone(s.state.Planes)
	return state
}

// Run supervises every plane until ctx is cancelled or no plane is
// left running. Cancellation stops all planes and returns nil. Planes
// that gave up make Run return ErrGaveUp once the rest have ended.
func (s *Supervisor) Run(ctx context.Context) error {
	s.update(func(state *State) { state.BootedAt = s.clock.Now() })

	var wg sync.WaitGroup
	for index, plane := range s.options.Planes {
		wg.Go(func() { s.supervise(ctx, index, plane) })
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	var gaveUp []string
	for _, plane := range s.State().Planes {
		if plane.GaveUp {
			gaveUp = append(gaveUp, plane.Name)
		}
	}
	if len(gaveUp) > 0 {
		return fmt.Errorf("%w: %v", ErrGaveUp, gaveUp)
	}
	return nil
}

func (s *Supervisor) supervise(ctx context.Context, index int, plane Plane) {
	logger := s.logger.With("plane", plane.Name)
	var restarts []time.Time

	for {
		cmd, err := s.start(plane)
		if err != nil {
			logger.Error("starting plane failed", "binary", plane.Binary, "error", err)
			s.update(func(state *State) {
				state.Planes[index].LastExit = err.Error()
				state.Planes[index].GaveUp = true
			})
			return
		}
		now := s.clock.Now()
		s.update(func(state *State) {
			state.Planes[index].PID = cmd.Process.Pid
			state.Planes[index].Starts++
			state.Planes[index].LastStart = now
			state.Planes[index].LastExit = ""
		})
		logger.Info("plane started", "pid", cmd.Process.Pid)
		s.sink.Emit(events.New(now, SystemWorkspace, "", events.RunProvisioned, events.LevelInfo,
			"plane started", map[string]any{"plane": plane.Name, "pid": cmd.Process.Pid}))

		exited := make(chan error, 1)
		go func() { exited <- cmd.Wait() }()

		var exitErr error
		select {
		case exitErr = <-exited:
		case <-ctx.Done():
			exitErr = s.stop(cmd, exited)
			s.recordExit(index, plane, exitErr)
			return
		}
		s.recordExit(index, plane, exitErr)

		if !s.options.Policy.ShouldRestart(exitErr) {
			logger.Info("plane exited, not restarting", "policy", s.options.Policy.String(), "exit", describeExit(exitErr))
			return
		}

		now = s.clock.Now()
		restarts = slices.DeleteFunc(restarts, func(at time.Time) bool {
			return s.options.Window > 0 && now.Sub(at) >= s.options.Window
		})
		if len(restarts) >= s.options.MaxRestarts {
			logger.Error("plane restart budget exhausted",
				"restarts", len(restarts),
				"window", s.options.Window,
			)
			s.update(func(state *State) { state.Planes[index].GaveUp = true })
			return
		}

		delay := s.options.Backoff.Delay(len(restarts))
		logger.Warn("plane exited, restarting", "exit", describeExit(exitErr), "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(delay):
		}
		restarts = append(restarts, s.clock.Now())
		s.update(func(state *State) { state.Planes[index].Restarts++ })
	}
}

func (s *Supervisor) start(plane Plane) (*exec.Cmd, error) {
	cmd := exec.Command(plane.Binary, plane.Args...)
	if len(plane.Env) > 0 {
		cmd.Env = append(os.Environ(), plane.Env...)
	}
	cmd.Stdout = s.options.Stdout
	cmd.Stderr = s.options.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// stop sends SIGTERM and waits out the grace period, then kills.
func (s *Supervisor) stop(cmd *exec.Cmd, exited <-chan error) error {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("signalling plane failed", "pid", cmd.Process.Pid, "error", err)
	}
	select {
	case err := <-exited:
		return err
	case <-s.clock.After(s.options.StopGrace):
	}
	s.logger.Warn("plane ignored SIGTERM, killing", "pid", cmd.Process.Pid, "grace", s.options.StopGrace)
	cmd.Process.Kill()
	return <-exited
}

func (s *Supervisor) recordExit(index int, plane Plane, exitErr error) {
	description := describeExit(exitErr)
	s.update(func(state *State) {
		state.Planes[index].PID = 0
		state.Planes[index].LastExit = description
	})
	level := events.LevelInfo
	if exitErr != nil {
		level = events.LevelWarn
	}
	s.sink.Emit(events.New(s.clock.Now(), SystemWorkspace, "", events.RunTerminated, level,
		"plane exited", map[string]any{"plane": plane.Name, "exit": description}))
}

// update applies change under the lock and persists the result.
func (s *Supervisor) update(change func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	change(&s.state)
	s.state.UpdatedAt = s.clock.Now()
	if s.options.StatePath == "" {
		return
	}
	if err := WriteState(s.options.StatePath, s.state); err != nil {
		s.logger.Warn("writing supervisor state failed", "path", s.options.StatePath, "error", err)
	}
}

func describeExit(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}
