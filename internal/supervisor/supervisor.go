// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/invowk/hotswap/internal/issue"
	"github.com/invowk/hotswap/internal/protocol"

	"github.com/charmbracelet/log"
)

const (
	// EnvAddr carries the engine websocket URL to the host's loader hook.
	EnvAddr = "HOTSWAP_ADDR"

	// clearSequence resets the terminal.
	clearSequence = "\x1bc"

	waitDelay = 2 * time.Second
)

// ErrNoCommand is returned by New when Config.Command is empty.
var ErrNoCommand = errors.New("supervisor: no command")

type (
	// Config configures a Supervisor.
	Config struct {
		// Command is the host program and its arguments.
		Command []string
		// Dir is the working directory. Empty uses the current one.
		Dir string
		// Addr is exported to the host as HOTSWAP_ADDR.
		Addr string
		// Env holds extra KEY=VALUE pairs appended to the inherited environment.
		Env []string
		// ClearScreen clears the terminal before each (re)start.
		ClearScreen bool

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer

		Logger *log.Logger
	}

	// Exit reports a host that ended on its own.
	Exit struct {
		Code int
		Err  error
	}

	// Supervisor owns at most one running host process.
	Supervisor struct {
		cfg    Config
		logger *log.Logger

		// ops serializes Start, Restart and Stop.
		ops sync.Mutex

		mu       sync.Mutex
		current  *process
		restarts int
		exits    chan Exit
	}

	process struct {
		cmd    *exec.Cmd
		cancel context.CancelFunc
		done   chan struct{}
		// stopping is set before the supervisor kills the process on purpose.
		stopping bool
	}
)

// New creates a supervisor. The command does not start until Start is called.
func New(cfg Config) (*Supervisor, error) {
	if len(cfg.Command) == 0 {
		return nil, ErrNoCommand
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Supervisor{
		cfg:    cfg,
		logger: logger,
		exits:  make(chan Exit, 1),
	}, nil
}

// Exited delivers the status of a host that ended without being asked to.
// The supervisor keeps waiting for the next Restart.
func (s *Supervisor) Exited() <-chan Exit { return s.exits }

// Restarts returns how many times the host was restarted.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Running reports whether a host process is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	select {
	case <-s.current.done:
		return false
	default:
		return true
	}
}

// Start launches the host. It fails if one is already running.
func (s *Supervisor) Start(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	if s.Running() {
		return fmt.Errorf("supervisor: %s is already running", s.cfg.Command[0])
	}
	s.clearScreen()
	return s.spawn(ctx)
}

// Restart kills the running host, if any, and starts a new one.
func (s *Supervisor) Restart(ctx context.Context, reason string) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.kill()
	s.clearScreen()

	s.mu.Lock()
	s.restarts++
	n := s.restarts
	s.mu.Unlock()

	s.logger.Info("restarting host", "reason", reason, "restarts", n)
	return s.spawn(ctx)
}

// Stop kills the running host and waits for it.
func (s *Supervisor) Stop() {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.kill()
}

// Watch restarts the host for every full-reload read from ep until ctx ends
// or ep closes.
func (s *Supervisor) Watch(ctx context.Context, ep protocol.Endpoint) error {
	for {
		msg, err := ep.Receive(ctx)
		if err != nil {
			if errors.Is(err, protocol.ErrEndpointClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("supervisor: receive: %w", err)
		}
		reload, ok := msg.(protocol.FullReload)
		if !ok {
			continue
		}
		reason := "full reload requested by " + reload.Path
		if reload.ShouldBeReloadable {
			reason = "boundary imported statically: " + reload.Path
		}
		if err := s.Restart(ctx, reason); err != nil {
			s.logger.Error("restart failed", "error", err)
		}
	}
}

func (s *Supervisor) spawn(ctx context.Context) error {
	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	if s.cfg.Addr != "" {
		cmd.Env = append(cmd.Env, EnvAddr+"="+s.cfg.Addr)
	}
	cmd.Stdin = s.cfg.Stdin
	cmd.Stdout = s.cfg.Stdout
	cmd.Stderr = s.cfg.Stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		cancel()
		return issue.NewErrorContext().
			WithOperation("start host command").
			WithResource(s.cfg.Command[0]).
			WithSuggestion("Check that the command after -- runs on its own").
			WithGuide(issue.HostCommandFailedID).
			Wrap(err).
			BuildError()
	}

	p := &process{cmd: cmd, cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	s.logger.Info("host started", "pid", cmd.Process.Pid, "command", s.cfg.Command[0])

	go s.wait(p)
	return nil
}

func (s *Supervisor) wait(p *process) {
	err := p.cmd.Wait()
	p.cancel()

	s.mu.Lock()
	stopping := p.stopping
	s.mu.Unlock()
	close(p.done)

	if stopping {
		return
	}

	exit := Exit{Code: p.cmd.ProcessState.ExitCode()}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		exit.Err = err
	}
	if exit.Code == 0 && exit.Err == nil {
		s.logger.Info("host closed, still watching for changes")
	} else {
		s.logger.Warn("host died, still watching for changes", "code", exit.Code, "error", err)
	}
	select {
	case s.exits <- exit:
	default:
	}
}

// kill stops the current process and waits for it. Callers hold s.ops.
func (s *Supervisor) kill() {
	s.mu.Lock()
	p := s.current
	s.current = nil
	if p != nil {
		p.stopping = true
	}
	s.mu.Unlock()

	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (s *Supervisor) clearScreen() {
	if s.cfg.ClearScreen {
		_, _ = io.WriteString(s.cfg.Stdout, clearSequence)
	}
}
