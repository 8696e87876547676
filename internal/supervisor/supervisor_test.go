// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invowk/hotswap/internal/issue"
	"github.com/invowk/hotswap/internal/protocol"
)

// TestHelperProcess is the host program started by the tests below. It
// does nothing unless GO_WANT_HELPER_PROCESS is set.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("GO_HELPER_MODE") {
	case "print-addr":
		fmt.Fprint(os.Stdout, os.Getenv(EnvAddr))
		os.Exit(0)
	case "fail":
		os.Exit(3)
	default:
		time.Sleep(time.Minute)
		os.Exit(0)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func helperConfig(mode string, stdout *syncBuffer) Config {
	return Config{
		Command: []string{os.Args[0], "-test.run=^TestHelperProcess$", "--"},
		Env:     []string{"GO_WANT_HELPER_PROCESS=1", "GO_HELPER_MODE=" + mode},
		Addr:    "ws://127.0.0.1:4567/ws",
		Stdout:  stdout,
		Stderr:  stdout,
	}
}

func waitExit(t *testing.T, s *Supervisor) Exit {
	t.Helper()
	select {
	case exit := <-s.Exited():
		return exit
	case <-time.After(10 * time.Second):
		t.Fatal("host did not exit")
		return Exit{}
	}
}

func TestNew_RequiresCommand(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); !errors.Is(err, ErrNoCommand) {
		t.Errorf("New() error = %v, want ErrNoCommand", err)
	}
}

func TestStart_ExportsAddr(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	s, err := New(helperConfig("print-addr", &out))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	exit := waitExit(t, s)
	if exit.Code != 0 || exit.Err != nil {
		t.Errorf("exit = %+v, want clean exit", exit)
	}
	if got := out.String(); !strings.Contains(got, "ws://127.0.0.1:4567/ws") {
		t.Errorf("host output = %q, want the engine address", got)
	}
	if s.Running() {
		t.Error("Running() should be false after exit")
	}
}

func TestStart_ReportsExitCode(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	s, err := New(helperConfig("fail", &out))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if exit := waitExit(t, s); exit.Code != 3 {
		t.Errorf("exit code = %d, want 3", exit.Code)
	}
}

func TestStart_MissingBinary(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Command: []string{"hotswap-test-no-such-binary"}})
	if err != nil {
		t.Fatal(err)
	}
	err = s.Start(t.Context())
	ae, ok := issue.As(err)
	if !ok || ae.Guide != issue.HostCommandFailedID {
		t.Fatalf("Start() error = %v, want host command guidance", err)
	}
}

func TestRestart_KillsAndRespawns(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	cfg := helperConfig("sleep", &out)
	cfg.ClearScreen = true
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Start(t.Context()); err == nil {
		t.Error("second Start() should fail while running")
	}

	if err := s.Restart(t.Context(), "test"); err != nil {
		t.Fatalf("Restart() error: %v", err)
	}
	if !s.Running() || s.Restarts() != 1 {
		t.Errorf("after Restart(): running %v, restarts %d", s.Running(), s.Restarts())
	}
	if got := strings.Count(out.String(), clearSequence); got != 2 {
		t.Errorf("screen cleared %d times, want 2", got)
	}

	s.Stop()
	if s.Running() {
		t.Error("Running() should be false after Stop()")
	}
	select {
	case exit := <-s.Exited():
		t.Errorf("intentional kill reported as exit: %+v", exit)
	default:
	}
	s.Stop()
}

func TestWatch_RestartsOnFullReload(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	s, err := New(helperConfig("sleep", &out))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	defer s.Stop()

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	engineEnd, hostEnd := protocol.Pipe()
	watchDone := make(chan error, 1)
	go func() { watchDone <- s.Watch(ctx, hostEnd) }()

	for _, msg := range []protocol.Message{
		protocol.Invalidated{Paths: []string{"/app/a.js"}},
		protocol.FileChanged{Path: "/app/README.md", Action: protocol.ActionChange},
		protocol.FullReload{Path: "/app/.env"},
	} {
		if err := engineEnd.Send(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}
	_ = engineEnd.Close()

	select {
	case err := <-watchDone:
		if err != nil {
			t.Fatalf("Watch() error: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("Watch() did not return after the endpoint closed")
	}
	if s.Restarts() != 1 {
		t.Errorf("Restarts() = %d, want 1", s.Restarts())
	}
}
