// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// collector gathers events delivered by a Watcher.
type collector struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 64)}
}

func (c *collector) onEvent(_ context.Context, ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}

// waitFor blocks until an event for path arrives or the timeout expires.
func (c *collector) waitFor(t *testing.T, path string) Event {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		for _, ev := range c.snapshot() {
			if ev.Path == path {
				return ev
			}
		}
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for event on %s; got %+v", path, c.snapshot())
		}
	}
}

func startWatcher(t *testing.T, cfg Config) (*Watcher, *collector) {
	t.Helper()

	c := newCollector()
	cfg.OnEvent = c.onEvent
	if cfg.Debounce == 0 {
		cfg.Debounce = 50 * time.Millisecond
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
	return w, c
}

func TestWatcher_DebouncesPerPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "app.js")
	if err := os.WriteFile(target, []byte("v0"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, c := startWatcher(t, Config{BaseDir: dir, Debounce: 150 * time.Millisecond})

	for i := range 3 {
		if err := os.WriteFile(target, fmt.Appendf(nil, "v%d", i+1), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	other := filepath.Join(dir, "other.js")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := c.waitFor(t, filepath.ToSlash(target))
	if ev.Action != ActionChange {
		t.Errorf("app.js action = %s, want change", ev.Action)
	}
	if ev := c.waitFor(t, filepath.ToSlash(other)); ev.Action != ActionAdd {
		t.Errorf("other.js action = %s, want add", ev.Action)
	}

	// Let any straggling timers fire, then make sure the burst was collapsed.
	time.Sleep(300 * time.Millisecond)
	count := 0
	for _, ev := range c.snapshot() {
		if ev.Path == filepath.ToSlash(target) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d events for app.js, want 1: %+v", count, c.snapshot())
	}
}

func TestWatcher_Unlink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "gone.js")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, c := startWatcher(t, Config{BaseDir: dir})

	if err := os.Remove(target); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ev := c.waitFor(t, filepath.ToSlash(target)); ev.Action != ActionUnlink {
		t.Errorf("action = %s, want unlink", ev.Action)
	}
}

func TestWatcher_IgnoreAndInclude(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, sub := range []string{"node_modules/pkg", "src", "dist"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	_, c := startWatcher(t, Config{
		BaseDir: dir,
		Include: []string{"src/**"},
		Ignore:  []string{"**/*.log"},
	})

	for _, name := range []string{"node_modules/pkg/index.js", "dist/out.js", "src/debug.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	wanted := filepath.Join(dir, "src", "index.js")
	if err := os.WriteFile(wanted, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c.waitFor(t, filepath.ToSlash(wanted))
	time.Sleep(150 * time.Millisecond)
	for _, ev := range c.snapshot() {
		if ev.Path != filepath.ToSlash(wanted) {
			t.Errorf("unexpected event for %s", ev.Path)
		}
	}
}

func TestWatcher_AddTracksFileOutsideBaseDir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	outside := t.TempDir()
	tracked := filepath.Join(outside, "shared.js")
	untracked := filepath.Join(outside, "unrelated.js")
	for _, p := range []string{tracked, untracked} {
		if err := os.WriteFile(p, []byte("v0"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	w, c := startWatcher(t, Config{BaseDir: base})
	if err := w.Add(tracked); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	if err := os.WriteFile(untracked, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(tracked, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if ev := c.waitFor(t, filepath.ToSlash(tracked)); ev.Action != ActionChange {
		t.Errorf("action = %s, want change", ev.Action)
	}
	time.Sleep(150 * time.Millisecond)
	for _, ev := range c.snapshot() {
		if ev.Path == filepath.ToSlash(untracked) {
			t.Error("untracked file outside BaseDir was reported")
		}
	}
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, c := startWatcher(t, Config{BaseDir: dir})

	sub := filepath.Join(dir, "late")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the event loop a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(sub, "x.js")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.waitFor(t, filepath.ToSlash(file))

	for _, ev := range c.snapshot() {
		if ev.Path == filepath.ToSlash(sub) {
			t.Error("directory creation must not be reported as a file event")
		}
	}
}

func TestWatcher_RunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if err := w.Run(ctx); err == nil {
		t.Error("second Run() should fail")
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"include", Config{Include: []string{"src/[abc"}}},
		{"ignore", Config{Ignore: []string{"  "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tt.cfg.BaseDir = t.TempDir()
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() succeeded with an invalid pattern")
			}
		})
	}
}

func TestCoalesce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prev, next, want Action
	}{
		{ActionUnlink, ActionAdd, ActionChange},
		{ActionAdd, ActionChange, ActionAdd},
		{ActionChange, ActionChange, ActionChange},
		{ActionChange, ActionUnlink, ActionUnlink},
		{ActionAdd, ActionUnlink, ActionUnlink},
	}
	for _, tt := range tests {
		if got := coalesce(tt.prev, tt.next); got != tt.want {
			t.Errorf("coalesce(%s, %s) = %s, want %s", tt.prev, tt.next, got, tt.want)
		}
	}
}

func TestActionFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op     fsnotify.Op
		want   Action
		wantOK bool
	}{
		{fsnotify.Create, ActionAdd, true},
		{fsnotify.Write, ActionChange, true},
		{fsnotify.Remove, ActionUnlink, true},
		{fsnotify.Rename, ActionUnlink, true},
		{fsnotify.Create | fsnotify.Write, ActionAdd, true},
		{fsnotify.Chmod, "", false},
	}
	for _, tt := range tests {
		got, ok := actionFor(tt.op)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("actionFor(%s) = %q, %v; want %q, %v", tt.op, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	for _, errno := range fatalErrnos {
		if !isFatal(errno) {
			t.Errorf("isFatal(%v) = false", errno)
		}
		if !isFatal(fmt.Errorf("fsnotify: %w", errno)) {
			t.Errorf("isFatal(wrapped %v) = false", errno)
		}
	}
	if !IsResourceExhausted(fmt.Errorf("watch: add: %w", fatalErrnos[0])) {
		t.Error("IsResourceExhausted should match wrapped fatal errnos")
	}
	if isFatal(syscall.Errno(0xFFFF)) {
		t.Error("unknown errno classified as fatal")
	}
	if isFatal(fmt.Errorf("something went wrong")) {
		t.Error("plain error classified as fatal")
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	got := DefaultIgnores()
	got[0] = "mutated"
	if DefaultIgnores()[0] == "mutated" {
		t.Error("DefaultIgnores() must return a copy")
	}
	for _, rel := range []string{"node_modules/x/index.js", ".git/HEAD", "src/.DS_Store", "a.js~"} {
		if !matchAny(defaultIgnores, rel) {
			t.Errorf("%s should be ignored by default", rel)
		}
	}
	if matchAny(defaultIgnores, "src/app.js") {
		t.Error("src/app.js should not be ignored")
	}
}
