// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/invowk/hotswap/internal/issue"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, source, err := NewProvider().LoadWithSource(t.Context(), LoadOptions{BaseDir: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if source != "" {
		t.Errorf("source = %q, want empty", source)
	}

	want := DefaultConfig()
	if !slices.Equal(cfg.Ignore, want.Ignore) || !slices.Equal(cfg.Include, want.Include) {
		t.Errorf("patterns = %v / %v, want defaults", cfg.Ignore, cfg.Include)
	}
	if cfg.Debounce != DefaultDebounce {
		t.Errorf("Debounce = %v, want %v", cfg.Debounce, DefaultDebounce)
	}
	if cfg.Listen != DefaultListen || !cfg.ClearScreen || cfg.LogLevel != LogLevelInfo {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.ProjectRoot != filepath.Clean(dir) {
		t.Errorf("ProjectRoot = %q, want %q", cfg.ProjectRoot, dir)
	}
}

func TestLoad_ProjectFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, `
root: "bin/server.js"
boundaries: ["app/controllers/**/*.js"]
restart: [".env", "config/**"]
throw_when_boundaries_are_not_dynamically_imported: true
debounce: "250ms"
log_level: "debug"
`)

	cfg, source, err := NewProvider().LoadWithSource(t.Context(), LoadOptions{BaseDir: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if source != path {
		t.Errorf("source = %q, want %q", source, path)
	}
	if cfg.Root != filepath.Join(dir, "bin", "server.js") {
		t.Errorf("Root = %q", cfg.Root)
	}
	if !slices.Equal(cfg.Boundaries, []GlobPattern{"app/controllers/**/*.js"}) {
		t.Errorf("Boundaries = %v", cfg.Boundaries)
	}
	if !slices.Equal(cfg.Restart, []GlobPattern{".env", "config/**"}) {
		t.Errorf("Restart = %v", cfg.Restart)
	}
	if !cfg.ThrowWhenBoundariesAreNotDynamicallyImported {
		t.Error("ThrowWhenBoundariesAreNotDynamicallyImported should be true")
	}
	if cfg.Debounce != 250*time.Millisecond {
		t.Errorf("Debounce = %v, want 250ms", cfg.Debounce)
	}
	if cfg.LogLevel != LogLevelDebug {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	// Untouched keys keep their defaults.
	if !slices.Equal(cfg.Ignore, []GlobPattern{"**/node_modules/**"}) || !cfg.ClearScreen {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_ExplicitFileAnchorsProjectRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "conf")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, sub, `project_root: "../app"`)

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path, BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Join(dir, "app"); cfg.ProjectRoot != want {
		t.Errorf("ProjectRoot = %q, want %q", cfg.ProjectRoot, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "syntax", content: `root: "unterminated`, want: "hotswap.cue"},
		{name: "unknown field", content: `port: 3000`, want: "port"},
		{name: "wrong type", content: `clear_screen: "yes"`, want: "clear_screen"},
		{name: "bad log level", content: `log_level: "trace"`, want: "log_level"},
		{name: "bad debounce", content: `debounce: "fast"`, want: "debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)

			_, err := NewProvider().Load(t.Context(), LoadOptions{BaseDir: dir})
			if err == nil {
				t.Fatal("Load() should fail")
			}
			ae, ok := issue.As(err)
			if !ok {
				t.Fatalf("error should be actionable, got %T", err)
			}
			if ae.Guide != issue.ConfigLoadFailedID {
				t.Errorf("Guide = %v, want ConfigLoadFailedID", ae.Guide)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_InvalidGlobFailsValidation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `boundaries: ["app/[controllers"]`)

	_, err := NewProvider().Load(t.Context(), LoadOptions{BaseDir: dir})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), `boundaries: invalid glob pattern "app/[controllers"`) {
		t.Errorf("error should name the pattern: %v", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{BaseDir: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOTSWAP_LISTEN", "127.0.0.1:4567")
	t.Setenv("HOTSWAP_CLEAR_SCREEN", "false")

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != "127.0.0.1:4567" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.ClearScreen {
		t.Error("ClearScreen should be overridden to false")
	}
}

func TestGenerateCUE_RoundTrips(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Root = "bin/server.js"
	cfg.Boundaries = []GlobPattern{"app/controllers/**/*.js"}
	cfg.Debounce = 2 * time.Second

	dir := t.TempDir()
	writeConfig(t, dir, GenerateCUE(cfg))

	got, err := NewProvider().Load(t.Context(), LoadOptions{BaseDir: dir})
	if err != nil {
		t.Fatalf("generated CUE does not load: %v", err)
	}
	if got.Debounce != 2*time.Second || !slices.Equal(got.Boundaries, cfg.Boundaries) {
		t.Errorf("round trip = %+v", got)
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, created, err := WriteDefault(dir)
	if err != nil || !created {
		t.Fatalf("WriteDefault() = %q, %v, %v", path, created, err)
	}
	if _, created, _ := WriteDefault(dir); created {
		t.Error("second WriteDefault() should not overwrite")
	}
	if _, err := NewProvider().Load(t.Context(), LoadOptions{BaseDir: dir}); err != nil {
		t.Errorf("default file does not load: %v", err)
	}
}
