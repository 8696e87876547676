// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

type stopFunc func() error

func (f stopFunc) Stop() error { return f() }

func TestMemProject(t *testing.T) {
	t.Parallel()

	fs := MemProject(t, map[string]string{"/app/index.js": "export {}\n"})
	data, err := afero.ReadFile(fs, "/app/index.js")
	if err != nil || string(data) != "export {}\n" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
}

func TestWriteFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := WriteFiles(t, dir, map[string]string{"app/controllers/users.js": "export default 1\n"})
	want := filepath.Join(dir, "app", "controllers", "users.js")
	if paths["app/controllers/users.js"] != want {
		t.Fatalf("path = %q, want %q", paths["app/controllers/users.js"], want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("Stat() error: %v", err)
	}
}

func TestMustStop(t *testing.T) {
	t.Parallel()

	calls := 0
	MustStop(t, stopFunc(func() error { calls++; return errors.New("already stopped") }))
	if calls != 1 {
		t.Errorf("Stop called %d times, want 1", calls)
	}
}
