// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/invowk/hotswap/internal/graph"
	"github.com/invowk/hotswap/internal/importcheck"
	"github.com/invowk/hotswap/internal/matcher"
	"github.com/invowk/hotswap/internal/protocol"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// DefaultIgnore is used when Config.Ignore is nil.
var DefaultIgnore = []string{"**/node_modules/**"}

type (
	// Tracker starts watching a single file. The watcher implements it so
	// that files outside the watched directory are still reported.
	Tracker interface {
		Add(path string) error
	}

	// Config holds the parameters of an Engine.
	Config struct {
		// ProjectRoot anchors relative patterns and dump paths.
		ProjectRoot string

		// Ignore lists paths that never enter the graph. nil means DefaultIgnore.
		Ignore []string
		// Include restricts the graph to matching paths. Empty includes all.
		Include []string
		// Boundaries lists paths that are hot-swap points regardless of the
		// loader's declared intent.
		Boundaries []string
		// Restart lists paths whose change always triggers a full reload.
		Restart []string

		// ThrowWhenBoundariesAreNotDynamicallyImported makes AddDependency
		// fail for a statically imported boundary instead of recording it as
		// misdeclared.
		ThrowWhenBoundariesAreNotDynamicallyImported bool

		// Fs is used for stat calls and import parsing. nil means the OS filesystem.
		Fs afero.Fs
		// Checker overrides the import checker built from Fs.
		Checker *importcheck.Checker
		// Tracker, when set, is told about every file entering the graph.
		Tracker Tracker
		// Registerer receives the engine metrics. nil uses a private registry.
		Registerer prometheus.Registerer
		// Logger defaults to a discarding logger.
		Logger *log.Logger
	}

	// Dependency is one edge reported by the loader.
	Dependency struct {
		Parent    string
		Child     string
		Specifier string
		// Boundary is the loader's declared boundary intent.
		Boundary bool
	}

	// Engine serializes every graph access behind a single mutex. Blocking
	// work (stat, parse) runs outside of it.
	Engine struct {
		projectRoot string
		throw       bool

		fs         afero.Fs
		checker    *importcheck.Checker
		tracker    Tracker
		ignore     *matcher.Matcher
		include    *matcher.Matcher
		boundaries *matcher.Matcher
		restart    *matcher.Matcher

		logger  *log.Logger
		metrics *metrics
		hub     *protocol.Hub
		seq     *sequencer

		mu    sync.Mutex
		graph *graph.Graph
	}
)

// New creates an Engine. Invalid patterns fail here.
func New(cfg Config) (*Engine, error) {
	root := cfg.ProjectRoot
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve project root: %w", err)
	}
	absRoot = filepath.ToSlash(absRoot)

	ignorePatterns := cfg.Ignore
	if ignorePatterns == nil {
		ignorePatterns = DefaultIgnore
	}

	e := &Engine{
		projectRoot: absRoot,
		throw:       cfg.ThrowWhenBoundariesAreNotDynamicallyImported,
		fs:          cfg.Fs,
		checker:     cfg.Checker,
		tracker:     cfg.Tracker,
		logger:      cfg.Logger,
		seq:         newSequencer(),
		graph:       graph.New(),
	}
	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}
	if e.checker == nil {
		e.checker = importcheck.New(importcheck.WithFs(e.fs))
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	e.metrics = newMetrics(reg)
	e.hub = protocol.NewHub(e.logger)

	for _, m := range []struct {
		dst      **matcher.Matcher
		patterns []string
		name     string
	}{
		{&e.ignore, ignorePatterns, "ignore"},
		{&e.include, cfg.Include, "include"},
		{&e.boundaries, cfg.Boundaries, "boundaries"},
		{&e.restart, cfg.Restart, "restart"},
	} {
		compiled, err := matcher.New(absRoot, m.patterns)
		if err != nil {
			return nil, fmt.Errorf("engine: %s patterns: %w", m.name, err)
		}
		*m.dst = compiled
	}

	return e, nil
}

// ProjectRoot returns the absolute, slash-separated project root.
func (e *Engine) ProjectRoot() string { return e.projectRoot }

// Hub returns the broadcast hub engine events are sent to.
func (e *Engine) Hub() *protocol.Hub { return e.hub }

// Checker returns the import checker used to verify boundaries.
func (e *Engine) Checker() *importcheck.Checker { return e.checker }

// AddRoot registers the host entry point.
func (e *Engine) AddRoot(_ context.Context, path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	e.mu.Lock()
	isNew := !e.graph.Has(path)
	err := e.graph.AddRoot(path)
	e.metrics.nodes.Set(float64(e.graph.Len()))
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.logger.Debug("root registered", "path", path)
	if isNew {
		e.track(path)
	}
	return nil
}

// AddDependency records an import edge. Ignored and non-included children
// are skipped. A boundary child, declared or matched by the boundary
// patterns, is verified against the parent's source: a static import either
// records the child as a misdeclared boundary or, when configured, fails
// with NotImportedDynamicallyError. A dependency without a parent is the
// entry module and is registered as the root.
func (e *Engine) AddDependency(ctx context.Context, dep Dependency) error {
	if dep.Child == "" {
		return ErrEmptyPath
	}
	if dep.Parent == "" {
		return e.AddRoot(ctx, dep.Child)
	}
	if e.ignore.Match(dep.Child) || (len(e.include.Patterns()) > 0 && !e.include.Match(dep.Child)) {
		e.logger.Debug("skipping dependency", "child", dep.Child)
		return nil
	}

	kind := graph.NotBoundary
	if dep.Boundary || e.boundaries.Match(dep.Child) {
		kind = graph.Boundary

		dynamic, err := e.checker.IsDynamicallyImported(ctx, dep.Parent, dep.Specifier)
		if err != nil {
			// An unreadable parent cannot prove a static import.
			e.logger.Debug("import check failed", "parent", dep.Parent, "error", err)
			dynamic = true
		}
		if !dynamic {
			if e.throw {
				return &NotImportedDynamicallyError{
					Specifier: dep.Specifier,
					Parent:    e.relative(dep.Parent),
				}
			}
			e.logger.Warn("boundary imported statically",
				"specifier", dep.Specifier, "parent", e.relative(dep.Parent))
			kind = graph.MisdeclaredBoundary
		}
	}

	e.mu.Lock()
	isNew := !e.graph.Has(dep.Child)
	e.graph.AddDependency(dep.Parent, dep.Child, kind)
	e.metrics.nodes.Set(float64(e.graph.Len()))
	e.mu.Unlock()

	e.logger.Debug("dependency recorded", "parent", dep.Parent, "child", dep.Child, "kind", kind)
	if isNew {
		e.track(dep.Child)
	}
	return nil
}

// Version returns the cache-busting version of path.
func (e *Engine) Version(path string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Version(path)
}

// IsInsideGraph reports whether path is tracked.
func (e *Engine) IsInsideGraph(path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Has(path)
}

// IsReloadable reports whether a change to path could be hot-swapped now.
func (e *Engine) IsReloadable(path string) graph.Reloadability {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.IsReloadable(path)
}

// Decline marks path as non-swappable.
func (e *Engine) Decline(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Decline(path)
}

// Dump returns a snapshot of the graph with paths relative to the project root.
func (e *Engine) Dump() []graph.DumpNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Dump(e.projectRoot)
}

// Wait blocks until every dispatched event has been handled. It must not
// run concurrently with Dispatch; Close is the shutdown variant.
func (e *Engine) Wait() { e.seq.wait() }

// Close stops accepting dispatched events and waits for the queued ones.
// Dispatch after Close is a no-op.
func (e *Engine) Close() { e.seq.close() }

func (e *Engine) track(path string) {
	if e.tracker == nil {
		return
	}
	if err := e.tracker.Add(path); err != nil {
		e.logger.Warn("cannot watch file", "path", path, "error", err)
	}
}

func (e *Engine) relative(path string) string {
	rel, err := filepath.Rel(filepath.FromSlash(e.projectRoot), filepath.FromSlash(path))
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
