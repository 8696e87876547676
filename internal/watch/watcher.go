// SPDX-License-Identifier: MPL-2.0

// Package watch reports per-file filesystem events for the hotswap engine.
//
// Every directory under BaseDir is monitored; files outside it can be tracked
// individually with Add. Events are debounced per path: bursts for one file
// collapse into a single add, change or unlink event, while unrelated files
// are reported independently.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is not positive.
const DefaultDebounce = 100 * time.Millisecond

// Event actions.
const (
	ActionAdd    Action = "add"
	ActionChange Action = "change"
	ActionUnlink Action = "unlink"
)

// defaultIgnores are always excluded: VCS metadata, dependency caches, editor
// swap files and OS metadata.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

type (
	// Action is the kind of change reported for a file.
	Action string

	// Event is a debounced change of a single file. Path is absolute and
	// slash-separated.
	Event struct {
		Path   string
		Action Action
	}

	// Config holds the parameters for a Watcher.
	Config struct {
		// BaseDir is watched recursively. Empty means the working directory.
		BaseDir string
		// Include restricts reported files under BaseDir (doublestar patterns
		// relative to BaseDir). Empty reports every non-ignored file.
		Include []string
		// Ignore is merged with the built-in ignores.
		Ignore []string
		// Debounce is the per-path quiet period.
		Debounce time.Duration
		// OnEvent receives every debounced event. Calls for different paths
		// may overlap.
		OnEvent func(ctx context.Context, ev Event)
		// Logger defaults to a discarding logger.
		Logger *log.Logger
	}

	// Watcher monitors BaseDir and individually tracked files. Run must be
	// called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		debounce time.Duration
		baseDir  string
		logger   *log.Logger
		started  atomic.Bool

		mu      sync.Mutex
		tracked map[string]struct{}
		dirs    map[string]struct{}
		pending map[string]*pendingEvent
	}

	pendingEvent struct {
		action Action
		timer  *time.Timer
	}
)

// New creates a Watcher and registers every non-ignored directory under
// BaseDir. Invalid patterns fail here.
func New(cfg Config) (*Watcher, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	if err := validatePatterns(cfg.Include, "include"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  append(append([]string{}, defaultIgnores...), cfg.Ignore...),
		debounce: debounce,
		baseDir:  absBase,
		logger:   logger,
		tracked:  make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		pending:  make(map[string]*pendingEvent),
	}

	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close after init failure", "error", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Add tracks a single file. Tracked files are reported even when they live
// outside BaseDir or do not match Include.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(filepath.FromSlash(path))
	if err != nil {
		return fmt.Errorf("watch: resolve %q: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.tracked[abs] = struct{}{}
	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	// Watch the directory rather than the file so atomic saves (write to a
	// temp file, rename over the original) keep being reported.
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch: add %q: %w", dir, err)
	}
	w.dirs[dir] = struct{}{}
	return nil
}

// Run processes filesystem events until ctx is cancelled. It returns nil on
// cancellation and an error when the watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	defer func() {
		w.mu.Lock()
		for path, p := range w.pending {
			p.timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			w.handle(ctx, evt)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, evt fsnotify.Event) {
	action, ok := actionFor(evt.Op)
	if !ok {
		return
	}

	if action == ActionAdd {
		if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
			w.maybeAddDir(evt.Name)
			return
		}
	}

	if !w.isRelevant(evt.Name) {
		return
	}
	w.schedule(ctx, filepath.ToSlash(evt.Name), action)
}

// schedule records action for path and (re)starts the path's debounce timer.
func (w *Watcher) schedule(ctx context.Context, path string, action Action) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.action = coalesce(p.action, action)
		p.timer.Reset(w.debounce)
		return
	}

	p := &pendingEvent{action: action}
	p.timer = time.AfterFunc(w.debounce, func() { w.fire(ctx, path) })
	w.pending[path] = p
}

func (w *Watcher) fire(ctx context.Context, path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	delete(w.pending, path)
	w.mu.Unlock()

	if !ok || ctx.Err() != nil {
		return
	}
	w.logger.Debug("file event", "path", path, "action", p.action)
	if w.cfg.OnEvent != nil {
		w.cfg.OnEvent(ctx, Event{Path: path, Action: p.action})
	}
}

// coalesce merges a new action into the pending one for the same path.
func coalesce(prev, next Action) Action {
	switch {
	case prev == ActionUnlink && next == ActionAdd:
		// Deleted and recreated: an atomic save.
		return ActionChange
	case prev == ActionAdd && next == ActionChange:
		return ActionAdd
	default:
		return next
	}
}

// actionFor maps an fsnotify op to an Action. Chmod-only events are dropped.
func actionFor(op fsnotify.Op) (Action, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ActionUnlink, true
	case op.Has(fsnotify.Create):
		return ActionAdd, true
	case op.Has(fsnotify.Write):
		return ActionChange, true
	default:
		return "", false
	}
}

// isRelevant reports whether events for the absolute path should be emitted.
func (w *Watcher) isRelevant(path string) bool {
	w.mu.Lock()
	_, tracked := w.tracked[path]
	w.mu.Unlock()
	if tracked {
		return true
	}

	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !w.isIgnored(rel) && w.isIncluded(rel)
}

// addDirectories walks BaseDir and adds every non-ignored directory.
func (w *Watcher) addDirectories() error {
	walkErr := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, walkDirErr error) error {
		if walkDirErr != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "error", walkDirErr)
			return nil //nolint:nilerr // intentional skip of inaccessible paths
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return nil //nolint:nilerr // skip paths that cannot be made relative
		}
		if w.isIgnored(rel) || w.isIgnored(rel+"/") {
			return filepath.SkipDir
		}

		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		w.dirs[path] = struct{}{}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

// maybeAddDir extends the recursive watch to a directory created after startup.
func (w *Watcher) maybeAddDir(path string) {
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil || w.isIgnored(rel) || w.isIgnored(rel+"/") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[path]; ok {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("add new directory", "path", path, "error", err)
		return
	}
	w.dirs[path] = struct{}{}
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) isIncluded(rel string) bool {
	if len(w.cfg.Include) == 0 {
		return true
	}
	return matchAny(w.cfg.Include, rel)
}

func matchAny(patterns []string, rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	out := make([]string, len(defaultIgnores))
	copy(out, defaultIgnores)
	return out
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if strings.TrimSpace(pat) == "" || !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q", label, pat)
		}
	}
	return nil
}

// IsResourceExhausted reports whether err comes from the operating system
// refusing more watches or file descriptors.
func IsResourceExhausted(err error) bool { return isFatal(err) }

// isFatal reports whether err means the watcher can no longer work, which
// is the case for resource exhaustion. The errno set is platform specific.
func isFatal(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	for _, fatal := range fatalErrnos {
		if errno == fatal {
			return true
		}
	}
	return false
}
