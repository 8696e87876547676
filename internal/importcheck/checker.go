// SPDX-License-Identifier: MPL-2.0

package importcheck

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/afero"
)

// DefaultMaxFileSize bounds how much of a parent file is read for parsing.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

type (
	// Option configures a Checker.
	Option func(*Checker)

	// Checker answers IsDynamicallyImported queries with a per-parent cache.
	// It is safe for concurrent use.
	Checker struct {
		fs          afero.Fs
		maxFileSize int64

		mu      sync.Mutex
		entries map[string]*entry
		// generations is bumped on every Invalidate so that a parse started
		// before the invalidation never repopulates the cache.
		generations map[string]uint64
	}

	entry struct {
		imports  []Import
		verdicts map[string]bool
	}
)

// WithFs sets the filesystem used to read parent files. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(c *Checker) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// WithMaxFileSize limits the size of parent files that are parsed.
func WithMaxFileSize(bytes int64) Option {
	return func(c *Checker) {
		if bytes > 0 {
			c.maxFileSize = bytes
		}
	}
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		fs:          afero.NewOsFs(),
		maxFileSize: DefaultMaxFileSize,
		entries:     make(map[string]*entry),
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsDynamicallyImported reports whether specifier is imported through an
// import() expression in parentPath. The first occurrence of the literal
// specifier decides; a specifier that never appears literally is reported
// as dynamic.
func (c *Checker) IsDynamicallyImported(ctx context.Context, parentPath, specifier string) (bool, error) {
	c.mu.Lock()
	if e, ok := c.entries[parentPath]; ok {
		if verdict, ok := e.verdicts[specifier]; ok {
			c.mu.Unlock()
			return verdict, nil
		}
	}
	c.mu.Unlock()

	imports, err := c.Imports(ctx, parentPath)
	if err != nil {
		return false, err
	}

	verdict := true
	for _, imp := range imports {
		if imp.Specifier == specifier {
			verdict = imp.Dynamic
			break
		}
	}

	c.mu.Lock()
	if e, ok := c.entries[parentPath]; ok {
		e.verdicts[specifier] = verdict
	}
	c.mu.Unlock()

	return verdict, nil
}

// Imports returns every import occurrence of path, parsing it at most once
// between invalidations.
func (c *Checker) Imports(ctx context.Context, path string) ([]Import, error) {
	c.mu.Lock()
	if e, ok := c.entries[path]; ok {
		c.mu.Unlock()
		return e.imports, nil
	}
	gen := c.generations[path]
	c.mu.Unlock()

	src, err := c.read(path)
	if err != nil {
		return nil, err
	}
	imports, err := parseImports(ctx, path, src)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[path] != gen {
		// Invalidated while parsing; hand back the result without caching it.
		return imports, nil
	}
	if e, ok := c.entries[path]; ok {
		return e.imports, nil
	}
	c.entries[path] = &entry{imports: imports, verdicts: make(map[string]bool)}
	return imports, nil
}

// Invalidate drops everything cached for path. It is called whenever the
// file changes since its import statements may have changed.
func (c *Checker) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
	c.generations[path]++
}

// Cached reports whether path currently has a cache entry.
func (c *Checker) Cached(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[path]
	return ok
}

func (c *Checker) read(path string) ([]byte, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read imports of %s: %w", path, err)
	}
	if info.Size() > c.maxFileSize {
		return nil, &FileTooLargeError{Path: path, Size: info.Size(), Limit: c.maxFileSize}
	}
	src, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read imports of %s: %w", path, err)
	}
	return src, nil
}
