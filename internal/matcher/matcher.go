// SPDX-License-Identifier: MPL-2.0

package matcher

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern is the sentinel error wrapped by InvalidPatternError.
var ErrInvalidPattern = errors.New("invalid glob pattern")

type (
	// InvalidPatternError is returned by New when a pattern is not a valid
	// doublestar glob. It wraps ErrInvalidPattern for errors.Is() compatibility.
	InvalidPatternError struct {
		Pattern string
	}

	// Matcher matches absolute paths against a compiled set of patterns.
	Matcher struct {
		root     string
		raw      []string
		compiled []string
	}
)

// Error implements the error interface for InvalidPatternError.
func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q", e.Pattern)
}

// Unwrap returns ErrInvalidPattern for errors.Is() compatibility.
func (e *InvalidPatternError) Unwrap() error { return ErrInvalidPattern }

// New compiles patterns against root. root must be an absolute directory.
// A malformed pattern fails here rather than at match time.
func New(root string, patterns []string) (*Matcher, error) {
	normalizedRoot := normalizePath(filepath.Clean(root))

	m := &Matcher{
		root:     normalizedRoot,
		raw:      make([]string, 0, len(patterns)),
		compiled: make([]string, 0, len(patterns)),
	}
	for _, pattern := range patterns {
		slashed := filepath.ToSlash(pattern)
		if strings.TrimSpace(slashed) == "" || !doublestar.ValidatePattern(slashed) {
			return nil, &InvalidPatternError{Pattern: pattern}
		}
		m.raw = append(m.raw, pattern)
		m.compiled = append(m.compiled, compile(normalizedRoot, slashed))
	}
	return m, nil
}

// MustNew is like New but panics on a malformed pattern. Intended for
// hardcoded pattern lists.
func MustNew(root string, patterns []string) *Matcher {
	m, err := New(root, patterns)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether absPath matches at least one pattern.
func (m *Matcher) Match(absPath string) bool {
	if m == nil || len(m.compiled) == 0 {
		return false
	}
	name := normalizePath(absPath)
	for _, pattern := range m.compiled {
		if matched, err := doublestar.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the patterns as they were given to New.
func (m *Matcher) Patterns() []string {
	out := make([]string, len(m.raw))
	copy(out, m.raw)
	return out
}

// Root returns the slash-separated root the anchored patterns were resolved against.
func (m *Matcher) Root() string {
	return "/" + m.root
}

// compile turns a pattern into the form compared against normalized paths:
// slash-separated, absolute, without the leading slash.
func compile(root, pattern string) string {
	switch {
	case strings.HasPrefix(pattern, "**"):
		return pattern
	case path.IsAbs(pattern):
		return strings.TrimPrefix(path.Clean(pattern), "/")
	default:
		return strings.TrimPrefix(path.Join("/"+escapeMeta(root), pattern), "/")
	}
}

// escapeMeta quotes the glob metacharacters of a literal path so that a root
// such as "/srv/proj[1]" matches itself.
func escapeMeta(literal string) string {
	var b strings.Builder
	b.Grow(len(literal))
	for _, r := range literal {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// normalizePath converts p to slash form and drops the leading slash so
// that unanchored "**/" patterns can also match top-level directories.
func normalizePath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(p), "/")
}
