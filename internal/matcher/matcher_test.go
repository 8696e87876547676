// SPDX-License-Identifier: MPL-2.0

package matcher

import (
	"errors"
	"testing"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		patterns   []string
		matches    []string
		notMatches []string
	}{
		{
			name:     "unanchored double glob matches anywhere",
			patterns: []string{"**/node_modules/**"},
			matches: []string{
				"/node_modules/test/.pnpm/test/index.js",
				"/home/foo/node_modules/test/index.js",
				"/home/foo/bar/node_modules/test/index.js",
				"/home/foo/bar/test/bla/node_modules/test/index.js",
			},
			notMatches: []string{
				"/home/foo/bar/app.js",
				"/home/foo/bar/node_modules_backup/index.js",
			},
		},
		{
			name:     "dot-relative pattern is anchored to root",
			patterns: []string{"./config/**"},
			matches: []string{
				"/home/foo/bar/config/index.js",
				"/home/foo/bar/config/index.ts",
				"/home/foo/bar/config/test/index.js",
			},
			notMatches: []string{
				"/home/config/index.js",
				"/home/foo/bar/config.js",
				"/home/foo/bar/test/config/index.js",
			},
		},
		{
			name:     "bare relative pattern is anchored to root",
			patterns: []string{"config/**"},
			matches: []string{
				"/home/foo/bar/config/index.js",
				"/home/foo/bar/config/test/index.js",
			},
			notMatches: []string{
				"/home/config/index.js",
				"/home/foo/bar/config.js",
				"/home/foo/bar/test/config/index.js",
			},
		},
		{
			name:     "parent-relative pattern",
			patterns: []string{"../config/**"},
			matches: []string{
				"/home/foo/config/index.js",
				"/home/foo/config/bar/index.js",
			},
			notMatches: []string{
				"/home/config/index.js",
				"/home/foo/bar/config/index.js",
				"/home/foo/bar/config/test/index.js",
			},
		},
		{
			name:       "absolute pattern",
			patterns:   []string{"/etc/app/*.env"},
			matches:    []string{"/etc/app/prod.env"},
			notMatches: []string{"/home/foo/bar/etc/app/prod.env"},
		},
		{
			name:       "dotfiles match like regular files",
			patterns:   []string{".env*"},
			matches:    []string{"/home/foo/bar/.env", "/home/foo/bar/.env.local"},
			notMatches: []string{"/home/foo/bar/src/.env"},
		},
		{
			name:       "single file pattern",
			patterns:   []string{"app/controllers/users_controller.ts"},
			matches:    []string{"/home/foo/bar/app/controllers/users_controller.ts"},
			notMatches: []string{"/home/foo/bar/app/controllers/posts_controller.ts"},
		},
		{
			name:       "no patterns match nothing",
			patterns:   nil,
			notMatches: []string{"/home/foo/bar/app.js"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := New("/home/foo/bar", tt.patterns)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			for _, p := range tt.matches {
				if !m.Match(p) {
					t.Errorf("Match(%q) = false, want true", p)
				}
			}
			for _, p := range tt.notMatches {
				if m.Match(p) {
					t.Errorf("Match(%q) = true, want false", p)
				}
			}
		})
	}
}

func TestNewRejectsMalformedPattern(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{"src/[abc", "  "} {
		_, err := New("/project", []string{"**/*.js", pattern})
		if err == nil {
			t.Fatalf("New(%q) expected error", pattern)
		}
		if !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("errors.Is(err, ErrInvalidPattern) = false for %v", err)
		}
		var patErr *InvalidPatternError
		if !errors.As(err, &patErr) || patErr.Pattern != pattern {
			t.Errorf("expected InvalidPatternError for %q, got %v", pattern, err)
		}
	}
}

func TestMatchRootWithGlobCharacters(t *testing.T) {
	t.Parallel()

	for _, root := range []string{"/home/u/proj[1]", "/home/u/a[b", "/home/u/{x}", "/home/u/why?", "/home/u/st*r"} {
		t.Run(root, func(t *testing.T) {
			t.Parallel()

			m, err := New(root, []string{"config/**", "./.env"})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			for _, p := range []string{root + "/config/app.env", root + "/.env"} {
				if !m.Match(p) {
					t.Errorf("Match(%q) = false, want true", p)
				}
			}
			if m.Match("/home/u/proj1/config/app.env") {
				t.Error("root metacharacters must be matched literally")
			}
		})
	}
}

func TestNilMatcherMatchesNothing(t *testing.T) {
	t.Parallel()

	var m *Matcher
	if m.Match("/anything.js") {
		t.Error("nil matcher should never match")
	}
}

func TestPatternsReturnsCopy(t *testing.T) {
	t.Parallel()

	m := MustNew("/project", []string{"a/**"})
	got := m.Patterns()
	got[0] = "mutated"
	if m.Patterns()[0] != "a/**" {
		t.Error("Patterns() must not expose internal state")
	}
	if m.Root() != "/project" {
		t.Errorf("Root() = %q, want /project", m.Root())
	}
}
