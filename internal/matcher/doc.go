// SPDX-License-Identifier: MPL-2.0

// Package matcher classifies absolute file paths against glob rules such as
// the ignore list, the reload-boundary list and the always-restart list.
//
// Patterns are doublestar globs. Anchored patterns (root-relative, "./",
// "../" or absolute) are resolved against the project root once, at
// construction time; patterns starting with "**" are unanchored and match
// any path suffix. A Matcher is immutable after New and safe for concurrent
// use.
package matcher
