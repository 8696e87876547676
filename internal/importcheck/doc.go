// SPDX-License-Identifier: MPL-2.0

// Package importcheck decides whether a module specifier is imported
// dynamically (import("x")) or statically (import x from "x") by a parent
// source file.
//
// Only a dynamically imported module can be swapped at runtime without
// re-evaluating the parent's static bindings, so the answer feeds the
// misdeclared-boundary flag of the dependency graph. Parent files are parsed
// with tree-sitter once and cached until the parent is invalidated.
//
// A specifier that does not appear literally in the parent (for example one
// built at runtime) is reported as dynamic: the checker cannot prove
// otherwise.
package importcheck
