// SPDX-License-Identifier: MPL-2.0

// Package graph tracks the module dependency graph of a hot-reloaded process.
//
// Nodes are keyed by absolute, slash-separated file path. Each node carries a
// version counter that is bumped when the node is invalidated, and boundary
// flags that decide whether a change can be applied in place. A module is
// reloadable when every upward path from it to the root crosses a boundary
// before reaching the root. The graph may contain cycles.
//
// Graph is not safe for concurrent use; callers serialize access.
package graph
