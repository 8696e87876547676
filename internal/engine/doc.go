// SPDX-License-Identifier: MPL-2.0

// Package engine owns the dependency graph of a hot-reloaded host and decides,
// for every filesystem event, whether the change can be hot-swapped or needs
// a full reload.
//
// The loader side feeds the graph through AddRoot and AddDependency (usually
// over a protocol endpoint handled by Serve). The watcher side feeds events
// through Dispatch, which keeps events for one path in order while letting
// unrelated paths proceed in parallel. Decisions are broadcast to every
// subscribed endpoint.
package engine
