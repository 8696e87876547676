// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"fmt"
	"sort"
)

// Boundary kinds accepted by AddDependency.
const (
	// NotBoundary records an ordinary import edge.
	NotBoundary BoundaryKind = iota
	// Boundary marks the child as a valid hot-swap point.
	Boundary
	// MisdeclaredBoundary marks a child that was meant to be a boundary but
	// is reached through a static import, so it can never be swapped.
	MisdeclaredBoundary
)

type (
	// BoundaryKind describes how an edge declares its child.
	BoundaryKind int

	// Reloadability is the result of an upward reachability check.
	Reloadability struct {
		// Reloadable is true when every path to the root crosses a boundary.
		Reloadable bool
		// ShouldBeReloadable is true when a misdeclared boundary was found on
		// the way up. Hosts surface it as a warning.
		ShouldBeReloadable bool
	}

	// NodeInfo is a read-only snapshot of a node.
	NodeInfo struct {
		Path         string
		Version      int
		Boundary     bool
		Misdeclared  bool
		Declined     bool
		Dependencies []string
		Dependents   []string
		Parents      []string
	}

	// Graph is an arena of module nodes keyed by path.
	Graph struct {
		nodes map[string]*node
		// order tracks node paths in registration order.
		order *orderedSet
		root  string
	}

	node struct {
		path         string
		version      int
		boundary     bool
		misdeclared  bool
		declined     bool
		dependencies *orderedSet
		dependents   *orderedSet
		parents      *orderedSet
	}
)

// String returns the kind name.
func (k BoundaryKind) String() string {
	switch k {
	case NotBoundary:
		return "not-boundary"
	case Boundary:
		return "boundary"
	case MisdeclaredBoundary:
		return "misdeclared-boundary"
	default:
		return fmt.Sprintf("BoundaryKind(%d)", int(k))
	}
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
		order: newOrderedSet(),
	}
}

// AddRoot registers the entry point. Calling it again with the same path is
// a no-op; a different path fails with ErrRootAlreadySet.
func (g *Graph) AddRoot(path string) error {
	if g.root != "" {
		if g.root == path {
			return nil
		}
		return fmt.Errorf("%w: cannot use %q, root is %q", ErrRootAlreadySet, path, g.root)
	}
	g.ensure(path)
	g.root = path
	return nil
}

// AddDependency records that parent imports child and updates the child's
// boundary flags from kind. Missing nodes are created with version 0; the
// first node ever created becomes the root. Re-declaring an existing edge
// only updates the flags.
func (g *Graph) AddDependency(parent, child string, kind BoundaryKind) {
	p := g.ensure(parent)
	c := g.ensure(child)
	if g.root == "" {
		g.root = parent
	}

	p.dependencies.add(child)
	c.dependents.add(parent)
	c.parents.add(parent)

	c.boundary = kind == Boundary
	c.misdeclared = kind == MisdeclaredBoundary
}

// IsReloadable reports whether a change to path can be hot-swapped. Unknown
// paths are not reloadable.
func (g *Graph) IsReloadable(path string) Reloadability {
	if _, ok := g.nodes[path]; !ok {
		return Reloadability{}
	}
	return g.reloadable(path, map[string]struct{}{})
}

// reloadable walks upward through parents. visited is owned by the caller
// and never mutated here; every branch works on its own copy.
func (g *Graph) reloadable(path string, visited map[string]struct{}) Reloadability {
	n, ok := g.nodes[path]
	if !ok {
		return Reloadability{}
	}

	if n.misdeclared {
		return Reloadability{Reloadable: false, ShouldBeReloadable: true}
	}
	if n.boundary {
		return Reloadability{Reloadable: true, ShouldBeReloadable: true}
	}
	if _, seen := visited[path]; seen {
		return Reloadability{Reloadable: true, ShouldBeReloadable: true}
	}
	if n.parents.len() == 0 {
		return Reloadability{}
	}

	branch := make(map[string]struct{}, len(visited)+1)
	for k := range visited {
		branch[k] = struct{}{}
	}
	branch[path] = struct{}{}

	result := Reloadability{Reloadable: true}
	for _, parent := range n.parents.keys {
		r := g.reloadable(parent, branch)
		result.Reloadable = result.Reloadable && r.Reloadable
		result.ShouldBeReloadable = result.ShouldBeReloadable || r.ShouldBeReloadable
	}
	return result
}

// InvalidateFileAndDependents bumps the version of path and, breadth first,
// of every reloadable node reached through dependents. Non-reloadable nodes
// are neither bumped nor expanded. The bumped paths are returned in BFS
// order, path first when it was reloadable.
func (g *Graph) InvalidateFileAndDependents(path string) []string {
	if _, ok := g.nodes[path]; !ok {
		return nil
	}

	var invalidated []string
	visited := make(map[string]struct{})
	queue := []string{path}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if _, seen := visited[current]; seen {
			continue
		}
		n, ok := g.nodes[current]
		if !ok {
			continue
		}
		if !g.IsReloadable(current).Reloadable {
			continue
		}

		n.version++
		visited[current] = struct{}{}
		invalidated = append(invalidated, current)
		queue = append(queue, n.dependents.keys...)
	}

	return invalidated
}

// Remove detaches path from every neighbour and drops it. Neighbours are
// kept even if they become unreachable. It reports whether path existed.
func (g *Graph) Remove(path string) bool {
	n, ok := g.nodes[path]
	if !ok {
		return false
	}

	for _, dep := range n.dependencies.keys {
		if d, ok := g.nodes[dep]; ok {
			d.dependents.remove(path)
			d.parents.remove(path)
		}
	}
	for _, dep := range n.dependents.keys {
		if d, ok := g.nodes[dep]; ok {
			d.dependencies.remove(path)
		}
	}
	for _, parent := range n.parents.keys {
		if p, ok := g.nodes[parent]; ok {
			p.dependencies.remove(path)
		}
	}

	delete(g.nodes, path)
	g.order.remove(path)
	if g.root == path {
		g.root = ""
	}
	return true
}

// Version returns the current version of path.
func (g *Graph) Version(path string) (int, error) {
	n, ok := g.nodes[path]
	if !ok {
		return 0, &NodeNotFoundError{Path: path}
	}
	return n.version, nil
}

// Decline marks path as non-swappable by its own request. Invalidations that
// reach a declined node must be turned into a full reload by the caller.
func (g *Graph) Decline(path string) error {
	n, ok := g.nodes[path]
	if !ok {
		return &NodeNotFoundError{Path: path}
	}
	n.declined = true
	return nil
}

// IsDeclined reports whether path declined hot swapping.
func (g *Graph) IsDeclined(path string) bool {
	n, ok := g.nodes[path]
	return ok && n.declined
}

// Has reports whether path is tracked.
func (g *Graph) Has(path string) bool {
	_, ok := g.nodes[path]
	return ok
}

// Root returns the root path, or "" when no node has been registered.
func (g *Graph) Root() string { return g.root }

// Len returns the number of tracked nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Paths returns every tracked path in registration order.
func (g *Graph) Paths() []string { return g.order.list() }

// Node returns a snapshot of path.
func (g *Graph) Node(path string) (NodeInfo, bool) {
	n, ok := g.nodes[path]
	if !ok {
		return NodeInfo{}, false
	}
	return NodeInfo{
		Path:         n.path,
		Version:      n.version,
		Boundary:     n.boundary,
		Misdeclared:  n.misdeclared,
		Declined:     n.declined,
		Dependencies: n.dependencies.list(),
		Dependents:   n.dependents.list(),
		Parents:      n.parents.list(),
	}, true
}

func (g *Graph) ensure(path string) *node {
	if n, ok := g.nodes[path]; ok {
		return n
	}
	n := &node{
		path:         path,
		dependencies: newOrderedSet(),
		dependents:   newOrderedSet(),
		parents:      newOrderedSet(),
	}
	g.nodes[path] = n
	g.order.add(path)
	return n
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
