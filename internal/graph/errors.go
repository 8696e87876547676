// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNodeNotFound is the sentinel error wrapped by NodeNotFoundError.
	ErrNodeNotFound = errors.New("node not found")

	// ErrRootAlreadySet is returned when AddRoot is called with a path other
	// than the existing root.
	ErrRootAlreadySet = errors.New("graph root already set")
)

// NodeNotFoundError is returned when a required node is not tracked by the graph.
type NodeNotFoundError struct {
	Path string
}

// Error implements the error interface for NodeNotFoundError.
func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNodeNotFound, e.Path)
}

// Unwrap returns ErrNodeNotFound for errors.Is() compatibility.
func (e *NodeNotFoundError) Unwrap() error { return ErrNodeNotFound }
