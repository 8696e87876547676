// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"
)

// ErrEmptyPath is returned when a loader request names no file.
var ErrEmptyPath = errors.New("empty module path")

// ErrNotImportedDynamically is the sentinel error wrapped by
// NotImportedDynamicallyError.
var ErrNotImportedDynamically = errors.New("boundary not imported dynamically")

// NotImportedDynamicallyError is returned by AddDependency when a boundary is
// reached through a static import and the engine is configured to fail
// instead of degrading to a full reload.
type NotImportedDynamicallyError struct {
	Specifier string
	// Parent is relative to the project root.
	Parent string
}

// Error implements the error interface for NotImportedDynamicallyError.
func (e *NotImportedDynamicallyError) Error() string {
	return fmt.Sprintf(
		"The import %q is not imported dynamically from %s.\nYou must use dynamic import to make it reloadable (HMR) with hotswap.",
		e.Specifier, e.Parent,
	)
}

// Unwrap returns ErrNotImportedDynamically for errors.Is() compatibility.
func (e *NotImportedDynamicallyError) Unwrap() error { return ErrNotImportedDynamically }
