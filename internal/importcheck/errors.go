// SPDX-License-Identifier: MPL-2.0

package importcheck

import (
	"errors"
	"fmt"
)

// ErrFileTooLarge is the sentinel error wrapped by FileTooLargeError.
var ErrFileTooLarge = errors.New("file too large")

// FileTooLargeError is returned when a parent file exceeds the parse limit.
type FileTooLargeError struct {
	Path  string
	Size  int64
	Limit int64
}

// Error implements the error interface for FileTooLargeError.
func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s: size %d exceeds limit %d", e.Path, e.Size, e.Limit)
}

// Unwrap returns ErrFileTooLarge for errors.Is() compatibility.
func (e *FileTooLargeError) Unwrap() error { return ErrFileTooLarge }
