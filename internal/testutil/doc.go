// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by the tests of several packages:
// in-memory and on-disk project fixtures and cleanup of started services.
package testutil
