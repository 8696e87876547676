// SPDX-License-Identifier: MPL-2.0

// Package supervisor runs the host command and restarts it when the engine
// decides a change cannot be hot-swapped.
package supervisor
