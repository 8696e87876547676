// SPDX-License-Identifier: MPL-2.0

package server

// State is a step of the server lifecycle. Transitions only move forward:
// created, starting, running, stopping, then stopped. Failed can be reached
// from any non-terminal state.
type State int32

const (
	StateCreated State = iota
	StateStarting
	// StateRunning means the listener accepts loader connections.
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

var stateNames = [...]string{
	StateCreated:  "created",
	StateStarting: "starting",
	StateRunning:  "running",
	StateStopping: "stopping",
	StateStopped:  "stopped",
	StateFailed:   "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}
