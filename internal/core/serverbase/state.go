// SPDX-License-Identifier: MPL-2.0

package serverbase

const (
	// StateCreated is the state before Begin.
	StateCreated State = iota
	// StateStarting means the listener is being set up.
	StateStarting
	// StateRunning means connections are accepted.
	StateRunning
	// StateStopping means shutdown is in progress.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal. LastError holds the cause.
	StateFailed
)

// State is a lifecycle state.
type State int32

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
