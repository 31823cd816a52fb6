// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"fmt"
	"slices"
)

const (
	// StageRequested is the initial stage of every session.
	StageRequested Stage = iota
	// StageBuilding covers backend selection and image provisioning.
	StageBuilding
	// StageCreated means the container exists and is running.
	StageCreated
	// StageHooksRunning covers lifecycle hook execution. Session.HookIndex
	// reports how many hook commands have started.
	StageHooksRunning
	// StageReady means the container is ready for interactive use.
	StageReady
	// StageStopping is entered by Stop.
	StageStopping
	// StageStopped is terminal: the container has been stopped.
	StageStopped
	// StageFailed is terminal: Session.Err holds the reason.
	StageFailed
)

// ErrInvalidTransition is the sentinel wrapped by InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid stage transition")

type (
	// Stage is the lifecycle stage of a Session.
	Stage int32

	// InvalidTransitionError is returned when a session is asked to move
	// along an edge the stage graph does not have.
	InvalidTransitionError struct {
		From Stage
		To   Stage
	}
)

// transitions is the stage graph. StageFailed is reachable from every
// non-terminal stage and is handled separately.
var transitions = map[Stage][]Stage{
	StageRequested:    {StageBuilding, StageStopping},
	StageBuilding:     {StageCreated},
	StageCreated:      {StageHooksRunning},
	StageHooksRunning: {StageReady},
	StageReady:        {StageHooksRunning, StageStopping},
	StageStopping:     {StageStopped},
}

// String returns a human-readable representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageRequested:
		return "requested"
	case StageBuilding:
		return "building"
	case StageCreated:
		return "created"
	case StageHooksRunning:
		return "hooks-running"
	case StageReady:
		return "ready"
	case StageStopping:
		return "stopping"
	case StageStopped:
		return "stopped"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int32(s))
	}
}

// IsTerminal returns true for Stopped and Failed.
func (s Stage) IsTerminal() bool {
	return s == StageStopped || s == StageFailed
}

// CanTransition reports whether the stage graph has an edge from s to next.
func (s Stage) CanTransition(next Stage) bool {
	if next == StageFailed {
		return !s.IsTerminal()
	}
	return slices.Contains(transitions[s], next)
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move session from %s to %s", e.From, e.To)
}

// Unwrap returns ErrInvalidTransition for errors.Is() compatibility.
func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
