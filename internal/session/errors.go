// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"fmt"

	"github.com/devcon/devcon/internal/devcontainer"
	"github.com/devcon/devcon/pkg/types"
)

var (
	// ErrHook is the sentinel wrapped by HookError.
	ErrHook = errors.New("lifecycle hook failed")

	// ErrInvalidProjectPath is the sentinel wrapped by InvalidProjectPathError.
	ErrInvalidProjectPath = errors.New("invalid project path")

	// ErrNoContainer is returned by Attach when a project has no running container.
	ErrNoContainer = errors.New("no running container for project")
)

type (
	// HookError is returned when a lifecycle hook exits non-zero. Remaining
	// hooks are not run.
	HookError struct {
		Stage devcontainer.HookStage
		// Origin is the feature ID or "devcontainer.json".
		Origin   string
		Command  string
		ExitCode types.ExitCode
		Err      error
	}

	// InvalidProjectPathError is returned when open is given a path that is
	// not an existing directory.
	InvalidProjectPathError struct {
		Path   string
		Reason string
	}
)

// Error implements the error interface.
func (e *HookError) Error() string {
	return fmt.Sprintf("%s from %s exited with code %d: %s", e.Stage, e.Origin, e.ExitCode, e.Command)
}

// Unwrap exposes both ErrHook and the runtime error.
func (e *HookError) Unwrap() []error { return []error{ErrHook, e.Err} }

// Error implements the error interface.
func (e *InvalidProjectPathError) Error() string {
	return fmt.Sprintf("project path %q: %s", e.Path, e.Reason)
}

// Unwrap returns ErrInvalidProjectPath for errors.Is() compatibility.
func (e *InvalidProjectPathError) Unwrap() error { return ErrInvalidProjectPath }
