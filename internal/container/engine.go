// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/devcon/devcon/pkg/platform"
	"github.com/devcon/devcon/pkg/types"
)

const (
	// BackendAuto selects the first available backend for the host.
	BackendAuto BackendType = "auto"
	// BackendDocker drives the docker CLI.
	BackendDocker BackendType = "docker"
	// BackendApple drives Apple's `container` CLI.
	BackendApple BackendType = "apple"

	// LabelManaged marks every container devcon creates.
	LabelManaged = "devcon"
	// LabelProject identifies the project a container belongs to.
	LabelProject = "devcon.project"
	// LabelPath records the host project path for humans running `docker ps`.
	LabelPath = "devcon.path"
	// LabelBridged records whether the browser bridge was mounted at creation.
	LabelBridged = "devcon.bridged"
	// LabelDotfiles records the in-container dotfiles directory, if any.
	LabelDotfiles = "devcon.dotfiles"
	// LabelPorts records the published ports as comma-separated host:container pairs.
	LabelPorts = "devcon.ports"

	// OperationBuild, OperationUp, OperationExec, OperationStop and
	// OperationFind name the step reported in RuntimeError.
	OperationBuild = "build"
	OperationUp    = "up"
	OperationExec  = "exec"
	OperationStop  = "stop"
	OperationFind  = "find"
)

var (
	// ErrBackendNotAvailable is the sentinel wrapped by BackendNotAvailableError.
	ErrBackendNotAvailable = errors.New("container backend not available")

	// ErrInvalidBackendType is returned for unknown runtime preferences.
	ErrInvalidBackendType = errors.New("invalid backend type")
)

type (
	// BackendType identifies a container backend.
	BackendType string

	// Handle is the opaque container identifier returned by a backend.
	Handle string

	// ImageTag is an image reference understood by the backend.
	ImageTag string

	// Backend is the capability set every container runtime must provide.
	// Implementations shell out to an external binary; every non-zero exit
	// surfaces as *RuntimeError.
	Backend interface {
		// Name returns the backend type.
		Name() BackendType
		// Available reports whether the runtime binary exists and answers.
		Available(ctx context.Context) bool
		// ImageExists reports whether tag is already present locally.
		ImageExists(ctx context.Context, tag ImageTag) (bool, error)
		// Build builds an image from a Dockerfile.
		Build(ctx context.Context, opts BuildOptions) error
		// Find looks up the container labelled for project. It returns nil
		// without error when no such container exists.
		Find(ctx context.Context, project string) (*Info, error)
		// Up returns a running container for the project, reusing an existing
		// one when present.
		Up(ctx context.Context, opts UpOptions) (*UpResult, error)
		// Exec runs a command inside a running container.
		Exec(ctx context.Context, handle Handle, command []string, opts ExecOptions) error
		// Stop stops (and optionally removes) a container. Stopping a container
		// that is already stopped or gone succeeds.
		Stop(ctx context.Context, handle Handle, opts StopOptions) error
	}

	// CommandBuilder is implemented by CLI backends that can hand out an
	// unstarted exec command, used to attach a pseudo-terminal.
	CommandBuilder interface {
		ExecCommand(ctx context.Context, handle Handle, command []string, opts ExecOptions) *exec.Cmd
	}

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the Dockerfile path, relative to ContextDir unless absolute.
		Dockerfile string
		// Tag is the image tag.
		Tag ImageTag
		// Target selects a stage of a multi-stage Dockerfile.
		Target string
		// BuildArgs are build-time variables.
		BuildArgs map[string]string
		// Stdout receives build progress.
		Stdout io.Writer
		// Stderr receives build diagnostics (also captured for RuntimeError).
		Stderr io.Writer
	}

	// UpOptions describes the container to create when none exists yet.
	UpOptions struct {
		// Project is the value of the devcon.project label.
		Project string
		// Image to start.
		Image ImageTag
		// Labels are added next to the devcon labels.
		Labels map[string]string
		// Mounts are applied at creation time.
		Mounts []Mount
		// Ports are published on the host loopback interface at creation time.
		Ports []PortForward
		// Env is the container environment.
		Env map[string]string
		// WorkDir is the initial working directory.
		WorkDir string
		// User runs the keep-alive process.
		User string
		// Command keeps the container alive. Defaults to `sleep infinity`.
		Command []string
	}

	// UpResult reports what Up had to do.
	UpResult struct {
		Handle Handle
		// Created is true when a new container was created.
		Created bool
		// Started is true when the container was not running before Up.
		Started bool
		// Image is the image the container was created from.
		Image ImageTag
		// Labels are the devcon labels the container carries. A reused
		// container keeps the labels it was created with, which may not match
		// the requested UpOptions.
		Labels map[string]string
	}

	// Info describes an existing container.
	Info struct {
		Handle  Handle
		Running bool
		Image   ImageTag
		// Labels holds at least the creation-time labels listed in
		// TrackedLabels that are set on the container.
		Labels map[string]string
	}

	// ExecOptions contains options for running a command in a container.
	ExecOptions struct {
		User        string
		WorkDir     string
		Env         map[string]string
		Interactive bool
		TTY         bool
		Stdin       io.Reader
		Stdout      io.Writer
		Stderr      io.Writer
	}

	// StopOptions controls Stop.
	StopOptions struct {
		// Remove deletes the container after stopping it.
		Remove bool
	}

	// RuntimeError is returned when a runtime binary exits non-zero.
	RuntimeError struct {
		Backend   BackendType
		Operation string
		ExitCode  types.ExitCode
		// Stderr is the raw diagnostic text printed by the backend.
		Stderr string
		// Err is the underlying process error.
		Err error
	}

	// BackendNotAvailableError is returned when no usable runtime binary is found.
	BackendNotAvailableError struct {
		Backend BackendType
		Reason  string
	}

	// InvalidBackendTypeError is returned when a BackendType is not recognized.
	InvalidBackendTypeError struct {
		Value BackendType
	}
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s %s failed (exit code %d)", e.Backend, e.Operation, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying process error.
func (e *RuntimeError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *BackendNotAvailableError) Error() string {
	return fmt.Sprintf("container backend '%s' is not available: %s", e.Backend, e.Reason)
}

// Unwrap returns ErrBackendNotAvailable for errors.Is() compatibility.
func (e *BackendNotAvailableError) Unwrap() error { return ErrBackendNotAvailable }

// Error implements the error interface.
func (e *InvalidBackendTypeError) Error() string {
	return fmt.Sprintf("invalid runtime %q (valid: auto, docker, apple)", e.Value)
}

// Unwrap returns ErrInvalidBackendType for errors.Is() compatibility.
func (e *InvalidBackendTypeError) Unwrap() error { return ErrInvalidBackendType }

// Validate returns an error if the BackendType is not recognized.
// The zero value is treated as auto.
func (b BackendType) Validate() error {
	switch b {
	case BackendAuto, BackendDocker, BackendApple, "":
		return nil
	default:
		return &InvalidBackendTypeError{Value: b}
	}
}

// String returns the string representation of the BackendType.
func (b BackendType) String() string { return string(b) }

// Select checks the host once and returns the backend to use for a session.
// An explicit preference falls back to the other backend when its binary is
// missing; auto prefers Apple's runtime on macOS and docker elsewhere.
// appleOpts only apply when the Apple backend is constructed.
func Select(ctx context.Context, preference BackendType, appleOpts []AppleOption, opts ...BaseCLIEngineOption) (Backend, error) {
	if err := preference.Validate(); err != nil {
		return nil, err
	}
	docker := NewDockerBackend(opts...)
	var apple Backend
	if platform.SupportsAppleContainer(runtime.GOOS) {
		apple = NewAppleBackend(opts...).Configure(appleOpts...)
	}
	return selectFrom(ctx, preference, runtime.GOOS, docker, apple)
}

// selectFrom holds the preference logic so tests can inject fake backends.
// apple may be nil when the host cannot run it.
func selectFrom(ctx context.Context, preference BackendType, goos string, docker, apple Backend) (Backend, error) {
	var order []Backend
	switch preference {
	case BackendDocker:
		order = []Backend{docker, apple}
	case BackendApple:
		order = []Backend{apple, docker}
	default:
		if goos == platform.Darwin {
			order = []Backend{apple, docker}
		} else {
			order = []Backend{docker, apple}
		}
	}

	for _, b := range order {
		if b != nil && b.Available(ctx) {
			return b, nil
		}
	}

	if preference == "" {
		preference = BackendAuto
	}
	reason := "neither docker nor apple container is installed or responding"
	if !platform.SupportsAppleContainer(goos) {
		reason = "docker is not installed or the daemon is not responding"
	}
	return nil, &BackendNotAvailableError{Backend: preference, Reason: reason}
}
