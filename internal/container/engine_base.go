// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"io"
	"maps"
	"os/exec"
	"slices"
	"strings"

	"github.com/devcon/devcon/pkg/types"
)

// exitCodeNotRun is reported when the runtime binary could not be started at all.
const exitCodeNotRun types.ExitCode = 127

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine holds what every CLI-driven backend shares: the binary
	// location, the command factory and the mapping from failed processes to
	// RuntimeError. DockerBackend and AppleBackend embed it.
	BaseCLIEngine struct {
		name        BackendType
		binaryPath  string
		execCommand ExecCommandFunc
	}
)

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithBinaryPath overrides the binary found on PATH.
func WithBinaryPath(path string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.binaryPath = path
	}
}

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(name BackendType, binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		name:        name,
		binaryPath:  binaryPath,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the backend type.
func (e *BaseCLIEngine) Name() BackendType {
	return e.name
}

// BinaryPath returns the path to the runtime binary, empty when not installed.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// CreateCommand creates an exec.Cmd for the given arguments.
// This is useful when the caller needs to customize stdin/stdout/stderr.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// RunCommandWithOutput runs a command and returns its stdout. A failure is
// reported as *RuntimeError carrying the captured stderr.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, operation string, args ...string) (string, error) {
	var out bytes.Buffer
	err := e.runCaptured(ctx, operation, args, nil, &out, nil)
	return out.String(), err
}

// RunCommandStatus runs a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, operation string, args ...string) error {
	return e.runCaptured(ctx, operation, args, nil, nil, nil)
}

// runCaptured runs the binary with the given streams. stderr is always
// captured so the backend's diagnostic text can travel with the error; it is
// also forwarded to stderrTee when set.
func (e *BaseCLIEngine) runCaptured(ctx context.Context, operation string, args []string, stdin io.Reader, stdout, stderrTee io.Writer) error {
	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout

	var stderr bytes.Buffer
	if stderrTee != nil {
		cmd.Stderr = io.MultiWriter(&stderr, stderrTee)
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		return e.runtimeError(operation, err, stderr.String())
	}
	return nil
}

// runtimeError maps a failed process to *RuntimeError.
func (e *BaseCLIEngine) runtimeError(operation string, err error, stderr string) *RuntimeError {
	code, ok := types.ExitCodeOf(err)
	if !ok {
		code = exitCodeNotRun
	}
	return &RuntimeError{
		Backend:   e.name,
		Operation: operation,
		ExitCode:  code,
		Stderr:    stderr,
		Err:       err,
	}
}

// envArgs renders env as repeated `-e KEY=VALUE` flags in key order.
func envArgs(env map[string]string) []string {
	var args []string
	for _, k := range slices.Sorted(maps.Keys(env)) {
		args = append(args, "-e", k+"="+env[k])
	}
	return args
}

// labelArgs renders labels with the given flag in key order.
func labelArgs(flag string, labels map[string]string) []string {
	var args []string
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		args = append(args, flag, k+"="+labels[k])
	}
	return args
}

// containerLabels merges the devcon bookkeeping labels with user labels.
func containerLabels(opts UpOptions) map[string]string {
	labels := make(map[string]string, len(opts.Labels)+2)
	maps.Copy(labels, opts.Labels)
	labels[LabelManaged] = "true"
	labels[LabelProject] = opts.Project
	if len(opts.Ports) > 0 {
		labels[LabelPorts] = FormatPorts(opts.Ports)
	}
	return labels
}

// TrackedLabels are the labels describing creation-time choices that cannot
// change on a reused container.
var TrackedLabels = []string{LabelBridged, LabelDotfiles, LabelPorts}

// keepAliveCommand returns the command that keeps an idle container running.
func keepAliveCommand(opts UpOptions) []string {
	if len(opts.Command) > 0 {
		return opts.Command
	}
	return []string{"sleep", "infinity"}
}

// isNotFound reports whether a backend's stderr says the container is gone.
func isNotFound(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "no such container") || strings.Contains(lower, "not found")
}

// firstLine returns the first non-empty trimmed line of s.
func firstLine(s string) string {
	for line := range strings.SplitSeq(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
