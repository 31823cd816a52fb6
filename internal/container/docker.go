// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DockerBackend implements Backend using the docker CLI.
// It embeds BaseCLIEngine for common CLI operations.
type DockerBackend struct {
	*BaseCLIEngine
}

// NewDockerBackend creates a new docker backend. The binary is looked up on
// PATH unless WithBinaryPath is given.
func NewDockerBackend(opts ...BaseCLIEngineOption) *DockerBackend {
	path, _ := exec.LookPath("docker")
	return &DockerBackend{
		BaseCLIEngine: NewBaseCLIEngine(BackendDocker, path, opts...),
	}
}

// Available checks that the docker CLI exists and the daemon answers.
func (e *DockerBackend) Available(ctx context.Context) bool {
	if e.BinaryPath() == "" {
		return false
	}
	return e.RunCommandStatus(ctx, "version", "version", "--format", "{{.Server.Version}}") == nil
}

// ImageExists checks if an image exists locally.
func (e *DockerBackend) ImageExists(ctx context.Context, tag ImageTag) (bool, error) {
	err := e.RunCommandStatus(ctx, OperationBuild, "image", "inspect", string(tag))
	if err == nil {
		return true, nil
	}
	var rerr *RuntimeError
	if errors.As(err, &rerr) && rerr.ExitCode != exitCodeNotRun {
		return false, nil
	}
	return false, err
}

// Build builds an image from a Dockerfile.
func (e *DockerBackend) Build(ctx context.Context, opts BuildOptions) error {
	return e.runCaptured(ctx, OperationBuild, e.BuildArgs(opts), nil, opts.Stdout, opts.Stderr)
}

// BuildArgs returns the `docker build` argument list.
func (e *DockerBackend) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	args = append(args, "-t", string(opts.Tag))
	if opts.Target != "" {
		args = append(args, "--target", opts.Target)
	}
	for _, kv := range envArgs(opts.BuildArgs) {
		if kv == "-e" {
			kv = "--build-arg"
		}
		args = append(args, kv)
	}
	return append(args, opts.ContextDir)
}

// Find returns the container labelled for project, running or not.
func (e *DockerBackend) Find(ctx context.Context, project string) (*Info, error) {
	out, err := e.RunCommandWithOutput(ctx, OperationFind,
		"ps", "-a",
		"--filter", "label="+LabelProject+"="+project,
		"--format", dockerFindFormat())
	if err != nil {
		return nil, err
	}
	return parseDockerFind(out), nil
}

// dockerFindFormat prints the ID, the state, the image and each tracked
// label, tab separated.
func dockerFindFormat() string {
	fields := []string{"{{.ID}}", "{{.State}}", "{{.Image}}"}
	for _, l := range TrackedLabels {
		fields = append(fields, fmt.Sprintf("{{.Label %q}}", l))
	}
	return strings.Join(fields, "\t")
}

func parseDockerFind(out string) *Info {
	line := firstLine(out)
	if line == "" {
		return nil
	}
	fields := strings.Split(line, "\t")
	info := &Info{Handle: Handle(fields[0]), Labels: map[string]string{}}
	if len(fields) > 1 {
		info.Running = strings.EqualFold(fields[1], "running")
	}
	if len(fields) > 2 {
		info.Image = ImageTag(fields[2])
	}
	for i, l := range TrackedLabels {
		if i+3 < len(fields) && fields[i+3] != "" {
			info.Labels[l] = fields[i+3]
		}
	}
	return info
}

// Up reuses the project's container when it exists and creates one otherwise.
func (e *DockerBackend) Up(ctx context.Context, opts UpOptions) (*UpResult, error) {
	info, err := e.Find(ctx, opts.Project)
	if err != nil {
		return nil, err
	}
	if info != nil {
		if info.Running {
			return &UpResult{Handle: info.Handle, Image: info.Image, Labels: info.Labels}, nil
		}
		if err := e.RunCommandStatus(ctx, OperationUp, "start", string(info.Handle)); err != nil {
			return nil, err
		}
		return &UpResult{Handle: info.Handle, Started: true, Image: info.Image, Labels: info.Labels}, nil
	}

	out, err := e.RunCommandWithOutput(ctx, OperationUp, e.RunArgs(opts)...)
	if err != nil {
		return nil, err
	}
	id := firstLine(out)
	if id == "" {
		return nil, &RuntimeError{Backend: BackendDocker, Operation: OperationUp, Err: fmt.Errorf("docker run printed no container id")}
	}
	return &UpResult{Handle: Handle(id), Created: true, Started: true, Image: opts.Image, Labels: containerLabels(opts)}, nil
}

// RunArgs returns the detached `docker run` argument list for a new container.
func (e *DockerBackend) RunArgs(opts UpOptions) []string {
	args := []string{"run", "-d"}
	args = append(args, labelArgs("--label", containerLabels(opts))...)
	for _, m := range opts.Mounts {
		args = append(args, "--mount", m.String())
	}
	args = append(args, publishArgs("-p", opts.Ports)...)
	args = append(args, envArgs(opts.Env)...)
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}
	args = append(args, string(opts.Image))
	return append(args, keepAliveCommand(opts)...)
}

// Exec runs a command inside a running container.
func (e *DockerBackend) Exec(ctx context.Context, handle Handle, command []string, opts ExecOptions) error {
	return e.runCaptured(ctx, OperationExec, e.ExecArgs(handle, command, opts), opts.Stdin, opts.Stdout, opts.Stderr)
}

// ExecCommand returns the unstarted exec command so callers can attach a
// pseudo-terminal.
func (e *DockerBackend) ExecCommand(ctx context.Context, handle Handle, command []string, opts ExecOptions) *exec.Cmd {
	return e.CreateCommand(ctx, e.ExecArgs(handle, command, opts)...)
}

// ExecArgs returns the `docker exec` argument list.
func (e *DockerBackend) ExecArgs(handle Handle, command []string, opts ExecOptions) []string {
	return execArgs(handle, command, opts)
}

// Stop stops the container and removes it when requested. A container that
// is already gone counts as stopped.
func (e *DockerBackend) Stop(ctx context.Context, handle Handle, opts StopOptions) error {
	if err := e.RunCommandStatus(ctx, OperationStop, "stop", string(handle)); err != nil && !isGone(err) {
		return err
	}
	if !opts.Remove {
		return nil
	}
	if err := e.RunCommandStatus(ctx, OperationStop, "rm", "-f", string(handle)); err != nil && !isGone(err) {
		return err
	}
	return nil
}

// execArgs is shared by both backends; their exec flags are identical.
func execArgs(handle Handle, command []string, opts ExecOptions) []string {
	args := []string{"exec"}
	if opts.Interactive {
		args = append(args, "-i")
	}
	if opts.TTY {
		args = append(args, "-t")
	}
	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	args = append(args, envArgs(opts.Env)...)
	args = append(args, string(handle))
	return append(args, command...)
}

// isGone reports whether err says the container no longer exists.
func isGone(err error) bool {
	var rerr *RuntimeError
	return errors.As(err, &rerr) && isNotFound(rerr.Stderr)
}
