// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
)

type (
	// AppleBackend implements Backend using Apple's `container` CLI (macOS only).
	// The CLI reports state as JSON; fields are read with gjson paths.
	AppleBackend struct {
		*BaseCLIEngine
		buildMemory string
		buildCPUs   int
	}

	// AppleOption configures the Apple-specific build resources.
	AppleOption func(*AppleBackend)
)

// WithBuildResources sets the memory and CPU limits passed to `container build`.
// Zero values leave the CLI defaults in place.
func WithBuildResources(memory string, cpus int) AppleOption {
	return func(e *AppleBackend) {
		e.buildMemory = memory
		e.buildCPUs = cpus
	}
}

// NewAppleBackend creates a backend for Apple's container runtime.
func NewAppleBackend(opts ...BaseCLIEngineOption) *AppleBackend {
	path, _ := exec.LookPath("container")
	return &AppleBackend{
		BaseCLIEngine: NewBaseCLIEngine(BackendApple, path, opts...),
	}
}

// Configure applies Apple-specific options.
func (e *AppleBackend) Configure(opts ...AppleOption) *AppleBackend {
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available checks that the CLI exists and its system service is running.
func (e *AppleBackend) Available(ctx context.Context) bool {
	if e.BinaryPath() == "" {
		return false
	}
	return e.RunCommandStatus(ctx, "status", "system", "status") == nil
}

// ImageExists reports whether tag is among the locally stored images.
func (e *AppleBackend) ImageExists(ctx context.Context, tag ImageTag) (bool, error) {
	out, err := e.RunCommandWithOutput(ctx, OperationBuild, "image", "list", "--format", "json")
	if err != nil {
		return false, err
	}
	want := string(tag)
	for _, ref := range gjson.Get(out, "#.reference").Array() {
		if ref.String() == want || strings.TrimPrefix(ref.String(), "docker.io/library/") == want {
			return true, nil
		}
	}
	return false, nil
}

// Build builds an image from a Dockerfile.
func (e *AppleBackend) Build(ctx context.Context, opts BuildOptions) error {
	return e.runCaptured(ctx, OperationBuild, e.BuildArgs(opts), nil, opts.Stdout, opts.Stderr)
}

// BuildArgs returns the `container build` argument list.
func (e *AppleBackend) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	args = append(args, "-t", string(opts.Tag))
	if opts.Target != "" {
		args = append(args, "--target", opts.Target)
	}
	if e.buildMemory != "" {
		args = append(args, "--memory", e.buildMemory)
	}
	if e.buildCPUs > 0 {
		args = append(args, "--cpus", fmt.Sprint(e.buildCPUs))
	}
	for _, kv := range envArgs(opts.BuildArgs) {
		if kv == "-e" {
			kv = "--build-arg"
		}
		args = append(args, kv)
	}
	return append(args, opts.ContextDir)
}

// Find returns the container labelled for project.
func (e *AppleBackend) Find(ctx context.Context, project string) (*Info, error) {
	out, err := e.RunCommandWithOutput(ctx, OperationFind, "list", "--all", "--format", "json")
	if err != nil {
		return nil, err
	}
	return findInList(out, project), nil
}

// findInList scans `container list --format json` output for the project label.
func findInList(out, project string) *Info {
	var found *Info
	gjson.Parse(out).ForEach(func(_, c gjson.Result) bool {
		labels := c.Get("configuration.labels")
		if labels.Get(gjson.Escape(LabelProject)).String() != project {
			return true
		}
		found = &Info{
			Handle:  Handle(c.Get("configuration.id").String()),
			Running: strings.EqualFold(c.Get("status").String(), "running"),
			Image:   ImageTag(c.Get("configuration.image.reference").String()),
			Labels:  map[string]string{},
		}
		labels.ForEach(func(k, v gjson.Result) bool {
			found.Labels[k.String()] = v.String()
			return true
		})
		return false
	})
	return found
}

// Up reuses the project's container when it exists and creates one otherwise.
func (e *AppleBackend) Up(ctx context.Context, opts UpOptions) (*UpResult, error) {
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
		return nil, &RuntimeError{Backend: BackendApple, Operation: OperationUp, Err: fmt.Errorf("container run printed no container id")}
	}
	return &UpResult{Handle: Handle(id), Created: true, Started: true, Image: opts.Image, Labels: containerLabels(opts)}, nil
}

// RunArgs returns the detached `container run` argument list. The Apple CLI
// only understands -v, so tmpfs mounts are passed with --tmpfs.
func (e *AppleBackend) RunArgs(opts UpOptions) []string {
	args := []string{"run", "-d"}
	args = append(args, labelArgs("-l", containerLabels(opts))...)
	for _, m := range opts.Mounts {
		if m.Source == "" {
			args = append(args, "--tmpfs", m.Target)
			continue
		}
		args = append(args, "-v", m.VolumeString())
	}
	args = append(args, publishArgs("--publish", opts.Ports)...)
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
func (e *AppleBackend) Exec(ctx context.Context, handle Handle, command []string, opts ExecOptions) error {
	return e.runCaptured(ctx, OperationExec, execArgs(handle, command, opts), opts.Stdin, opts.Stdout, opts.Stderr)
}

// ExecCommand returns the unstarted exec command for pseudo-terminal use.
func (e *AppleBackend) ExecCommand(ctx context.Context, handle Handle, command []string, opts ExecOptions) *exec.Cmd {
	return e.CreateCommand(ctx, execArgs(handle, command, opts)...)
}

// Stop stops the container and deletes it when requested.
func (e *AppleBackend) Stop(ctx context.Context, handle Handle, opts StopOptions) error {
	if err := e.RunCommandStatus(ctx, OperationStop, "stop", string(handle)); err != nil && !isGone(err) {
		return err
	}
	if !opts.Remove {
		return nil
	}
	if err := e.RunCommandStatus(ctx, OperationStop, "delete", "--force", string(handle)); err != nil && !isGone(err) {
		return err
	}
	return nil
}
