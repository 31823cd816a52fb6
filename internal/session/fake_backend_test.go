// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/pkg/types"
)

type (
	// fakeBackend keeps containers in memory. Marker files written by the
	// orchestrator are tracked per container so `test -f` answers like a
	// real shell would.
	fakeBackend struct {
		mu         sync.Mutex
		images     map[container.ImageTag]bool
		builds     []container.BuildOptions
		containers map[string]*fakeContainer
		ups        []container.UpOptions
		execs      []execCall
		stops      []container.StopOptions
		next       int

		// failOn makes commands whose argv[0] matches exit with failCode.
		failOn   string
		failCode types.ExitCode
	}

	fakeContainer struct {
		handle  container.Handle
		running bool
		image   container.ImageTag
		mounts  []container.Mount
		labels  map[string]string
		markers map[string]bool
	}

	execCall struct {
		handle container.Handle
		argv   []string
		opts   container.ExecOptions
	}
)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		images:     map[container.ImageTag]bool{"debian:12": true},
		containers: map[string]*fakeContainer{},
	}
}

func (b *fakeBackend) Name() container.BackendType { return container.BackendDocker }

func (b *fakeBackend) Available(context.Context) bool { return true }

func (b *fakeBackend) containerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.containers)
}

func (b *fakeBackend) userCommands() []execCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.execs)
}

func (b *fakeBackend) upCalls() []container.UpOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.ups)
}

func (b *fakeBackend) stopCalls() []container.StopOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.stops)
}

func (b *fakeBackend) ImageExists(_ context.Context, tag container.ImageTag) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.images[tag], nil
}

func (b *fakeBackend) Build(_ context.Context, opts container.BuildOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builds = append(b.builds, opts)
	b.images[opts.Tag] = true
	return nil
}

func (b *fakeBackend) Find(_ context.Context, project string) (*container.Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.containers[project]
	if !ok {
		return nil, nil
	}
	return &container.Info{Handle: c.handle, Running: c.running, Image: c.image, Labels: maps.Clone(c.labels)}, nil
}

func (b *fakeBackend) Up(_ context.Context, opts container.UpOptions) (*container.UpResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ups = append(b.ups, opts)
	if !b.images[opts.Image] {
		return nil, &container.RuntimeError{Backend: container.BackendDocker, Operation: container.OperationUp, ExitCode: 125, Stderr: "no such image"}
	}
	if c, ok := b.containers[opts.Project]; ok {
		started := !c.running
		c.running = true
		return &container.UpResult{Handle: c.handle, Started: started, Image: c.image, Labels: maps.Clone(c.labels)}, nil
	}
	b.next++
	labels := maps.Clone(opts.Labels)
	if labels == nil {
		labels = map[string]string{}
	}
	if len(opts.Ports) > 0 {
		labels[container.LabelPorts] = container.FormatPorts(opts.Ports)
	}
	c := &fakeContainer{
		handle:  container.Handle(fmt.Sprintf("c%d", b.next)),
		running: true,
		image:   opts.Image,
		mounts:  slices.Clone(opts.Mounts),
		labels:  labels,
		markers: map[string]bool{},
	}
	b.containers[opts.Project] = c
	return &container.UpResult{Handle: c.handle, Created: true, Started: true, Image: c.image, Labels: maps.Clone(labels)}, nil
}

func (b *fakeBackend) Exec(_ context.Context, handle container.Handle, argv []string, opts container.ExecOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.byHandle(handle)
	if c == nil || !c.running {
		return &container.RuntimeError{Backend: container.BackendDocker, Operation: container.OperationExec, ExitCode: 1, Stderr: "container not running"}
	}

	switch {
	case len(argv) == 3 && argv[0] == "test" && argv[1] == "-f":
		if c.markers[argv[2]] {
			return nil
		}
		return &container.RuntimeError{Backend: container.BackendDocker, Operation: container.OperationExec, ExitCode: 1}
	case len(argv) == 6 && argv[3] == markerScriptName:
		c.markers[argv[4]+"/"+argv[5]] = true
		return nil
	}

	b.execs = append(b.execs, execCall{handle: handle, argv: slices.Clone(argv), opts: opts})
	if b.failOn != "" && argv[0] == b.failOn {
		return &container.RuntimeError{
			Backend:   container.BackendDocker,
			Operation: container.OperationExec,
			ExitCode:  b.failCode,
			Stderr:    argv[0] + ": boom",
		}
	}
	return nil
}

func (b *fakeBackend) Stop(_ context.Context, handle container.Handle, opts container.StopOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops = append(b.stops, opts)
	for project, c := range b.containers {
		if c.handle != handle {
			continue
		}
		c.running = false
		if opts.Remove {
			delete(b.containers, project)
		}
	}
	return nil
}

func (b *fakeBackend) byHandle(handle container.Handle) *fakeContainer {
	for _, c := range b.containers {
		if c.handle == handle {
			return c
		}
	}
	return nil
}

// commandLines renders recorded user commands for comparison.
func commandLines(calls []execCall) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, strings.Join(c.argv, " "))
	}
	return out
}
