// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/devcon/devcon/pkg/platform"
)

// fakeBackend only answers Available; selection never calls anything else.
type fakeBackend struct {
	Backend
	name      BackendType
	available bool
}

func (f *fakeBackend) Name() BackendType                { return f.name }
func (f *fakeBackend) Available(_ context.Context) bool { return f.available }

func TestSelectFrom(t *testing.T) {
	t.Parallel()

	up := func(n BackendType) *fakeBackend { return &fakeBackend{name: n, available: true} }
	down := func(n BackendType) *fakeBackend { return &fakeBackend{name: n} }

	tests := []struct {
		name   string
		pref   BackendType
		goos   string
		docker Backend
		apple  Backend
		want   BackendType
	}{
		{"auto on linux picks docker", BackendAuto, platform.Linux, up(BackendDocker), nil, BackendDocker},
		{"auto on darwin prefers apple", BackendAuto, platform.Darwin, up(BackendDocker), up(BackendApple), BackendApple},
		{"auto on darwin falls back to docker", "", platform.Darwin, up(BackendDocker), down(BackendApple), BackendDocker},
		{"explicit docker wins on darwin", BackendDocker, platform.Darwin, up(BackendDocker), up(BackendApple), BackendDocker},
		{"explicit apple falls back to docker", BackendApple, platform.Darwin, up(BackendDocker), down(BackendApple), BackendDocker},
		{"explicit docker falls back to apple", BackendDocker, platform.Darwin, down(BackendDocker), up(BackendApple), BackendApple},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := selectFrom(context.Background(), tt.pref, tt.goos, tt.docker, tt.apple)
			if err != nil {
				t.Fatalf("selectFrom() error: %v", err)
			}
			if got.Name() != tt.want {
				t.Errorf("selectFrom() = %s, want %s", got.Name(), tt.want)
			}
		})
	}
}

func TestSelectFrom_NothingAvailable(t *testing.T) {
	t.Parallel()
	_, err := selectFrom(context.Background(), BackendAuto, platform.Linux, &fakeBackend{name: BackendDocker}, nil)
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Fatalf("expected ErrBackendNotAvailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "docker") {
		t.Errorf("error should mention docker: %v", err)
	}
}

func TestSelect_RejectsUnknownPreference(t *testing.T) {
	t.Parallel()
	_, err := Select(context.Background(), "podman", nil)
	if !errors.Is(err, ErrInvalidBackendType) {
		t.Fatalf("expected ErrInvalidBackendType, got %v", err)
	}
}

func TestRuntimeError_Message(t *testing.T) {
	t.Parallel()
	err := &RuntimeError{Backend: BackendDocker, Operation: OperationExec, ExitCode: 2, Stderr: "oops\n"}
	if got, want := err.Error(), "docker exec failed (exit code 2): oops"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFirstLine(t *testing.T) {
	t.Parallel()
	if got := firstLine("\n  \n abc \nxyz"); got != "abc" {
		t.Errorf("firstLine() = %q", got)
	}
	if got := firstLine(""); got != "" {
		t.Errorf("firstLine(\"\") = %q", got)
	}
}
