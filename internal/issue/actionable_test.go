// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

var errHookExit = errors.New("exit status 7")

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  &ActionableError{Operation: "start container"},
			want: "failed to start container",
		},
		{
			name: "with resource",
			err:  &ActionableError{Operation: "load devcontainer.json", Resource: "./.devcontainer/devcontainer.json"},
			want: "failed to load devcontainer.json: ./.devcontainer/devcontainer.json",
		},
		{
			name: "with resource and cause",
			err: &ActionableError{
				Operation: "run postCreateCommand",
				Resource:  "./features/hello",
				Cause:     errHookExit,
			},
			want: "failed to run postCreateCommand: ./features/hello: exit status 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Chain(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("hook: %w", errHookExit)
	err := NewErrorContext().WithOperation("run hooks").Wrap(wrapped).BuildError()

	if !errors.Is(err, errHookExit) {
		t.Error("errors.Is should find the root cause")
	}
	var ae *ActionableError
	if !errors.As(fmt.Errorf("outer: %w", err), &ae) {
		t.Fatal("errors.As should find the ActionableError")
	}
	if ae.Unwrap() != wrapped {
		t.Error("Unwrap() should return the direct cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().
		WithOperation("start browser bridge").
		WithResource("/tmp/devcon.sock").
		WithSuggestions("Stop the other daemon", "Pass a different socket").
		Wrap(fmt.Errorf("listen: %w", errHookExit)).
		Build()

	short := err.Format(false)
	for _, want := range []string{"failed to start browser bridge", "/tmp/devcon.sock", "• Stop the other daemon", "• Pass a different socket"} {
		if !strings.Contains(short, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, short)
		}
	}
	if strings.Contains(short, "Error chain") {
		t.Errorf("Format(false) should not include the error chain:\n%s", short)
	}

	if strings.Contains(short, "--verbose") {
		t.Errorf("Format(false) without an issue should not suggest --verbose:\n%s", short)
	}
	err.Issue = BridgeAddressInUseId
	if short := err.Format(false); !strings.Contains(short, "Run again with --verbose") {
		t.Errorf("Format(false) with an issue should suggest --verbose:\n%s", short)
	}

	verbose := err.Format(true)
	for _, want := range []string{"Error chain:", "1. listen: exit status 7", "2. exit status 7"} {
		if !strings.Contains(verbose, want) {
			t.Errorf("Format(true) missing %q:\n%s", want, verbose)
		}
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without an operation should return nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without an operation should return a nil error")
	}

	err := NewErrorContext().
		WithOperation("fetch feature").
		WithResource("ghcr.io/devcontainers/features/go:1").
		WithSuggestion("Check the tag").
		WithIssue(FeatureFetchFailedId).
		Build()
	if err.Operation != "fetch feature" || err.Resource != "ghcr.io/devcontainers/features/go:1" {
		t.Errorf("unexpected fields: %+v", err)
	}
	if !err.HasSuggestions() {
		t.Error("HasSuggestions() = false")
	}
	if page := err.Page(); page == nil || page.Id() != FeatureFetchFailedId {
		t.Errorf("Page() = %v, want the feature fetch issue", page)
	}
	if (&ActionableError{Operation: "x"}).Page() != nil {
		t.Error("Page() without an issue should be nil")
	}
}

func TestErrorContext_Reuse(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().WithOperation("stop container")
	first := ctx.Wrap(errors.New("first")).Build()
	second := ctx.Wrap(errors.New("second")).Build()

	if first.Cause.Error() == second.Cause.Error() {
		t.Error("reused context should allow different causes")
	}
	if first.Operation != second.Operation {
		t.Error("reused context should keep the operation")
	}
}
