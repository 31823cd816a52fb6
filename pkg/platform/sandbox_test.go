// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"io/fs"
	"slices"
	"testing"
)

func TestDetectSandboxFrom(t *testing.T) {
	t.Parallel()

	exists := func(string) error { return nil }
	missing := func(string) error { return fs.ErrNotExist }
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	tests := []struct {
		name   string
		getenv func(string) string
		stat   func(string) error
		want   SandboxType
	}{
		{"none", env(nil), missing, SandboxNone},
		{"flatpak", env(nil), exists, SandboxFlatpak},
		{"snap", env(map[string]string{"SNAP_NAME": "devcon"}), missing, SandboxSnap},
		{"flatpak wins over snap", env(map[string]string{"SNAP_NAME": "devcon"}), exists, SandboxFlatpak},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := detectSandboxFrom(tt.getenv, tt.stat); got != tt.want {
				t.Errorf("detectSandboxFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSandbox_Cached(t *testing.T) {
	t.Parallel()

	if first, second := DetectSandbox(), DetectSandbox(); first != second {
		t.Errorf("DetectSandbox() changed between calls: %q then %q", first, second)
	}
}

func TestHostCommand(t *testing.T) {
	t.Parallel()

	args := []string{"https://example.com"}
	tests := []struct {
		st       SandboxType
		wantName string
		wantArgs []string
	}{
		{SandboxNone, "xdg-open", []string{"https://example.com"}},
		{SandboxSnap, "xdg-open", []string{"https://example.com"}},
		{SandboxFlatpak, "flatpak-spawn", []string{"--host", "xdg-open", "https://example.com"}},
	}
	for _, tt := range tests {
		name, got := HostCommand(tt.st, "xdg-open", args)
		if name != tt.wantName || !slices.Equal(got, tt.wantArgs) {
			t.Errorf("HostCommand(%q) = %s %v, want %s %v", tt.st, name, got, tt.wantName, tt.wantArgs)
		}
	}

	_, got := HostCommand(SandboxNone, "xdg-open", args)
	got[0] = "changed"
	if args[0] != "https://example.com" {
		t.Error("HostCommand must not alias the caller's args")
	}
}
