// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"slices"
	"testing"
)

func TestOpenerCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos     string
		wantName string
		wantArgs []string
	}{
		{goos: Darwin, wantName: "open"},
		{goos: Linux, wantName: "xdg-open"},
		{goos: "freebsd", wantName: "xdg-open"},
		{goos: Windows, wantName: "rundll32", wantArgs: []string{"url.dll,FileProtocolHandler"}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			t.Parallel()

			name, args := OpenerCommand(tt.goos)
			if name != tt.wantName {
				t.Errorf("OpenerCommand(%q) name = %q, want %q", tt.goos, name, tt.wantName)
			}
			if !slices.Equal(args, tt.wantArgs) {
				t.Errorf("OpenerCommand(%q) args = %v, want %v", tt.goos, args, tt.wantArgs)
			}
		})
	}
}

func TestSupportsAppleContainer(t *testing.T) {
	t.Parallel()

	if !SupportsAppleContainer(Darwin) {
		t.Error("SupportsAppleContainer(darwin) = false, want true")
	}
	if SupportsAppleContainer(Linux) {
		t.Error("SupportsAppleContainer(linux) = true, want false")
	}
}
