// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"os"
	"slices"
	"sync"
)

const (
	// SandboxNone indicates no sandbox environment detected.
	SandboxNone SandboxType = ""
	// SandboxFlatpak indicates a Flatpak sandbox environment.
	SandboxFlatpak SandboxType = "flatpak"
	// SandboxSnap indicates a Snap sandbox environment.
	SandboxSnap SandboxType = "snap"
)

// SandboxType identifies the application sandbox devcon runs in, if any.
type SandboxType string

// detectOnce caches the result; the sandbox cannot change while the process
// runs. detectSandboxFrom must not panic, sync.OnceValue would re-panic on
// every call.
var detectOnce = sync.OnceValue(func() SandboxType {
	return detectSandboxFrom(os.Getenv, statFile)
})

// DetectSandbox returns the sandbox the current process runs in.
func DetectSandbox() SandboxType {
	return detectOnce()
}

// HostCommand rewrites name and args so the program runs on the host rather
// than inside the sandbox. Inside Flatpak the browser opener has to go
// through flatpak-spawn --host. Snaps reach xdg-open through the desktop
// portal, so their commands are returned unchanged.
func HostCommand(st SandboxType, name string, args []string) (string, []string) {
	switch st {
	case SandboxFlatpak:
		return "flatpak-spawn", append([]string{"--host", name}, args...)
	default:
		return name, slices.Clone(args)
	}
}

// detectSandboxFrom checks /.flatpak-info, which every Flatpak sandbox has,
// before SNAP_NAME, which every snap has.
func detectSandboxFrom(getenv func(string) string, stat func(string) error) SandboxType {
	if err := stat("/.flatpak-info"); err == nil {
		return SandboxFlatpak
	}
	if getenv("SNAP_NAME") != "" {
		return SandboxSnap
	}
	return SandboxNone
}

func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}
