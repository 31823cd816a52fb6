// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"os"
	"path/filepath"
	"strconv"
)

const (
	// ContainerSocketPath is where the socket is mounted inside containers.
	ContainerSocketPath = "/tmp/devcon-browser.sock"
	// ContainerHelperPath is where the helper is mounted inside containers.
	ContainerHelperPath = "/usr/local/bin/" + HelperName
	// HelperName is the file name of the helper script.
	HelperName = "devcon-browser"
	// SocketName is the file name of the host socket.
	SocketName = "devcon-browser.sock"
)

// DefaultSocketPath returns the host socket path under XDG_RUNTIME_DIR, or
// a per-user directory in the system temp dir.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "devcon", SocketName)
	}
	return filepath.Join(os.TempDir(), "devcon-"+userTag(), SocketName)
}

// HelperPathFor returns the helper script location for a socket path.
func HelperPathFor(socketPath string) string {
	return filepath.Join(filepath.Dir(socketPath), HelperName)
}

// EnsureSocketDir creates the default socket directory with mode 0700.
// Custom paths are not created; their parent must exist.
func EnsureSocketDir(socketPath string) error {
	if socketPath != DefaultSocketPath() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return &SocketPathUnavailableError{Path: socketPath, Err: err}
	}
	return nil
}

func userTag() string {
	if uid := os.Getuid(); uid >= 0 {
		return strconv.Itoa(uid)
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return "user"
}
