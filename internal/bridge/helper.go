// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"fmt"
	"os"
	"path/filepath"
)

const helperScript = `#!/bin/sh
# Forwards a URL to the devcon browser bridge on the host.
sock="${DEVCON_BROWSER_SOCKET:-%s}"
if [ $# -lt 1 ] || [ -z "$1" ]; then
	echo "usage: %s <url>" >&2
	exit 2
fi
if [ ! -S "$sock" ]; then
	echo "%s: bridge socket $sock is not mounted" >&2
	exit 1
fi
if command -v socat >/dev/null 2>&1; then
	printf '%%s\n' "$1" | socat - "UNIX-CONNECT:$sock"
elif command -v nc >/dev/null 2>&1; then
	printf '%%s\n' "$1" | nc -U "$sock"
else
	echo "%s: socat or nc is required" >&2
	exit 1
fi
`

// HelperScript returns the POSIX shell helper mounted into containers.
func HelperScript() string {
	return fmt.Sprintf(helperScript, ContainerSocketPath, HelperName, HelperName, HelperName)
}

// WriteHelper writes the helper script to path with mode 0755. The file is
// replaced atomically so a mounted copy never sees a partial write.
func WriteHelper(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+HelperName+"-*")
	if err != nil {
		return fmt.Errorf("failed to create helper: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after a successful rename

	if _, err := tmp.WriteString(HelperScript()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write helper: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write helper: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		return fmt.Errorf("failed to make helper executable: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install helper: %w", err)
	}
	return nil
}
