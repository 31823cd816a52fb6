// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"fmt"
	"os"
	"os/exec"
)

// Detach starts the current executable with args in its own session, with
// stdin on the null device and output appended to logPath (or discarded when
// empty). It returns the child's pid without waiting for it.
func Detach(args []string, logPath string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to locate executable: %w", err)
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer func() { _ = devnull.Close() }() // the child holds its own copy

	out := devnull
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return 0, fmt.Errorf("failed to open daemon log: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdin = devnull
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = detachAttr()
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release() //nolint:errcheck // the child outlives us
	return pid, nil
}
