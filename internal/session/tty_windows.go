// SPDX-License-Identifier: MPL-2.0

//go:build windows

package session

import (
	"io"
	"os"
	"os/exec"

	"github.com/devcon/devcon/pkg/types"
)

// runTTY attaches cmd directly to the console; Windows has no pty devices.
func runTTY(cmd *exec.Cmd, stdin *os.File, stdout io.Writer) (types.ExitCode, error) {
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	code, ok := types.ExitCodeOf(err)
	if !ok {
		return 0, err
	}
	return code, nil
}
