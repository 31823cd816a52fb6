// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package session

import (
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/devcon/devcon/pkg/types"
)

// runTTY runs cmd on a pseudo-terminal wired to the caller's terminal.
func runTTY(cmd *exec.Cmd, stdin *os.File, stdout io.Writer) (types.ExitCode, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return 0, err
	}
	defer func() { _ = ptmx.Close() }() // Best-effort; the process has exited

	resize := make(chan os.Signal, 1)
	signal.Notify(resize, syscall.SIGWINCH)
	go func() {
		for range resize {
			_ = pty.InheritSize(stdin, ptmx) // Size errors only affect layout
		}
	}()
	resize <- syscall.SIGWINCH
	defer func() {
		signal.Stop(resize)
		close(resize)
	}()

	if state, err := term.MakeRaw(int(stdin.Fd())); err == nil {
		defer func() { _ = term.Restore(int(stdin.Fd()), state) }()
	}

	go func() { _, _ = io.Copy(ptmx, stdin) }()
	_, _ = io.Copy(stdout, ptmx) // Returns EIO once the process exits

	waitErr := cmd.Wait()
	code, ok := types.ExitCodeOf(waitErr)
	if !ok {
		return 0, waitErr
	}
	return code, nil
}
