// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"os"

	"golang.org/x/term"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/pkg/types"
)

// interactive runs a user command in the session's container. When the
// caller asked for a TTY and stdin is a terminal, the runtime CLI is started
// on a pseudo-terminal. A non-zero exit of the command is returned as its
// exit code, not as an error.
func (o *Orchestrator) interactive(ctx context.Context, s *Session, argv []string, opts ExecOptions) (types.ExitCode, error) {
	execOpts := container.ExecOptions{
		User:        s.effective.Base.EffectiveRemoteUser(),
		WorkDir:     s.effective.Base.ContainerWorkspaceFolder(),
		Env:         o.execEnv(s, opts.Env),
		Interactive: opts.Stdin != nil,
		Stdin:       opts.Stdin,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
	}

	if f, ok := opts.Stdin.(*os.File); ok && opts.TTY && term.IsTerminal(int(f.Fd())) {
		if builder, ok := s.backend.(container.CommandBuilder); ok {
			execOpts.TTY = true
			s.execMu.Lock()
			defer s.execMu.Unlock()
			cmd := builder.ExecCommand(ctx, s.Handle, argv, execOpts)
			return runTTY(cmd, f, opts.Stdout)
		}
	}

	err := o.exec(ctx, s, argv, execOpts)
	if err == nil {
		return 0, nil
	}
	var rerr *container.RuntimeError
	if errors.As(err, &rerr) && rerr.Operation == container.OperationExec && rerr.ExitCode > 0 {
		return rerr.ExitCode, nil
	}
	return 0, err
}
