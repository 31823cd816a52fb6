// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devcon/devcon/internal/session"
)

// ErrInvalidEnvAssignment is returned for --env values without a '='.
var ErrInvalidEnvAssignment = errors.New("invalid env assignment")

func newShellCommand(app *App) *cobra.Command {
	var envFlags []string

	cmd := &cobra.Command{
		Use:   "shell [path] [-- command...]",
		Short: "Run a shell or command in a project's dev container",
		Long: `Run a shell or command in a project's dev container.

The container is opened first if needed. Without a command the configured
default shell is started, else the first of zsh, bash and sh found in the
container. The exit status of the command becomes devcon's exit status.`,
		Example: `  devcon shell
  devcon shell ~/src/api
  devcon shell . -e DEBUG=1 -- go test ./...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pathArgs, argv := splitAtDash(args, cmd.ArgsLenAtDash())
			if len(pathArgs) > 1 {
				return fmt.Errorf("expected at most one path before --, got %d", len(pathArgs))
			}
			env, err := parseEnvAssignments(envFlags)
			if err != nil {
				return err
			}

			path, err := app.projectPath(pathArgs, true)
			if err != nil {
				return err
			}
			orch, err := app.orchestrator(cmd.Context())
			if err != nil {
				return err
			}

			opts := session.ExecOptions{
				Stdin:  os.Stdin,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				TTY:    term.IsTerminal(int(os.Stdin.Fd())),
				Env:    env,
			}
			_, code, err := orch.Exec(cmd.Context(), path, argv, opts)
			if err != nil {
				return actionable("run shell", path, err)
			}
			app.remember(path)
			return exitStatus(code)
		},
	}

	cmd.Flags().StringArrayVarP(&envFlags, "env", "e", nil, "set an environment variable (KEY=VALUE); repeatable")
	return cmd
}

// splitAtDash separates positional arguments from the command after "--".
func splitAtDash(args []string, dash int) (before, after []string) {
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

// parseEnvAssignments turns KEY=VALUE flags into a map. Later flags win.
func parseEnvAssignments(assignments []string) (map[string]string, error) {
	if len(assignments) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(assignments))
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q (want KEY=VALUE)", ErrInvalidEnvAssignment, a)
		}
		env[key] = value
	}
	return env, nil
}
