// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devcon/devcon/internal/session"
)

func newStopCommand(app *App) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "stop [path]",
		Short: "Stop a project's dev container",
		Long: `Stop a project's dev container.

Stopping a project whose container is already stopped, or that has none,
succeeds. With --rm the container is removed as well; the next open creates
a fresh one and runs every lifecycle command again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.projectPath(args, false)
			if err != nil {
				return err
			}
			orch, err := app.orchestrator(cmd.Context())
			if err != nil {
				return err
			}

			s, err := orch.Stop(cmd.Context(), path, session.StopOptions{Remove: remove})
			if err != nil {
				return actionable("stop container", path, err)
			}

			out := cmd.OutOrStdout()
			switch {
			case s.Handle == "":
				fmt.Fprintf(out, "%s no container for %s\n", SubtitleStyle.Render("-"), CmdStyle.Render(path))
			case remove:
				fmt.Fprintf(out, "%s removed container %s\n", checkMark(), CmdStyle.Render(shortHandle(string(s.Handle))))
			default:
				fmt.Fprintf(out, "%s stopped container %s\n", checkMark(), CmdStyle.Render(shortHandle(string(s.Handle))))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "rm", false, "remove the container after stopping it")
	return cmd
}
