// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOpenCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open [path]",
		Short: "Build and start a project's dev container",
		Long: `Build and start a project's dev container.

Features are resolved and installed into an image layered on the project's
base image, the container is started (or reused) and the lifecycle commands
that have not run yet are executed. Ports listed in forwardPorts are
published on the host loopback interface when the container is created.

Without a path, the current directory is used if it has a devcontainer
configuration, otherwise the most recently opened project.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.projectPath(args, true)
			if err != nil {
				return err
			}
			orch, err := app.orchestrator(cmd.Context())
			if err != nil {
				return err
			}

			s, err := orch.Open(cmd.Context(), path)
			if err != nil {
				return actionable("open project", path, err)
			}
			app.remember(path)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s is ready in container %s (%s)\n",
				checkMark(), CmdStyle.Render(path), CmdStyle.Render(shortHandle(string(s.Handle))), s.Backend)
			for _, p := range s.Ports {
				fmt.Fprintf(out, "  forwarding %s to container port %d\n",
					CmdStyle.Render(fmt.Sprintf("localhost:%d", p.Host)), p.Container)
			}
			if !s.Bridged {
				fmt.Fprintf(out, "%s browser forwarding is off; start it with %s\n",
					warnMark(), CmdStyle.Render("devcon socket --daemon"))
			}
			return nil
		},
	}
}

// shortHandle trims docker's 64-character ids the way `docker ps` does.
func shortHandle(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
