// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devcon/devcon/internal/config"
	"github.com/devcon/devcon/internal/devcontainer"
)

func newRecentCommand(app *App) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened projects",
		Long: `List recently opened projects, most recent first.

The first entry is what 'devcon open' uses when no path is given and the
current directory has no devcontainer configuration. With --prune, projects
that no longer exist or lost their devcontainer configuration are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recent, err := config.LoadRecent()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if prune {
				var stale []string
				for _, p := range recent.Paths {
					if _, err := devcontainer.Find(p); err != nil {
						stale = append(stale, p)
					}
				}
				for _, p := range stale {
					recent.Remove(p)
					fmt.Fprintf(out, "%s removed %s\n", warnMark(), SubtitleStyle.Render(p))
				}
				if len(stale) > 0 {
					if err := recent.Save(); err != nil {
						return err
					}
				}
			}

			if len(recent.Paths) == 0 {
				fmt.Fprintln(out, SubtitleStyle.Render("(no recent projects)"))
				return nil
			}
			for i, p := range recent.Paths {
				marker := " "
				if _, err := os.Stat(p); err != nil {
					marker = crossMark()
				}
				fmt.Fprintf(out, "%s %2d  %s\n", marker, i+1, p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "drop projects without a devcontainer configuration")

	return cmd
}
