// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/devcon/devcon/internal/issue"
	"github.com/devcon/devcon/pkg/types"
)

// shutdownSignals cancel the command context.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand builds the command tree around app.
func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "devcon",
		Short: "Open dev containers without an IDE",
		Long: TitleStyle.Render("devcon") + SubtitleStyle.Render(" - dev containers from the terminal") + `

devcon reads a project's devcontainer.json, installs its features, starts
the container with Docker or Apple's container runtime and runs the
lifecycle commands. URLs opened inside the container are forwarded to the
host browser.

` + SubtitleStyle.Render("Examples:") + `
  devcon open .                 Build and start the current project
  devcon shell                  Open a shell in the container
  devcon shell . -- make test   Run a command in the container
  devcon stop --rm .            Stop and remove the container
  devcon socket --daemon        Start the browser bridge in the background`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is <config dir>/devcon/config.cue)")
	root.PersistentFlags().StringVar(&app.runtime, "runtime", "", "container runtime: auto, docker or apple (overrides the config file)")

	root.AddCommand(
		newOpenCommand(app),
		newShellCommand(app),
		newStopCommand(app),
		newCheckCommand(app),
		newSocketCommand(app),
		newConfigCommand(app),
		newRecentCommand(app),
	)

	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

// Execute runs the CLI and exits with the code matching the error kind.
// It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	root := newRootCommand(app)

	err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(shutdownSignals...),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			app.renderError(w, styles, err)
		}),
	)
	if err != nil {
		os.Exit(int(exitCodeFor(err)))
	}
}

// renderError prints err. Actionable errors get their suggestions, and in
// verbose mode the error chain and the linked troubleshooting page.
func (a *App) renderError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fang.DefaultErrorHandler(w, styles, err)
		if a.verbose {
			a.renderIssue(w, err)
		}
		return
	}

	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+ae.Format(a.verbose))
	if a.verbose {
		a.renderIssue(w, err)
	}
}

func (a *App) renderIssue(w io.Writer, err error) {
	var page *issue.Issue
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		page = ae.Page()
	}
	if page == nil {
		_, id := classify(err)
		page = issue.Get(id)
	}
	if page == nil {
		return
	}
	rendered, renderErr := page.Render("dark")
	if renderErr != nil {
		return
	}
	fmt.Fprint(w, rendered)
}

// exitStatus wraps a command's own exit code for pass-through.
func exitStatus(code types.ExitCode) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}
