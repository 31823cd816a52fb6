// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/devcon/devcon/internal/bridge"
	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/devcontainer"
	"github.com/devcon/devcon/pkg/types"
)

// ErrCheckFailed is returned by check when a required component is missing.
var ErrCheckFailed = errors.New("system requirements not met")

const checkTimeout = 10 * time.Second

// checkReport prints one line per checked component and remembers the exit
// code of the first failure.
type checkReport struct {
	out    io.Writer
	failed types.ExitCode
}

func (r *checkReport) ok(item, detail string) {
	fmt.Fprintf(r.out, "%s %s: %s\n", checkMark(), item, detail)
}

func (r *checkReport) warn(item, detail string) {
	fmt.Fprintf(r.out, "%s %s: %s\n", warnMark(), item, detail)
}

func (r *checkReport) fail(item string, err error, code types.ExitCode) {
	fmt.Fprintf(r.out, "%s %s: %v\n", crossMark(), item, err)
	if r.failed == ExitOK {
		r.failed = code
	}
}

func newCheckCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Check the configuration, container runtime and browser bridge",
		Long: `Check the configuration, container runtime and browser bridge.

With a path, the project's devcontainer.json is validated too. A browser
bridge that is not running is reported but does not fail the check.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()
			return runCheck(ctx, app, cmd.OutOrStdout(), args)
		},
	}
}

func runCheck(ctx context.Context, app *App, out io.Writer, args []string) error {
	fmt.Fprintln(out, TitleStyle.Render("Checking system requirements"))
	r := &checkReport{out: out}

	cfg, err := app.loadConfig(ctx)
	switch {
	case err != nil:
		r.fail("configuration", errors.Unwrap(err), ExitConfig)
	case app.cfgPath != "":
		r.ok("configuration", CmdStyle.Render(app.cfgPath))
	default:
		r.ok("configuration", SubtitleStyle.Render("(defaults, no config file)"))
	}

	if cfg != nil {
		settings, err := sessionSettings(cfg, app.runtime)
		if err != nil {
			r.fail("container runtime", err, ExitConfig)
		} else if backend, err := container.Select(ctx, settings.Runtime, settings.AppleOptions); err != nil {
			r.fail("container runtime", err, ExitRuntimeUnavailable)
		} else {
			r.ok("container runtime", CmdStyle.Render(string(backend.Name())))
		}
	}

	socket := app.socketPath(cfg, "")
	if bridge.NewClient(socket).Reachable(ctx) {
		r.ok("browser bridge", "listening on "+CmdStyle.Render(socket)+bridgeDetail(socket))
	} else {
		r.warn("browser bridge", "not running, start it with "+CmdStyle.Render("devcon socket --daemon"))
	}

	if len(args) > 0 {
		path, err := app.projectPath(args, false)
		if err == nil {
			_, err = devcontainer.Load(path)
		}
		if err != nil {
			r.fail("devcontainer.json", err, ExitConfig)
		} else {
			r.ok("devcontainer.json", CmdStyle.Render(path))
		}
	}

	if r.failed != ExitOK {
		return &ExitError{Code: r.failed, Err: ErrCheckFailed}
	}
	fmt.Fprintln(out, SuccessStyle.Render("All requirements met"))
	return nil
}

// bridgeDetail describes the daemon from the status file it keeps next to
// its socket.
func bridgeDetail(socket string) string {
	st, err := bridge.ReadStatus(socket)
	if err != nil {
		return ""
	}
	mode := "foreground"
	if st.Detached {
		mode = "detached"
	}
	return fmt.Sprintf(" (%s, pid %d, mode %04o)", mode, st.PID, st.Mode.Perm())
}
