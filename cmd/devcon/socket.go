// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/devcon/devcon/internal/bridge"
)

const (
	daemonStartTimeout = 5 * time.Second
	daemonPollInterval = 50 * time.Millisecond
	sendTimeout        = 2 * time.Second

	// detachedFlag marks the background process started by --daemon.
	detachedFlag = "detached"
)

type socketFlags struct {
	daemon   bool
	detached bool
	showPath bool
	send     string
	path     string
	logFile  string
}

func newSocketCommand(app *App) *cobra.Command {
	var flags socketFlags

	cmd := &cobra.Command{
		Use:   "socket",
		Short: "Run the browser bridge that opens container URLs on the host",
		Long: `Run the browser bridge that opens container URLs on the host.

The bridge listens on a Unix socket that is mounted into every container
together with a small helper script. Programs in the container that open a
URL through $BROWSER reach the host's default browser.

By default the bridge runs in the foreground until it receives SIGINT or
SIGTERM. With --daemon it is started in the background and the command
returns once the socket accepts connections. --send delivers a URL to the
running bridge the same way the container helper does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := app.loadConfig(ctx)
			if err != nil {
				return err
			}
			path := app.socketPath(cfg, flags.path)
			out := cmd.OutOrStdout()

			switch {
			case flags.showPath:
				fmt.Fprintln(out, path)
				return nil
			case flags.send != "":
				return app.sendURL(ctx, cmd, path, flags.send)
			case flags.daemon:
				return app.startBridgeDaemon(ctx, cmd, path, flags.logFile)
			default:
				return app.runBridge(ctx, path, flags.detached)
			}
		},
	}

	cmd.Flags().BoolVarP(&flags.daemon, "daemon", "d", false, "run the bridge in the background")
	cmd.Flags().BoolVar(&flags.showPath, "show-path", false, "print the socket path and exit")
	cmd.Flags().StringVar(&flags.path, "path", "", "socket path (overrides socket_path in the config)")
	cmd.Flags().StringVar(&flags.send, "send", "", "send a URL to the running bridge and exit")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "with --daemon, append the bridge log to this file")
	cmd.Flags().BoolVar(&flags.detached, detachedFlag, false, "set by --daemon on the background process")
	_ = cmd.Flags().MarkHidden(detachedFlag)
	cmd.MarkFlagsMutuallyExclusive("daemon", "show-path", "send")

	return cmd
}

// runBridge serves the socket in the foreground until ctx is cancelled or
// a shutdown signal arrives.
func (a *App) runBridge(ctx context.Context, path string, detached bool) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	if err := bridge.EnsureSocketDir(path); err != nil {
		return actionable("start browser bridge", path, err)
	}
	d := bridge.NewDaemon(path,
		bridge.WithLogger(a.logger("bridge")),
		bridge.WithDetached(detached),
	)
	if err := d.Run(ctx); err != nil {
		return actionable("start browser bridge", path, err)
	}
	return nil
}

// startBridgeDaemon re-executes devcon as a detached foreground bridge and
// waits for the socket to answer.
func (a *App) startBridgeDaemon(ctx context.Context, cmd *cobra.Command, path, logFile string) error {
	out := cmd.OutOrStdout()
	client := bridge.NewClient(path)
	if client.Reachable(ctx) {
		return actionable("start browser bridge", path, &bridge.AddressInUseError{Path: path})
	}

	args := []string{"socket", "--path", path, "--" + detachedFlag}
	if a.configPath != "" {
		args = append(args, "--config", a.configPath)
	}
	if a.verbose {
		args = append(args, "--verbose")
	}
	pid, err := bridge.Detach(args, logFile)
	if err != nil {
		return actionable("start browser bridge", path, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, daemonStartTimeout)
	defer cancel()
	if err := client.WaitReachable(waitCtx, daemonPollInterval); err != nil {
		hint := "re-run with --log-file to capture the bridge output"
		if logFile != "" {
			hint = "see " + logFile
		}
		return &ExitError{Code: ExitBridge, Err: fmt.Errorf("%w (%s)", err, hint)}
	}

	fmt.Fprintf(out, "%s browser bridge started on %s (pid %d)\n", checkMark(), CmdStyle.Render(path), pid)
	return nil
}

// sendURL delivers url to the bridge listening on path.
func (a *App) sendURL(ctx context.Context, cmd *cobra.Command, path, url string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := bridge.NewClient(path).Send(ctx, url); err != nil {
		return &ExitError{Code: ExitBridge, Err: fmt.Errorf("browser bridge on %s: %w", path, err)}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s sent %s\n", checkMark(), url)
	return nil
}
