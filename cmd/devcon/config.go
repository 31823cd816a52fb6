// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devcon/devcon/internal/config"
	"github.com/devcon/devcon/internal/issue"
)

// ErrInvalidOption is returned for a --option value that is not key=value.
var ErrInvalidOption = errors.New("invalid feature option")

// newConfigCommand creates the `devcon config` command tree. Editing
// subcommands load the effective configuration, change it and write it back
// as CUE.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage devcon configuration",
		Long: `Manage devcon configuration.

Configuration is stored in:
  - Linux: ~/.config/devcon/config.cue
  - macOS: ~/Library/Application Support/devcon/config.cue
  - Windows: %APPDATA%\devcon\config.cue

Values can be overridden with DEVCON_* environment variables, for example
DEVCON_RUNTIME=docker.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return showConfig(cmd.Context(), app, cmd.OutOrStdout(), cmd.ErrOrStderr())
			},
		},
		&cobra.Command{
			Use:   "dump",
			Short: "Output the effective configuration as CUE",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := app.loadConfig(cmd.Context())
				if err != nil {
					return err
				}
				content, err := config.GenerateCUE(cfg)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), content)
				return nil
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create the default configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := config.CreateDefaultConfig()
				if err != nil {
					return fmt.Errorf("failed to create config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s configuration at %s\n", checkMark(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path := app.configPath
				if path == "" {
					var err error
					if path, err = config.ConfigFilePath(); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		newConfigDotfilesCommand(app),
		newConfigFeaturesCommand(app),
		newConfigEnvCommand(app),
	)

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, out, errOut io.Writer) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		if rendered, renderErr := issue.Get(issue.ConfigLoadFailedId).Render("dark"); renderErr == nil {
			fmt.Fprint(errOut, rendered)
		}
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	none := SubtitleStyle.Render("(none configured)")

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)
	if app.cfgPath != "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), app.cfgPath)
	} else {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("runtime"), valueStyle.Render(string(cfg.Runtime)))
	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("default_shell"), orNone(cfg.DefaultShell, valueStyle.Render))
	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("socket_path"), valueStyle.Render(app.socketPath(cfg, "")))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("dotfiles"))
	if cfg.Dotfiles.Repository == "" {
		fmt.Fprintf(out, "  %s\n", none)
	} else {
		fmt.Fprintf(out, "  repository: %s\n", valueStyle.Render(cfg.Dotfiles.Repository))
		fmt.Fprintf(out, "  install_command: %s\n", orNone(cfg.Dotfiles.InstallCommand, valueStyle.Render))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("features"))
	if len(cfg.Features) == 0 {
		fmt.Fprintf(out, "  %s\n", none)
	}
	for _, f := range cfg.Features {
		fmt.Fprintf(out, "  - %s%s\n", valueStyle.Render(f.ID), formatOptions(f.Options))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("env"))
	if len(cfg.Env) == 0 {
		fmt.Fprintf(out, "  %s\n", none)
	}
	for _, e := range cfg.Env {
		fmt.Fprintf(out, "  - %s=%s (%s)\n", e.Name, valueStyle.Render(e.Value), e.Context)
	}

	if cfg.Apple.BuildMemory != "" || cfg.Apple.BuildCPU > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s:\n", keyStyle.Render("apple"))
		fmt.Fprintf(out, "  build_memory: %s\n", orNone(cfg.Apple.BuildMemory, valueStyle.Render))
		fmt.Fprintf(out, "  build_cpu: %s\n", valueStyle.Render(fmt.Sprint(cfg.Apple.BuildCPU)))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(out, "  verbose: %s\n", valueStyle.Render(fmt.Sprint(cfg.UI.Verbose)))

	return nil
}

func orNone(v string, render func(...string) string) string {
	if v == "" {
		return SubtitleStyle.Render("(not set)")
	}
	return render(v)
}

// formatOptions renders feature options as " (k=v, ...)" in key order.
func formatOptions(opts map[string]any) string {
	if len(opts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, opts[k])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// editConfig loads the configuration, applies fn and saves the result.
func (a *App) editConfig(ctx context.Context, fn func(*config.Config) error) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return a.saveConfig(cfg)
}

func newConfigDotfilesCommand(app *App) *cobra.Command {
	dotCmd := &cobra.Command{
		Use:   "dotfiles",
		Short: "Manage the dotfiles repository installed into containers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var installCommand string
	setCmd := &cobra.Command{
		Use:   "set <repository>",
		Short: "Set the dotfiles repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.editConfig(cmd.Context(), func(cfg *config.Config) error {
				cfg.Dotfiles = config.DotfilesConfig{Repository: args[0], InstallCommand: installCommand}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s dotfiles repository set to %s\n", checkMark(), CmdStyle.Render(args[0]))
			return nil
		},
	}
	setCmd.Flags().StringVar(&installCommand, "install-command", "", "script to run after cloning (default: first of install.sh, setup.sh, ...)")

	dotCmd.AddCommand(
		setCmd,
		&cobra.Command{
			Use:   "clear",
			Short: "Stop installing dotfiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				err := app.editConfig(cmd.Context(), func(cfg *config.Config) error {
					cfg.Dotfiles = config.DotfilesConfig{}
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s dotfiles cleared\n", checkMark())
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the dotfiles settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := app.loadConfig(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if cfg.Dotfiles.Repository == "" {
					fmt.Fprintln(out, SubtitleStyle.Render("(none configured)"))
					return nil
				}
				fmt.Fprintf(out, "repository: %s\n", cfg.Dotfiles.Repository)
				if cfg.Dotfiles.InstallCommand != "" {
					fmt.Fprintf(out, "install_command: %s\n", cfg.Dotfiles.InstallCommand)
				}
				return nil
			},
		},
	)
	return dotCmd
}

func newConfigFeaturesCommand(app *App) *cobra.Command {
	featCmd := &cobra.Command{
		Use:   "features",
		Short: "Manage features added to every container",
		Long: `Manage features added to every container.

Stored features are merged with the features of each project's
devcontainer.json. A project that lists the same feature wins.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var options []string
	addCmd := &cobra.Command{
		Use:   "add <feature-id>",
		Short: "Add or replace a stored feature",
		Example: `  devcon config features add ghcr.io/devcontainers/features/node:1 --option version=20
  devcon config features add ./local-feature`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseFeatureOptions(options)
			if err != nil {
				return err
			}
			err = app.editConfig(cmd.Context(), func(cfg *config.Config) error {
				return cfg.SetFeature(args[0], opts)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s feature %s saved\n", checkMark(), CmdStyle.Render(args[0]))
			return nil
		},
	}
	addCmd.Flags().StringArrayVarP(&options, "option", "o", nil, "feature option as key=value (repeatable)")

	featCmd.AddCommand(
		addCmd,
		&cobra.Command{
			Use:   "remove <feature-id>",
			Short: "Remove a stored feature",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				removed := false
				err := app.editConfig(cmd.Context(), func(cfg *config.Config) error {
					removed = cfg.RemoveFeature(args[0])
					return nil
				})
				if err != nil {
					return err
				}
				reportRemoval(cmd.OutOrStdout(), "feature", args[0], removed)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored features",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := app.loadConfig(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(cfg.Features) == 0 {
					fmt.Fprintln(out, SubtitleStyle.Render("(none configured)"))
				}
				for _, f := range cfg.Features {
					fmt.Fprintf(out, "%s%s\n", f.ID, formatOptions(f.Options))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all stored features",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				err := app.editConfig(cmd.Context(), func(cfg *config.Config) error {
					cfg.Features = nil
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s stored features cleared\n", checkMark())
				return nil
			},
		},
	)
	return featCmd
}

func newConfigEnvCommand(app *App) *cobra.Command {
	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Manage environment variables set in every container",
		Long: `Manage environment variables set in every container.

The context selects where a variable applies: "up" for the container
itself and its lifecycle commands, "exec" for shells and commands run with
devcon shell, "all" for both.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var envContext string
	addCmd := &cobra.Command{
		Use:   "add <NAME> [VALUE]",
		Short: "Add or replace a stored variable",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := config.EnvEntry{Name: args[0], Context: config.EnvContext(envContext)}
			if len(args) > 1 {
				entry.Value = args[1]
			}
			err := app.editConfig(cmd.Context(), func(cfg *config.Config) error {
				return cfg.SetEnv(entry)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s saved (%s)\n", checkMark(), CmdStyle.Render(entry.Name), entry.Context)
			return nil
		},
	}
	addCmd.Flags().StringVar(&envContext, "context", string(config.EnvContextAll), "where the variable applies: all, up or exec")

	envCmd.AddCommand(
		addCmd,
		&cobra.Command{
			Use:   "remove <NAME>",
			Short: "Remove a stored variable",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				removed := false
				err := app.editConfig(cmd.Context(), func(cfg *config.Config) error {
					removed = cfg.RemoveEnv(args[0])
					return nil
				})
				if err != nil {
					return err
				}
				reportRemoval(cmd.OutOrStdout(), "variable", args[0], removed)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored variables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := app.loadConfig(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(cfg.Env) == 0 {
					fmt.Fprintln(out, SubtitleStyle.Render("(none configured)"))
				}
				for _, e := range cfg.Env {
					fmt.Fprintf(out, "%s=%s\t%s\n", e.Name, e.Value, e.Context)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all stored variables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				err := app.editConfig(cmd.Context(), func(cfg *config.Config) error {
					cfg.Env = nil
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s stored variables cleared\n", checkMark())
				return nil
			},
		},
	)
	return envCmd
}

func reportRemoval(out io.Writer, kind, name string, removed bool) {
	if removed {
		fmt.Fprintf(out, "%s %s %s removed\n", checkMark(), kind, CmdStyle.Render(name))
		return
	}
	fmt.Fprintf(out, "%s %s %s was not configured\n", warnMark(), kind, CmdStyle.Render(name))
}

// parseFeatureOptions turns key=value pairs into feature options. "true" and
// "false" become booleans, everything else stays a string.
func parseFeatureOptions(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	opts := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q (want key=value)", ErrInvalidOption, p)
		}
		switch v {
		case "true":
			opts[k] = true
		case "false":
			opts[k] = false
		default:
			opts[k] = v
		}
	}
	return opts, nil
}
