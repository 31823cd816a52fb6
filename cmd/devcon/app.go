// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/devcon/devcon/internal/bridge"
	"github.com/devcon/devcon/internal/config"
	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/devcontainer"
	"github.com/devcon/devcon/internal/feature"
	"github.com/devcon/devcon/internal/issue"
	"github.com/devcon/devcon/internal/session"
)

// ErrNoProject is returned when no path was given and there is nothing to
// fall back to.
var ErrNoProject = errors.New("no project path given")

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reaches configuration and the orchestrator
	// through it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer

		// Global flag values.
		configPath string
		verbose    bool
		runtime    string

		cfg     *config.Config
		cfgPath string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// loadConfig loads the configuration once per invocation. A failure is an
// ExitConfig error.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return nil, &ExitError{Code: ExitConfig, Err: withIssue(err, issue.ConfigLoadFailedId)}
	}
	if cfg.UI.Verbose {
		a.verbose = true
	}
	a.cfg, a.cfgPath = cfg, path
	return cfg, nil
}

// saveConfig writes cfg back to the file it was loaded from, or to the
// default location when only defaults were in effect.
func (a *App) saveConfig(cfg *config.Config) error {
	path := a.cfgPath
	if path == "" {
		var err error
		if path, err = config.ConfigFilePath(); err != nil {
			return err
		}
	}
	if err := config.SaveTo(path, cfg); err != nil {
		return &ExitError{Code: ExitConfig, Err: err}
	}
	a.cfg, a.cfgPath = cfg, path
	return nil
}

// logger returns a component logger writing to the App's stderr.
func (a *App) logger(prefix string) *log.Logger {
	level := log.InfoLevel
	if a.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{Prefix: prefix, Level: level})
}

// socketPath resolves the bridge socket: --path, then socket_path, then the
// per-user default.
func (a *App) socketPath(cfg *config.Config, flagValue string) string {
	switch {
	case flagValue != "":
		return flagValue
	case cfg != nil && cfg.SocketPath != "":
		return cfg.SocketPath
	default:
		return bridge.DefaultSocketPath()
	}
}

// orchestrator builds a session orchestrator from the loaded configuration.
func (a *App) orchestrator(ctx context.Context) (*session.Orchestrator, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := sessionSettings(cfg, a.runtime)
	if err != nil {
		return nil, &ExitError{Code: ExitConfig, Err: err}
	}
	return session.New(
		session.WithSettings(settings),
		session.WithBridge(bridge.NewClient(a.socketPath(cfg, ""))),
		session.WithFetcher(feature.NewRegistryFetcher(
			feature.WithLogger(a.logger("feature")),
			feature.WithUserAgent("devcon/"+Version),
		)),
		session.WithLogger(a.logger("session")),
		session.WithOutput(a.stdout, a.stderr),
	), nil
}

// sessionSettings converts the user configuration into orchestrator
// settings. runtimeOverride is the --runtime flag.
func sessionSettings(cfg *config.Config, runtimeOverride string) (session.Settings, error) {
	rt := cfg.Runtime
	if runtimeOverride != "" {
		rt = container.BackendType(runtimeOverride)
	}
	if err := rt.Validate(); err != nil {
		return session.Settings{}, err
	}

	s := session.Settings{
		Runtime:      rt,
		DefaultShell: cfg.DefaultShell,
		Dotfiles: session.DotfilesSettings{
			Repository:     cfg.Dotfiles.Repository,
			InstallCommand: cfg.Dotfiles.InstallCommand,
		},
	}
	if cfg.Apple.BuildMemory != "" || cfg.Apple.BuildCPU > 0 {
		s.AppleOptions = append(s.AppleOptions, container.WithBuildResources(cfg.Apple.BuildMemory, cfg.Apple.BuildCPU))
	}
	for _, f := range cfg.Features {
		s.Features = append(s.Features, feature.FeatureSpec{
			ID:      feature.ID(f.ID),
			Options: f.Options,
			Source:  feature.SourceStored,
		})
	}
	for _, e := range cfg.Env {
		s.Env = append(s.Env, session.EnvVar{
			Name:    e.Name,
			Value:   e.Value,
			Context: session.EnvContext(e.Context),
		})
	}
	return s, nil
}

// projectPath resolves the project directory from the optional path
// argument. Without one, the current directory is used when it holds a
// devcontainer configuration; otherwise fallbackRecent selects the most
// recently opened project.
func (a *App) projectPath(args []string, fallbackRecent bool) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return filepath.Abs(args[0])
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	if !fallbackRecent {
		return wd, nil
	}
	if _, err := devcontainer.Find(wd); err == nil {
		return wd, nil
	}
	recent, err := config.LoadRecent()
	if err != nil {
		return "", err
	}
	if len(recent.Paths) == 0 {
		return "", fmt.Errorf("%w and %s has no devcontainer configuration", ErrNoProject, wd)
	}
	return recent.Paths[0], nil
}

// remember records a project in the recent list. Failures only warn.
func (a *App) remember(path string) {
	if err := config.Touch(path); err != nil {
		a.logger("config").Warn("could not update recent projects", "error", err)
	}
}

func withIssue(err error, id issue.Id) error {
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue == 0 {
		ae.Issue = id
	}
	return err
}
