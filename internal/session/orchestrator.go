// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/devcontainer"
	"github.com/devcon/devcon/internal/feature"
	"github.com/devcon/devcon/internal/provision"
	"github.com/devcon/devcon/pkg/types"
)

const (
	// EnvAll applies a variable at container creation and to exec shells.
	EnvAll EnvContext = "all"
	// EnvUp applies a variable at container creation only.
	EnvUp EnvContext = "up"
	// EnvExec applies a variable to exec shells only.
	EnvExec EnvContext = "exec"
)

// ErrInvalidEnvContext is returned for unknown environment contexts.
var ErrInvalidEnvContext = errors.New("invalid environment context")

type (
	// Orchestrator drives sessions through the container lifecycle.
	Orchestrator struct {
		settings       Settings
		selectBackend  BackendSelector
		fetcher        feature.Fetcher
		newProvisioner func(provision.ImageBuilder) provision.Provisioner
		bridge         Bridge
		dotfiles       DotfilesSyncer
		logger         *log.Logger
		stdout         io.Writer
		stderr         io.Writer
		now            func() time.Time
	}

	// Option configures an Orchestrator.
	Option func(*Orchestrator)

	// BackendSelector picks the container backend for a session.
	BackendSelector func(ctx context.Context) (container.Backend, error)

	// Settings is the user configuration the orchestrator applies.
	Settings struct {
		// Runtime is the backend preference (auto, docker, apple).
		Runtime      container.BackendType
		AppleOptions []container.AppleOption
		// Features are declared in the user's configuration and merged into
		// every project.
		Features []feature.FeatureSpec
		Env      []EnvVar
		// DefaultShell is the command exec runs when none is given.
		DefaultShell string
		Dotfiles     DotfilesSettings
	}

	// DotfilesSettings configures the dotfiles bootstrap.
	DotfilesSettings struct {
		Repository     string
		InstallCommand string
	}

	// EnvContext selects where an EnvVar applies.
	EnvContext string

	// EnvVar is a user-configured environment variable. An empty Value
	// copies the variable from the host environment.
	EnvVar struct {
		Name    string
		Value   string
		Context EnvContext
	}

	// Bridge is the browser bridge as seen from a session.
	Bridge interface {
		// Reachable reports whether a daemon answers on the host socket.
		Reachable(ctx context.Context) bool
		// SocketPath is the host socket path.
		SocketPath() string
		// HelperPath is the host path of the helper script.
		HelperPath() string
	}

	// ExecOptions configures Exec and Attach.
	ExecOptions struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// TTY attaches a pseudo-terminal when Stdin is a terminal.
		TTY bool
		// Env is added on top of the configured exec environment.
		Env map[string]string
	}

	// StopOptions configures Stop.
	StopOptions struct {
		// Remove deletes the container after stopping it.
		Remove bool
	}
)

// Validate returns an error if the context is not recognized. The zero
// value means all.
func (c EnvContext) Validate() error {
	switch c {
	case EnvAll, EnvUp, EnvExec, "":
		return nil
	default:
		return fmt.Errorf("%w: %q (valid: all, up, exec)", ErrInvalidEnvContext, c)
	}
}

// appliesTo reports whether a variable with context c is used for target.
func (c EnvContext) appliesTo(target EnvContext) bool {
	return c == "" || c == EnvAll || c == target
}

// WithSettings sets the user configuration.
func WithSettings(s Settings) Option {
	return func(o *Orchestrator) { o.settings = s }
}

// WithBackendSelector overrides backend probing.
func WithBackendSelector(fn BackendSelector) Option {
	return func(o *Orchestrator) { o.selectBackend = fn }
}

// WithBackend uses b for every session.
func WithBackend(b container.Backend) Option {
	return WithBackendSelector(func(context.Context) (container.Backend, error) { return b, nil })
}

// WithFetcher sets the feature fetcher.
func WithFetcher(f feature.Fetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

// WithProvisionConfig sets the image provisioning configuration.
func WithProvisionConfig(cfg *provision.Config) Option {
	return func(o *Orchestrator) {
		o.newProvisioner = func(b provision.ImageBuilder) provision.Provisioner {
			return provision.NewLayerProvisioner(b, cfg)
		}
	}
}

// WithBridge sets the browser bridge to mount into containers.
func WithBridge(b Bridge) Option {
	return func(o *Orchestrator) { o.bridge = b }
}

// WithDotfiles sets the dotfiles syncer.
func WithDotfiles(d DotfilesSyncer) Option {
	return func(o *Orchestrator) { o.dotfiles = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithOutput sets where hook output goes.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *Orchestrator) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

// WithClock sets the time source for Session.StartedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "session"}),
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.selectBackend == nil {
		o.selectBackend = func(ctx context.Context) (container.Backend, error) {
			return container.Select(ctx, o.settings.Runtime, o.settings.AppleOptions)
		}
	}
	if o.fetcher == nil {
		o.fetcher = feature.NewRegistryFetcher()
	}
	if o.newProvisioner == nil {
		WithProvisionConfig(provision.DefaultConfig())(o)
	}
	if o.dotfiles == nil {
		o.dotfiles = NewGitDotfiles(DefaultDotfilesDir())
	}
	return o
}

// Open brings the project's container to Ready: it resolves features,
// provisions the image, starts or reuses the container and runs the
// lifecycle hooks that have not run yet. On failure the returned session is
// Failed and carries the same error.
func (o *Orchestrator) Open(ctx context.Context, path string) (*Session, error) {
	s, err := o.newSession(path)
	if err != nil {
		return s, s.fail(err)
	}
	if err := o.open(ctx, s); err != nil {
		return s, s.fail(err)
	}
	return s, nil
}

// Exec opens the project and runs argv (the default shell when empty)
// after the postAttach hooks. The exit code is the command's own; err
// reports devcon failures.
func (o *Orchestrator) Exec(ctx context.Context, path string, argv []string, opts ExecOptions) (*Session, types.ExitCode, error) {
	s, err := o.Open(ctx, path)
	if err != nil {
		return s, 0, err
	}
	code, err := o.Attach(ctx, s, argv, opts)
	return s, code, err
}

// Attach runs the postAttach hooks and then argv on a Ready session.
func (o *Orchestrator) Attach(ctx context.Context, s *Session, argv []string, opts ExecOptions) (types.ExitCode, error) {
	if s.backend == nil || s.Handle == "" {
		return 0, ErrNoContainer
	}
	if err := s.transition(StageHooksRunning); err != nil {
		return 0, err
	}
	if err := o.runHooks(ctx, s, devcontainer.PostAttach); err != nil {
		return 0, s.fail(err)
	}
	if err := s.transition(StageReady); err != nil {
		return 0, s.fail(err)
	}

	if len(argv) == 0 {
		argv = o.shellCommand()
	}
	return o.interactive(ctx, s, argv, opts)
}

// Stop stops the project's container. A project without a container, or
// with a stopped one, stops successfully.
func (o *Orchestrator) Stop(ctx context.Context, path string, opts StopOptions) (*Session, error) {
	s, err := o.newSession(path)
	if err != nil {
		return s, s.fail(err)
	}
	if err := o.StopSession(ctx, s, opts); err != nil {
		return s, err
	}
	return s, nil
}

// StopSession moves a Requested or Ready session through Stopping to
// Stopped.
func (o *Orchestrator) StopSession(ctx context.Context, s *Session, opts StopOptions) error {
	if err := s.transition(StageStopping); err != nil {
		return err
	}
	if err := o.stop(ctx, s, opts); err != nil {
		return s.fail(err)
	}
	return s.transition(StageStopped)
}

func (o *Orchestrator) stop(ctx context.Context, s *Session, opts StopOptions) error {
	if s.backend == nil {
		backend, err := o.selectBackend(ctx)
		if err != nil {
			return err
		}
		s.backend = backend
		s.Backend = backend.Name()
	}
	if s.Handle == "" {
		info, err := s.backend.Find(ctx, s.ProjectID)
		if err != nil {
			return err
		}
		if info == nil {
			o.logger.Debug("no container to stop", "project", s.ProjectPath)
			return nil
		}
		s.Handle = info.Handle
	}
	o.logger.Info("stopping container", "handle", s.Handle, "remove", opts.Remove)
	return s.backend.Stop(ctx, s.Handle, container.StopOptions{Remove: opts.Remove})
}

// Resolve builds the effective configuration for a project: it fetches
// every stored and project feature, resolves the install order and merges
// the result with devcontainer.json. Conflicting dependency claims are
// logged as warnings.
func (o *Orchestrator) Resolve(ctx context.Context, base *devcontainer.Config) (*feature.EffectiveConfig, error) {
	priority := make([]feature.ID, 0, len(base.OverrideFeatureInstallOrder))
	for _, id := range base.OverrideFeatureInstallOrder {
		priority = append(priority, feature.ID(id))
	}

	stored := make([]feature.FeatureSpec, 0, len(o.settings.Features))
	for _, spec := range o.settings.Features {
		spec = spec.Clone()
		spec.Source = feature.SourceStored
		stored = append(stored, spec)
	}
	project := make([]feature.FeatureSpec, 0, len(base.Features))
	for _, ref := range base.Features {
		project = append(project, feature.FeatureSpec{
			ID:      feature.ID(ref.ID),
			Options: maps.Clone(ref.Options),
			Source:  feature.SourceProject,
		})
	}

	collected, err := feature.Collect(ctx, o.fetcher, base.Dir, stored, project)
	if err != nil {
		return nil, err
	}
	res, err := feature.Resolve(
		feature.PrioritizeOrder(collected.Stored, priority),
		feature.PrioritizeOrder(collected.Project, priority),
	)
	if err != nil {
		return nil, err
	}
	for _, c := range res.Conflicts {
		o.logger.Warn("conflicting dependency claims, using the project's", "feature", c.ID, "stored", c.Stored, "project", c.Project)
	}
	return feature.NewEffectiveConfig(base, res, collected.Metadata)
}

func (o *Orchestrator) newSession(path string) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return newSession(path, o.now()), &InvalidProjectPathError{Path: path, Reason: err.Error()}
	}
	s := newSession(abs, o.now())
	info, err := os.Stat(abs)
	switch {
	case err != nil:
		return s, &InvalidProjectPathError{Path: path, Reason: "does not exist"}
	case !info.IsDir():
		return s, &InvalidProjectPathError{Path: path, Reason: "not a directory"}
	}
	return s, nil
}

func (o *Orchestrator) open(ctx context.Context, s *Session) error {
	base, err := devcontainer.Load(s.ProjectPath)
	if err != nil {
		return err
	}
	eff, err := o.Resolve(ctx, base)
	if err != nil {
		return err
	}
	s.effective = eff

	inj := o.injections(ctx, eff)
	s.Mounts = inj.mounts
	s.Bridged = inj.bridged

	if err := s.transition(StageBuilding); err != nil {
		return err
	}
	backend, err := o.selectBackend(ctx)
	if err != nil {
		return err
	}
	s.backend = backend
	s.Backend = backend.Name()

	result, err := o.newProvisioner(backend).Provision(ctx, eff)
	if err != nil {
		return err
	}
	s.Image = result.ImageTag

	up, err := backend.Up(ctx, container.UpOptions{
		Project: s.ProjectID,
		Image:   result.ImageTag,
		Labels:  inj.labels(s.ProjectPath),
		Mounts:  s.Mounts,
		Ports:   eff.Base.ForwardPorts,
		Env:     o.upEnv(eff),
		WorkDir: eff.Base.ContainerWorkspaceFolder(),
		User:    eff.Base.ContainerUser,
	})
	if err != nil {
		return err
	}
	s.Handle = up.Handle
	s.created = up.Created
	s.started = up.Started
	s.Ports = eff.Base.ForwardPorts
	if !up.Created {
		o.reconcile(s, &inj, eff.Base.ForwardPorts, up)
	}
	o.logger.Debug("container up", "handle", up.Handle, "created", up.Created, "started", up.Started)

	if err := s.transition(StageCreated); err != nil {
		return err
	}
	if err := s.transition(StageHooksRunning); err != nil {
		return err
	}
	for _, stage := range devcontainer.FreshContainerStages {
		if stage == devcontainer.PostStart && !up.Started {
			continue
		}
		if err := o.runHooks(ctx, s, stage); err != nil {
			return err
		}
		if stage == devcontainer.PostCreate && inj.dotfilesDir != "" {
			o.installDotfiles(ctx, s, inj.dotfilesDir)
		}
	}
	return s.transition(StageReady)
}

// upEnv is the environment the container is created with.
func (o *Orchestrator) upEnv(eff *feature.EffectiveConfig) map[string]string {
	env := maps.Clone(eff.ContainerEnv)
	if env == nil {
		env = map[string]string{}
	}
	o.applySettingsEnv(env, EnvUp)
	return env
}

// execEnv is the environment of user commands run through exec.
func (o *Orchestrator) execEnv(s *Session, extra map[string]string) map[string]string {
	env := maps.Clone(s.effective.RemoteEnv)
	if env == nil {
		env = map[string]string{}
	}
	o.applySettingsEnv(env, EnvExec)
	if s.Bridged {
		env[BrowserEnv] = ContainerHelperPath
	}
	maps.Copy(env, extra)
	return env
}

func (o *Orchestrator) applySettingsEnv(env map[string]string, target EnvContext) {
	for _, v := range o.settings.Env {
		if !v.Context.appliesTo(target) {
			continue
		}
		value := v.Value
		if value == "" {
			value = os.Getenv(v.Name)
		}
		env[v.Name] = value
	}
}

// shellCommand returns the argv for an interactive shell.
func (o *Orchestrator) shellCommand() []string {
	if o.settings.DefaultShell != "" {
		return []string{o.settings.DefaultShell}
	}
	return []string{"/bin/sh", "-c", "if command -v zsh >/dev/null 2>&1; then exec zsh -l; " +
		"elif command -v bash >/dev/null 2>&1; then exec bash -l; else exec sh -l; fi"}
}
