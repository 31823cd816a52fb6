// SPDX-License-Identifier: MPL-2.0

package devcontainer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/pkg/cueutil"
)

const (
	// DefaultRemoteUser is used when devcontainer.json names no remoteUser.
	DefaultRemoteUser = "vscode"
	// WorkspacesRoot is the parent of the default container workspace folder.
	WorkspacesRoot = "/workspaces"
)

var (
	// ErrConfigNotFound is returned when a project has no devcontainer.json.
	ErrConfigNotFound = errors.New("devcontainer.json not found")

	// ErrInvalidConfig is the sentinel wrapped by ParseError.
	ErrInvalidConfig = errors.New("invalid devcontainer configuration")
)

type (
	// Config is the part of devcontainer.json devcon acts on.
	Config struct {
		Name                        string                         `json:"name"`
		Image                       string                         `json:"image"`
		Build                       *BuildConfig                   `json:"build"`
		LegacyDockerfile            string                         `json:"dockerFile"`
		LegacyContext               string                         `json:"context"`
		Features                    []FeatureRef                   `json:"-"`
		OverrideFeatureInstallOrder []string                       `json:"overrideFeatureInstallOrder"`
		WorkspaceFolder             string                         `json:"workspaceFolder"`
		Mounts                      []container.Mount              `json:"mounts"`
		ContainerEnv                map[string]string              `json:"containerEnv"`
		RemoteEnv                   map[string]string              `json:"remoteEnv"`
		RemoteUser                  string                         `json:"remoteUser"`
		ContainerUser               string                         `json:"containerUser"`
		ForwardPorts                []container.PortForward        `json:"-"`
		Hooks                       map[HookStage]LifecycleCommand `json:"-"`

		// Dir is the directory holding devcontainer.json; relative paths
		// (build context, local features) resolve against it.
		Dir string `json:"-"`
		// ProjectDir is the project root mounted into the container.
		ProjectDir string `json:"-"`
	}

	// BuildConfig describes a Dockerfile-based base image.
	BuildConfig struct {
		Dockerfile string            `json:"dockerfile"`
		Context    string            `json:"context"`
		Target     string            `json:"target"`
		Args       map[string]string `json:"args"`
	}

	// FeatureRef is one entry of the "features" object, in file order.
	FeatureRef struct {
		ID      string
		Options map[string]any
	}

	// ParseError is returned when devcontainer.json cannot be read, parsed
	// or validated.
	ParseError struct {
		Path string
		Err  error
	}

	// NotFoundError is returned when no devcontainer.json exists in a project.
	NotFoundError struct {
		ProjectDir string
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrInvalidConfig and the underlying cause.
func (e *ParseError) Unwrap() []error { return []error{ErrInvalidConfig, e.Err} }

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no .devcontainer/devcontainer.json or .devcontainer.json in %s", e.ProjectDir)
}

// Unwrap returns ErrConfigNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrConfigNotFound }

// Find returns the devcontainer.json path for a project directory.
func Find(projectDir string) (string, error) {
	candidates := []string{
		filepath.Join(projectDir, ".devcontainer", "devcontainer.json"),
		filepath.Join(projectDir, ".devcontainer.json"),
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", &NotFoundError{ProjectDir: projectDir}
}

// Load finds, parses and validates a project's devcontainer.json.
func Load(projectDir string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, err
	}
	path, err := Find(abs)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{ProjectDir: abs}
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	cfg.ProjectDir = abs
	cfg.expandVariables(os.LookupEnv)
	return cfg, nil
}

// Parse decodes devcontainer.json content. Comments and trailing commas are
// accepted. Variables are left unexpanded; Load expands them.
func Parse(data []byte, path string) (*Config, error) {
	canonical, err := cueutil.NormalizeJSON(data, cueutil.WithFilename(filepath.Base(path)))
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var doc any
	if err := json.Unmarshal(canonical, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	validator, err := devcontainerValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(doc, path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(canonical, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if cfg.Hooks, err = DecodeHooks(canonical); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	cfg.Features = featureRefs(canonical)
	if cfg.ForwardPorts, err = forwardPorts(canonical); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// forwardPorts decodes "forwardPorts": numbers forward the same host port and
// "host:container" strings map a different one. Entries naming another host
// ("db:5432") are rejected because only local ports can be published.
func forwardPorts(canonical []byte) ([]container.PortForward, error) {
	var ports []container.PortForward
	for i, raw := range gjson.GetBytes(canonical, "forwardPorts").Array() {
		var (
			p   container.PortForward
			err error
		)
		if raw.Type == gjson.Number {
			p, err = container.NewPortForward(int(raw.Int()))
		} else {
			p, err = container.ParsePortForward(raw.String())
		}
		if err != nil {
			return nil, fmt.Errorf("forwardPorts[%d]: %w", i, err)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// Validate checks cross-field rules the schema cannot express.
func (c *Config) Validate() error {
	if c.Image == "" && c.Dockerfile() == "" {
		return errors.New(`one of "image" or "build.dockerfile" is required (docker compose is not supported)`)
	}
	if c.Image != "" && c.Dockerfile() != "" {
		return errors.New(`"image" and "build.dockerfile" are mutually exclusive`)
	}
	for _, stage := range AllStages {
		if err := c.Hooks[stage].Validate(); err != nil {
			return fmt.Errorf("%s: %w", stage, err)
		}
	}
	return nil
}

// Dockerfile returns the configured Dockerfile, honoring the legacy key.
func (c *Config) Dockerfile() string {
	if c.Build != nil && c.Build.Dockerfile != "" {
		return c.Build.Dockerfile
	}
	return c.LegacyDockerfile
}

// DockerfilePath returns the absolute Dockerfile path, empty for image-based
// configs. Relative paths resolve against the devcontainer.json directory.
func (c *Config) DockerfilePath() string {
	df := c.Dockerfile()
	if df == "" || filepath.IsAbs(df) {
		return df
	}
	return filepath.Join(c.Dir, df)
}

// BuildContext returns the absolute build context directory.
func (c *Config) BuildContext() string {
	ctx := c.LegacyContext
	if c.Build != nil && c.Build.Context != "" {
		ctx = c.Build.Context
	}
	if ctx == "" {
		ctx = "."
	}
	if filepath.IsAbs(ctx) {
		return ctx
	}
	return filepath.Join(c.Dir, ctx)
}

// Hook returns the command configured for stage (zero value when unset).
func (c *Config) Hook(stage HookStage) LifecycleCommand {
	return c.Hooks[stage]
}

// WorkspaceName is the basename of the project directory.
func (c *Config) WorkspaceName() string {
	return filepath.Base(c.ProjectDir)
}

// ContainerWorkspaceFolder is where the project is mounted in the container.
func (c *Config) ContainerWorkspaceFolder() string {
	if c.WorkspaceFolder != "" {
		return c.WorkspaceFolder
	}
	return WorkspacesRoot + "/" + c.WorkspaceName()
}

// EffectiveRemoteUser returns remoteUser, defaulting to DefaultRemoteUser.
func (c *Config) EffectiveRemoteUser() string {
	if c.RemoteUser != "" {
		return c.RemoteUser
	}
	return DefaultRemoteUser
}

// DecodeHooks extracts the lifecycle hooks from a canonical JSON document.
// devcontainer-feature.json uses the same keys.
func DecodeHooks(canonical []byte) (map[HookStage]LifecycleCommand, error) {
	hooks := make(map[HookStage]LifecycleCommand)
	for _, stage := range AllStages {
		raw := gjson.GetBytes(canonical, string(stage))
		if !raw.Exists() {
			continue
		}
		var cmd LifecycleCommand
		if err := json.Unmarshal([]byte(raw.Raw), &cmd); err != nil {
			return nil, fmt.Errorf("%s: %w", stage, err)
		}
		if !cmd.IsZero() {
			hooks[stage] = cmd
		}
	}
	return hooks, nil
}

// featureRefs walks the "features" object in document order. A string value
// is shorthand for {"version": value}; `true` means default options.
func featureRefs(canonical []byte) []FeatureRef {
	var refs []FeatureRef
	gjson.GetBytes(canonical, "features").ForEach(func(key, value gjson.Result) bool {
		ref := FeatureRef{ID: key.String(), Options: map[string]any{}}
		switch value.Type {
		case gjson.String:
			ref.Options["version"] = value.String()
		case gjson.JSON:
			if m, ok := value.Value().(map[string]any); ok {
				ref.Options = m
			}
		}
		refs = append(refs, ref)
		return true
	})
	return refs
}
