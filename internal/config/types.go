// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/feature"
)

const (
	// EnvContextAll applies a variable at container creation and to exec shells.
	EnvContextAll EnvContext = "all"
	// EnvContextUp applies a variable at container creation only.
	EnvContextUp EnvContext = "up"
	// EnvContextExec applies a variable to exec shells only.
	EnvContextExec EnvContext = "exec"
)

var (
	// ErrInvalidEnvContext is returned when an EnvContext value is not recognized.
	ErrInvalidEnvContext = errors.New("invalid env context")
	// ErrInvalidEnvName is returned for variable names that are not shell identifiers.
	ErrInvalidEnvName = errors.New("invalid env variable name")
	// ErrInvalidBuildResources is returned for negative or malformed Apple build resources.
	ErrInvalidBuildResources = errors.New("invalid build resources")
	// ErrDuplicateEntry is returned when a feature or variable is listed twice.
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	memoryPattern  = regexp.MustCompile(`^[0-9]+[KMGkmg]?$`)
)

type (
	// EnvContext selects where an EnvEntry applies.
	EnvContext string

	// InvalidEnvContextError is returned when an EnvContext value is not recognized.
	InvalidEnvContextError struct {
		Value EnvContext
	}

	// InvalidConfigError collects every field error found in a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the user configuration.
	Config struct {
		// Runtime selects the container backend (auto, docker, apple).
		Runtime container.BackendType `json:"runtime" mapstructure:"runtime"`
		// DefaultShell is run by `devcon shell` when no command is given.
		// Empty means the first of zsh, bash or sh found in the container.
		DefaultShell string `json:"default_shell" mapstructure:"default_shell"`
		// SocketPath overrides the browser bridge socket location.
		SocketPath string         `json:"socket_path" mapstructure:"socket_path"`
		Dotfiles   DotfilesConfig `json:"dotfiles" mapstructure:"dotfiles"`
		// Features are added to every project. Option names keep their case.
		Features []FeatureEntry `json:"features" mapstructure:"-"`
		Env      []EnvEntry     `json:"env" mapstructure:"env"`
		Apple    AppleConfig    `json:"apple" mapstructure:"apple"`
		UI       UIConfig       `json:"ui" mapstructure:"ui"`
	}

	// DotfilesConfig configures the dotfiles repository bootstrapped into
	// new containers.
	DotfilesConfig struct {
		Repository string `json:"repository" mapstructure:"repository"`
		// InstallCommand runs from the repository root. Empty means the first
		// of install.sh, setup.sh or bootstrap.sh (also under script/).
		InstallCommand string `json:"install_command" mapstructure:"install_command"`
	}

	// FeatureEntry is a feature the user wants in every container.
	FeatureEntry struct {
		ID      string         `json:"id" mapstructure:"id"`
		Options map[string]any `json:"options,omitempty" mapstructure:"options"`
	}

	// EnvEntry is an environment variable. An empty Value is read from the
	// host environment when the variable is applied.
	EnvEntry struct {
		Name    string     `json:"name" mapstructure:"name"`
		Value   string     `json:"value,omitempty" mapstructure:"value"`
		Context EnvContext `json:"context,omitempty" mapstructure:"context"`
	}

	// AppleConfig sets build resources for Apple's container runtime.
	AppleConfig struct {
		// BuildMemory is passed as --memory (e.g. "4G").
		BuildMemory string `json:"build_memory" mapstructure:"build_memory"`
		// BuildCPU is passed as --cpus. Zero keeps the runtime default.
		BuildCPU int `json:"build_cpu" mapstructure:"build_cpu"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface for InvalidEnvContextError.
func (e *InvalidEnvContextError) Error() string {
	return fmt.Sprintf("invalid env context %q (valid: all, up, exec)", e.Value)
}

// Unwrap returns ErrInvalidEnvContext for errors.Is() compatibility.
func (e *InvalidEnvContextError) Unwrap() error { return ErrInvalidEnvContext }

// IsValid returns whether the EnvContext is a known value. The zero value
// means all.
func (c EnvContext) IsValid() (bool, []error) {
	switch c {
	case EnvContextAll, EnvContextUp, EnvContextExec, "":
		return true, nil
	default:
		return false, []error{&InvalidEnvContextError{Value: c}}
	}
}

// String returns the context, reporting the zero value as all.
func (c EnvContext) String() string {
	if c == "" {
		return string(EnvContextAll)
	}
	return string(c)
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Runtime: container.BackendAuto,
	}
}

// IsValid checks rules the CUE schema cannot express and re-checks the
// ones a DEVCON_* override could break.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if err := c.Runtime.Validate(); err != nil {
		errs = append(errs, err)
	}

	seenFeatures := make(map[string]bool, len(c.Features))
	for i, f := range c.Features {
		if err := feature.ID(f.ID).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("features[%d]: %w", i, err))
		}
		if seenFeatures[f.ID] {
			errs = append(errs, fmt.Errorf("features[%d]: %w: %s", i, ErrDuplicateEntry, f.ID))
		}
		seenFeatures[f.ID] = true
	}

	seenEnv := make(map[string]bool, len(c.Env))
	for i, e := range c.Env {
		if !envNamePattern.MatchString(e.Name) {
			errs = append(errs, fmt.Errorf("env[%d]: %w: %q", i, ErrInvalidEnvName, e.Name))
		}
		if valid, fieldErrs := e.Context.IsValid(); !valid {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("env[%d]: %w", i, fe))
			}
		}
		if seenEnv[e.Name] {
			errs = append(errs, fmt.Errorf("env[%d]: %w: %s", i, ErrDuplicateEntry, e.Name))
		}
		seenEnv[e.Name] = true
	}

	if c.Apple.BuildMemory != "" && !memoryPattern.MatchString(c.Apple.BuildMemory) {
		errs = append(errs, fmt.Errorf("apple.build_memory: %w: %q", ErrInvalidBuildResources, c.Apple.BuildMemory))
	}
	if c.Apple.BuildCPU < 0 {
		errs = append(errs, fmt.Errorf("apple.build_cpu: %w: %d", ErrInvalidBuildResources, c.Apple.BuildCPU))
	}

	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// SetFeature adds a feature or replaces the options of an existing one.
func (c *Config) SetFeature(id string, options map[string]any) error {
	if err := feature.ID(id).Validate(); err != nil {
		return err
	}
	entry := FeatureEntry{ID: id, Options: maps.Clone(options)}
	if i := slices.IndexFunc(c.Features, func(f FeatureEntry) bool { return f.ID == id }); i >= 0 {
		c.Features[i] = entry
		return nil
	}
	c.Features = append(c.Features, entry)
	return nil
}

// RemoveFeature deletes a feature and reports whether it was present.
func (c *Config) RemoveFeature(id string) bool {
	n := len(c.Features)
	c.Features = slices.DeleteFunc(c.Features, func(f FeatureEntry) bool { return f.ID == id })
	return len(c.Features) != n
}

// SetEnv adds a variable or replaces an existing one with the same name.
func (c *Config) SetEnv(entry EnvEntry) error {
	if !envNamePattern.MatchString(entry.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidEnvName, entry.Name)
	}
	if valid, errs := entry.Context.IsValid(); !valid {
		return errs[0]
	}
	if i := slices.IndexFunc(c.Env, func(e EnvEntry) bool { return e.Name == entry.Name }); i >= 0 {
		c.Env[i] = entry
		return nil
	}
	c.Env = append(c.Env, entry)
	return nil
}

// RemoveEnv deletes a variable and reports whether it was present.
func (c *Config) RemoveEnv(name string) bool {
	n := len(c.Env)
	c.Env = slices.DeleteFunc(c.Env, func(e EnvEntry) bool { return e.Name == name })
	return len(c.Env) != n
}
