// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"github.com/spf13/viper"

	"github.com/devcon/devcon/internal/issue"
	"github.com/devcon/devcon/pkg/cueutil"
	"github.com/devcon/devcon/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "devcon"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variables that override config keys
	// (DEVCON_RUNTIME, DEVCON_DOTFILES_REPOSITORY, ...).
	EnvPrefix = "DEVCON"

	featuresKey = "features"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the devcon configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// ConfigFilePath returns the default config file location.
func ConfigFilePath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()
	var features []FeatureEntry
	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'devcon config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		loaded, err := loadCUEIntoViper(v, opts.ConfigFilePath)
		if err != nil {
			return nil, "", parseError(opts.ConfigFilePath, err)
		}
		features = loaded
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			loaded, err := loadCUEIntoViper(v, cuePath)
			if err != nil {
				return nil, "", parseError(cuePath, err)
			}
			features = loaded
			resolvedPath = cuePath
		}
		// No config file means defaults.
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Features = features

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check DEVCON_* environment variables for typos").
			WithSuggestion("Each feature id and env name may appear only once").
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return cfg, resolvedPath, nil
}

// newViper returns a Viper instance with defaults and DEVCON_* overrides bound.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("runtime", defaults.Runtime)
	v.SetDefault("default_shell", defaults.DefaultShell)
	v.SetDefault("socket_path", defaults.SocketPath)
	v.SetDefault("dotfiles.repository", defaults.Dotfiles.Repository)
	v.SetDefault("dotfiles.install_command", defaults.Dotfiles.InstallCommand)
	v.SetDefault("apple.build_memory", defaults.Apple.BuildMemory)
	v.SetDefault("apple.build_cpu", defaults.Apple.BuildCPU)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func parseError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'devcon config --help' for configuration options").
		Wrap(err).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. The features list is returned separately
// because Viper lowercases map keys and feature option names are
// case-sensitive.
func loadCUEIntoViper(v *viper.Viper, path string) ([]FeatureEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	parsed, err := cueutil.ParseAndDecode[map[string]any](
		[]byte(configSchema), data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return nil, err
	}

	var features []FeatureEntry
	if fv := parsed.Unified.LookupPath(cue.ParsePath(featuresKey)); fv.Exists() {
		if err := fv.Decode(&features); err != nil {
			return nil, cueutil.FormatError(err, path)
		}
	}

	configMap := *parsed.Value
	delete(configMap, featuresKey)

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	return features, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig creates a default config file if it doesn't exist.
// It returns the path of the file.
func CreateDefaultConfig() (string, error) {
	cfgPath, err := ConfigFilePath()
	if err != nil {
		return "", err
	}
	if fileExists(cfgPath) {
		return cfgPath, nil
	}
	return cfgPath, SaveTo(cfgPath, DefaultConfig())
}

// Save writes the configuration to the default config file.
func Save(cfg *Config) error {
	cfgPath, err := ConfigFilePath()
	if err != nil {
		return err
	}
	return SaveTo(cfgPath, cfg)
}

// SaveTo validates cfg and atomically replaces the file at cfgPath.
func SaveTo(cfgPath string, cfg *Config) error {
	if valid, errs := cfg.IsValid(); !valid {
		return errs[0]
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cueContent, err := GenerateCUE(cfg)
	if err != nil {
		return err
	}

	tmp := cfgPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(cueContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, cfgPath); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best-effort cleanup of the temp file
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE generates a CUE representation of the configuration.
// Feature options are written as JSON, which is valid CUE.
func GenerateCUE(cfg *Config) (string, error) {
	var sb strings.Builder

	sb.WriteString("// devcon configuration file\n")
	sb.WriteString("// Environment variables named DEVCON_<KEY> override these values.\n\n")

	runtimeValue := cfg.Runtime
	if runtimeValue == "" {
		runtimeValue = DefaultConfig().Runtime
	}
	fmt.Fprintf(&sb, "runtime: %q\n", runtimeValue)
	if cfg.DefaultShell != "" {
		fmt.Fprintf(&sb, "default_shell: %q\n", cfg.DefaultShell)
	}
	if cfg.SocketPath != "" {
		fmt.Fprintf(&sb, "socket_path: %q\n", cfg.SocketPath)
	}

	if cfg.Dotfiles.Repository != "" || cfg.Dotfiles.InstallCommand != "" {
		sb.WriteString("\ndotfiles: {\n")
		if cfg.Dotfiles.Repository != "" {
			fmt.Fprintf(&sb, "\trepository: %q\n", cfg.Dotfiles.Repository)
		}
		if cfg.Dotfiles.InstallCommand != "" {
			fmt.Fprintf(&sb, "\tinstall_command: %q\n", cfg.Dotfiles.InstallCommand)
		}
		sb.WriteString("}\n")
	}

	if len(cfg.Features) > 0 {
		sb.WriteString("\nfeatures: [\n")
		for _, f := range cfg.Features {
			if len(f.Options) == 0 {
				fmt.Fprintf(&sb, "\t{id: %q},\n", f.ID)
				continue
			}
			opts, err := json.Marshal(f.Options)
			if err != nil {
				return "", fmt.Errorf("feature %s: encode options: %w", f.ID, err)
			}
			fmt.Fprintf(&sb, "\t{id: %q, options: %s},\n", f.ID, opts)
		}
		sb.WriteString("]\n")
	}

	if len(cfg.Env) > 0 {
		sb.WriteString("\nenv: [\n")
		for _, e := range cfg.Env {
			fmt.Fprintf(&sb, "\t{name: %q", e.Name)
			if e.Value != "" {
				fmt.Fprintf(&sb, ", value: %q", e.Value)
			}
			if e.Context != "" {
				fmt.Fprintf(&sb, ", context: %q", e.Context)
			}
			sb.WriteString("},\n")
		}
		sb.WriteString("]\n")
	}

	if cfg.Apple.BuildMemory != "" || cfg.Apple.BuildCPU != 0 {
		sb.WriteString("\napple: {\n")
		if cfg.Apple.BuildMemory != "" {
			fmt.Fprintf(&sb, "\tbuild_memory: %q\n", cfg.Apple.BuildMemory)
		}
		if cfg.Apple.BuildCPU != 0 {
			fmt.Fprintf(&sb, "\tbuild_cpu: %d\n", cfg.Apple.BuildCPU)
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String(), nil
}
