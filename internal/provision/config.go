// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

type (
	// Config controls how images are built.
	Config struct {
		// ForceRebuild bypasses cached images.
		ForceRebuild bool

		// BuildRoot is the parent of the temporary build contexts.
		// Default: ~/devcon-build
		BuildRoot string

		// TagSuffix is appended to image tags so parallel tests do not share
		// images. Read from DEVCON_PROVISION_TAG_SUFFIX by DefaultConfig.
		TagSuffix string

		// Stdout and Stderr receive build output.
		Stdout io.Writer
		Stderr io.Writer

		// Logger reports cache hits and build steps.
		Logger *log.Logger
	}

	// Option is a functional option for configuring a Config.
	Option func(*Config)
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		BuildRoot: defaultBuildRoot(),
		TagSuffix: os.Getenv("DEVCON_PROVISION_TAG_SUFFIX"),
		Stdout:    os.Stderr,
		Stderr:    os.Stderr,
		Logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "provision"}),
	}
}

// WithForceRebuild returns an Option that sets ForceRebuild on the config.
func WithForceRebuild(force bool) Option {
	return func(c *Config) {
		c.ForceRebuild = force
	}
}

// WithBuildRoot returns an Option that sets BuildRoot on the config.
func WithBuildRoot(dir string) Option {
	return func(c *Config) {
		c.BuildRoot = dir
	}
}

// WithTagSuffix returns an Option that sets TagSuffix on the config.
func WithTagSuffix(suffix string) Option {
	return func(c *Config) {
		c.TagSuffix = suffix
	}
}

// WithOutput returns an Option that redirects build output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *Config) {
		c.Stdout = stdout
		c.Stderr = stderr
	}
}

// WithLogger returns an Option that sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// defaultBuildRoot picks a directory the container runtime can read.
//
// Docker installed via Snap cannot see /tmp or hidden directories under
// $HOME, so the build context lives in a visible directory in the home
// directory, falling back to the working directory and then the temp dir.
func defaultBuildRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		if _, statErr := os.Stat(home); statErr == nil {
			return filepath.Join(home, "devcon-build")
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, ".devcon-build")
	}
	return filepath.Join(os.TempDir(), "devcon-build")
}
