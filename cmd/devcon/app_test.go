// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/devcon/devcon/internal/bridge"
	"github.com/devcon/devcon/internal/config"
	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/feature"
	"github.com/devcon/devcon/internal/session"
	"github.com/devcon/devcon/internal/testutil"
)

func TestSessionSettings(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Runtime:      container.BackendDocker,
		DefaultShell: "/bin/zsh",
		Dotfiles:     config.DotfilesConfig{Repository: "https://github.com/me/dotfiles", InstallCommand: "make"},
		Features: []config.FeatureEntry{
			{ID: "ghcr.io/devcontainers/features/node:1", Options: map[string]any{"version": "20"}},
		},
		Env: []config.EnvEntry{
			{Name: "EDITOR", Value: "vim", Context: config.EnvContextExec},
			{Name: "TZ"},
		},
		Apple: config.AppleConfig{BuildMemory: "4G", BuildCPU: 2},
	}

	s, err := sessionSettings(cfg, "")
	if err != nil {
		t.Fatalf("sessionSettings() error = %v", err)
	}
	if s.Runtime != container.BackendDocker {
		t.Errorf("Runtime = %q", s.Runtime)
	}
	if s.DefaultShell != "/bin/zsh" {
		t.Errorf("DefaultShell = %q", s.DefaultShell)
	}
	wantDotfiles := session.DotfilesSettings{Repository: "https://github.com/me/dotfiles", InstallCommand: "make"}
	if s.Dotfiles != wantDotfiles {
		t.Errorf("Dotfiles = %+v", s.Dotfiles)
	}
	if len(s.AppleOptions) != 1 {
		t.Errorf("expected one apple option for build resources, got %d", len(s.AppleOptions))
	}

	wantFeatures := []feature.FeatureSpec{{
		ID:      "ghcr.io/devcontainers/features/node:1",
		Options: map[string]any{"version": "20"},
		Source:  feature.SourceStored,
	}}
	if !reflect.DeepEqual(s.Features, wantFeatures) {
		t.Errorf("Features = %+v, want %+v", s.Features, wantFeatures)
	}

	wantEnv := []session.EnvVar{
		{Name: "EDITOR", Value: "vim", Context: session.EnvExec},
		{Name: "TZ"},
	}
	if !reflect.DeepEqual(s.Env, wantEnv) {
		t.Errorf("Env = %+v, want %+v", s.Env, wantEnv)
	}
}

func TestSessionSettings_RuntimeOverride(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	s, err := sessionSettings(cfg, "apple")
	if err != nil {
		t.Fatalf("sessionSettings() error = %v", err)
	}
	if s.Runtime != container.BackendApple {
		t.Errorf("Runtime = %q, want apple", s.Runtime)
	}
	if len(s.AppleOptions) != 0 {
		t.Errorf("no build resources configured, got %d apple options", len(s.AppleOptions))
	}

	_, err = sessionSettings(cfg, "podman")
	if !errors.Is(err, container.ErrInvalidBackendType) {
		t.Errorf("sessionSettings(podman) error = %v, want ErrInvalidBackendType", err)
	}
	if code := exitCodeFor(err); code != ExitConfig {
		t.Errorf("exit code = %d, want %d", code, ExitConfig)
	}
}

func TestSocketPath(t *testing.T) {
	t.Parallel()

	app := NewApp(Dependencies{})
	cfg := &config.Config{SocketPath: "/run/cfg.sock"}

	if got := app.socketPath(cfg, "/run/flag.sock"); got != "/run/flag.sock" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := app.socketPath(cfg, ""); got != "/run/cfg.sock" {
		t.Errorf("config should win over default, got %q", got)
	}
	if got := app.socketPath(nil, ""); got != bridge.DefaultSocketPath() {
		t.Errorf("socketPath(nil) = %q, want default", got)
	}
}

func TestSplitAtDash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		dash       int
		wantBefore []string
		wantAfter  []string
	}{
		{"no dash", []string{"."}, -1, []string{"."}, nil},
		{"path and command", []string{".", "go", "test"}, 1, []string{"."}, []string{"go", "test"}},
		{"command only", []string{"ls"}, 0, []string{}, []string{"ls"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			before, after := splitAtDash(tt.args, tt.dash)
			if !reflect.DeepEqual(before, tt.wantBefore) {
				t.Errorf("before = %q, want %q", before, tt.wantBefore)
			}
			if !reflect.DeepEqual(after, tt.wantAfter) {
				t.Errorf("after = %q, want %q", after, tt.wantAfter)
			}
		})
	}
}

func TestParseEnvAssignments(t *testing.T) {
	t.Parallel()

	env, err := parseEnvAssignments([]string{"A=1", "B=x=y", "A=2", "EMPTY="})
	if err != nil {
		t.Fatalf("parseEnvAssignments() error = %v", err)
	}
	want := map[string]string{"A": "2", "B": "x=y", "EMPTY": ""}
	if !reflect.DeepEqual(env, want) {
		t.Errorf("env = %v, want %v", env, want)
	}

	if env, err := parseEnvAssignments(nil); env != nil || err != nil {
		t.Errorf("parseEnvAssignments(nil) = %v, %v", env, err)
	}

	for _, bad := range []string{"NOVALUE", "=value"} {
		if _, err := parseEnvAssignments([]string{bad}); !errors.Is(err, ErrInvalidEnvAssignment) {
			t.Errorf("parseEnvAssignments(%q) error = %v, want ErrInvalidEnvAssignment", bad, err)
		}
	}
}

func TestParseFeatureOptions(t *testing.T) {
	t.Parallel()

	opts, err := parseFeatureOptions([]string{"version=20", "installYarn=true", "nvm=false", "flags=a=b"})
	if err != nil {
		t.Fatalf("parseFeatureOptions() error = %v", err)
	}
	want := map[string]any{"version": "20", "installYarn": true, "nvm": false, "flags": "a=b"}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("opts = %v, want %v", opts, want)
	}

	if _, err := parseFeatureOptions([]string{"version"}); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("error = %v, want ErrInvalidOption", err)
	}
}

func TestFormatOptions(t *testing.T) {
	t.Parallel()

	if got := formatOptions(nil); got != "" {
		t.Errorf("formatOptions(nil) = %q", got)
	}
	got := formatOptions(map[string]any{"version": "20", "installYarn": true})
	if want := " (installYarn=true, version=20)"; got != want {
		t.Errorf("formatOptions() = %q, want %q", got, want)
	}
}

func TestShortHandle(t *testing.T) {
	t.Parallel()

	if got := shortHandle("0123456789abcdef0123"); got != "0123456789ab" {
		t.Errorf("shortHandle() = %q", got)
	}
	if got := shortHandle("devcon-api"); got != "devcon-api" {
		t.Errorf("shortHandle() = %q", got)
	}
}

func TestProjectPath(t *testing.T) {
	// Not parallel: changes the working directory and the config directory.
	t.Cleanup(config.SetConfigDirOverride(t.TempDir()))

	app := NewApp(Dependencies{})
	empty := t.TempDir()
	t.Cleanup(testutil.MustChdir(t, empty))
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("explicit path is made absolute", func(t *testing.T) {
		got, err := app.projectPath([]string{"sub"}, true)
		if err != nil {
			t.Fatal(err)
		}
		if got != filepath.Join(wd, "sub") {
			t.Errorf("projectPath() = %q", got)
		}
	})

	t.Run("cwd without fallback", func(t *testing.T) {
		got, err := app.projectPath(nil, false)
		if err != nil {
			t.Fatal(err)
		}
		if got != wd {
			t.Errorf("projectPath() = %q, want %q", got, wd)
		}
	})

	t.Run("no project anywhere", func(t *testing.T) {
		if _, err := app.projectPath(nil, true); !errors.Is(err, ErrNoProject) {
			t.Errorf("error = %v, want ErrNoProject", err)
		}
	})

	t.Run("most recent project", func(t *testing.T) {
		if err := config.Touch("/src/older"); err != nil {
			t.Fatal(err)
		}
		if err := config.Touch("/src/api"); err != nil {
			t.Fatal(err)
		}
		got, err := app.projectPath(nil, true)
		if err != nil {
			t.Fatal(err)
		}
		if got != "/src/api" {
			t.Errorf("projectPath() = %q, want /src/api", got)
		}
	})

	t.Run("cwd with devcontainer config wins", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(wd, ".devcontainer.json"), []byte(`{"image":"alpine"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := app.projectPath(nil, true)
		if err != nil {
			t.Fatal(err)
		}
		if got != wd {
			t.Errorf("projectPath() = %q, want %q", got, wd)
		}
	})
}
