// SPDX-License-Identifier: MPL-2.0

package feature

import (
	"errors"
	"slices"
	"testing"

	"github.com/docker/docker/api/types/mount"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/devcontainer"
)

func TestNewEffectiveConfig(t *testing.T) {
	t.Parallel()

	base := &devcontainer.Config{
		Image:        "debian",
		Mounts:       []container.Mount{container.BindMount("/host/data", "/data", false)},
		ContainerEnv: map[string]string{"SHARED": "base"},
		RemoteEnv:    map[string]string{"EDITOR": "vim"},
		Hooks: map[devcontainer.HookStage]devcontainer.LifecycleCommand{
			devcontainer.PostCreate: {Shell: "make setup"},
		},
	}
	meta := map[ID]*Metadata{
		featA: {
			ContainerEnv: map[string]string{"SHARED": "a", "A_HOME": "/opt/a"},
			Mounts: []container.Mount{
				{Type: mount.TypeVolume, Source: "a-data", Target: "/data"},
				{Type: mount.TypeVolume, Source: "a-cache", Target: "/cache"},
			},
			Hooks: map[devcontainer.HookStage]devcontainer.LifecycleCommand{
				devcontainer.PostCreate: {Args: []string{"a-init"}},
			},
		},
		featB: {
			Hooks: map[devcontainer.HookStage]devcontainer.LifecycleCommand{
				devcontainer.PostCreate: {Args: []string{"b-init"}},
				devcontainer.PostStart:  {Args: []string{"b-start"}},
			},
		},
	}
	res, err := Resolve([]FeatureSpec{spec(featA, featB), spec(featB)}, nil)
	if err != nil {
		t.Fatal(err)
	}

	eff, err := NewEffectiveConfig(base, res, meta)
	if err != nil {
		t.Fatalf("NewEffectiveConfig() error: %v", err)
	}

	if got := eff.FeatureIDs(); !slices.Equal(got, []ID{featB, featA}) {
		t.Errorf("FeatureIDs() = %v", got)
	}
	if len(eff.Mounts) != 2 || eff.Mounts[0].Source != "/host/data" || eff.Mounts[1].Target != "/cache" {
		t.Errorf("Mounts = %v, want base /data to replace the feature mount", eff.Mounts)
	}
	if eff.ContainerEnv["SHARED"] != "base" || eff.ContainerEnv["A_HOME"] != "/opt/a" {
		t.Errorf("ContainerEnv = %v", eff.ContainerEnv)
	}
	if eff.RemoteEnv["EDITOR"] != "vim" {
		t.Errorf("RemoteEnv = %v", eff.RemoteEnv)
	}

	var origins []string
	for _, h := range eff.Hooks(devcontainer.PostCreate) {
		origins = append(origins, h.Origin)
	}
	if want := []string{string(featB), string(featA), BaseOrigin}; !slices.Equal(origins, want) {
		t.Errorf("postCreate origins = %v, want %v", origins, want)
	}
	if got := eff.Hooks(devcontainer.OnCreate); len(got) != 0 {
		t.Errorf("onCreate hooks = %v, want none", got)
	}
}

func TestNewEffectiveConfig_MissingMetadata(t *testing.T) {
	t.Parallel()

	res, err := Resolve([]FeatureSpec{spec(featA)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewEffectiveConfig(&devcontainer.Config{Image: "x"}, res, nil)
	if !errors.Is(err, ErrFeature) {
		t.Fatalf("expected ErrFeature, got %v", err)
	}
}
