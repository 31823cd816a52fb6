// SPDX-License-Identifier: MPL-2.0

package feature

import (
	"fmt"
	"maps"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/devcontainer"
)

type (
	// Resolved pairs a feature in install order with its manifest.
	Resolved struct {
		Spec     FeatureSpec
		Metadata *Metadata
	}

	// HookCommand is one command to run for a lifecycle stage. Origin is the
	// feature ID, or "devcontainer.json" for the base config.
	HookCommand struct {
		Origin  string
		Command devcontainer.LifecycleCommand
	}

	// EffectiveConfig is everything needed to build and start a project's
	// container: the base config, features in install order, and the merged
	// mount list and environment. Later sources win on conflicts: features in
	// install order, then devcontainer.json.
	EffectiveConfig struct {
		Base         *devcontainer.Config
		Features     []Resolved
		Mounts       []container.Mount
		ContainerEnv map[string]string
		RemoteEnv    map[string]string
		Conflicts    []Conflict
	}
)

// BaseOrigin labels hooks that come from devcontainer.json.
const BaseOrigin = "devcontainer.json"

// NewEffectiveConfig combines base with a resolution. meta must hold an
// entry for every resolved feature.
func NewEffectiveConfig(base *devcontainer.Config, res *Resolution, meta map[ID]*Metadata) (*EffectiveConfig, error) {
	eff := &EffectiveConfig{
		Base:         base,
		ContainerEnv: map[string]string{},
		RemoteEnv:    maps.Clone(base.RemoteEnv),
	}
	if eff.RemoteEnv == nil {
		eff.RemoteEnv = map[string]string{}
	}

	var featureMounts []container.Mount
	if res != nil {
		eff.Conflicts = res.Conflicts
		for _, spec := range res.Features {
			m, ok := meta[spec.ID]
			if !ok {
				return nil, &MetadataError{ID: spec.ID, Err: fmt.Errorf("no metadata fetched")}
			}
			eff.Features = append(eff.Features, Resolved{Spec: spec, Metadata: m})
			featureMounts = append(featureMounts, m.Mounts...)
			maps.Copy(eff.ContainerEnv, m.ContainerEnv)
		}
	}
	maps.Copy(eff.ContainerEnv, base.ContainerEnv)
	eff.Mounts = container.MergeMounts(featureMounts, base.Mounts...)
	return eff, nil
}

// Hooks returns the commands for stage: feature hooks in install order,
// followed by the devcontainer.json hook.
func (e *EffectiveConfig) Hooks(stage devcontainer.HookStage) []HookCommand {
	var out []HookCommand
	for _, f := range e.Features {
		if cmd := f.Metadata.Hooks[stage]; !cmd.IsZero() {
			out = append(out, HookCommand{Origin: string(f.Spec.ID), Command: cmd})
		}
	}
	if e.Base != nil {
		if cmd := e.Base.Hook(stage); !cmd.IsZero() {
			out = append(out, HookCommand{Origin: BaseOrigin, Command: cmd})
		}
	}
	return out
}

// FeatureIDs lists the features in install order.
func (e *EffectiveConfig) FeatureIDs() []ID {
	out := make([]ID, 0, len(e.Features))
	for _, f := range e.Features {
		out = append(out, f.Spec.ID)
	}
	return out
}
