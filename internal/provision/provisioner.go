// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/feature"
)

type (
	// Provisioner prepares the image for a project's effective configuration.
	// Implementations cache images by content hash and skip the build when
	// nothing changed.
	Provisioner interface {
		Provision(ctx context.Context, eff *feature.EffectiveConfig) (*Result, error)
	}

	// ImageBuilder is the part of container.Backend a provisioner needs.
	ImageBuilder interface {
		ImageExists(ctx context.Context, tag container.ImageTag) (bool, error)
		Build(ctx context.Context, opts container.BuildOptions) error
	}

	// Result contains the output of a provisioning operation.
	Result struct {
		// ImageTag is the layered image to start, e.g. "devcon-app:3f2a9c0d1e4b".
		ImageTag container.ImageTag
		// BaseImage is the image the feature layers were applied to.
		BaseImage container.ImageTag
		// Built is false when a cached image was reused.
		Built bool
	}
)
