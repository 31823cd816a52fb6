// SPDX-License-Identifier: MPL-2.0

// Package provision builds the image a devcon container runs from.
//
// The image is layered on top of the project's base image (or the image
// built from its Dockerfile): one build stage per feature, in install order,
// each copying the feature directory and running its install.sh with the
// feature's options sourced from devcontainer-features.env.
//
//	p := provision.NewLayerProvisioner(backend, provision.DefaultConfig())
//	result, err := p.Provision(ctx, effective)
//	// result.ImageTag is "devcon-<project>:<hash>"
//
// Images are tagged with a hash of the generated Dockerfile and the feature
// contents, so an unchanged project reuses its image without rebuilding.
package provision
