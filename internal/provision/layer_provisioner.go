// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/devcontainer"
	"github.com/devcon/devcon/internal/feature"
)

// ErrProvision is the sentinel wrapped by ProvisionError.
var ErrProvision = errors.New("image provisioning failed")

// Compile-time interface check
var _ Provisioner = (*LayerProvisioner)(nil)

type (
	// LayerProvisioner layers features on top of a project's base image.
	//
	// The layered image is tagged with a hash of:
	// - the generated Dockerfile (base image, environment, feature order)
	// - each feature directory's contents
	// - each feature's resolved options
	//
	// so an unchanged project reuses its image.
	LayerProvisioner struct {
		builder ImageBuilder
		config  *Config
		logger  *log.Logger
	}

	// ProvisionError reports which provisioning step failed.
	ProvisionError struct {
		// Step is "base", "prepare" or "build".
		Step string
		// Image is the tag being produced, when known.
		Image container.ImageTag
		Err   error
	}
)

// Error implements the error interface.
func (e *ProvisionError) Error() string {
	if e.Image != "" {
		return fmt.Sprintf("provision %s (%s): %v", e.Image, e.Step, e.Err)
	}
	return fmt.Sprintf("provision (%s): %v", e.Step, e.Err)
}

// Unwrap exposes both ErrProvision and the underlying cause.
func (e *ProvisionError) Unwrap() []error { return []error{ErrProvision, e.Err} }

// NewLayerProvisioner creates a new LayerProvisioner.
func NewLayerProvisioner(builder ImageBuilder, cfg *Config) *LayerProvisioner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &LayerProvisioner{
		builder: builder,
		config:  cfg,
		logger:  logger,
	}
}

// Provision returns the layered image for eff, building it (and the base
// image for Dockerfile configs) only when no image with the same content
// hash exists yet.
func (p *LayerProvisioner) Provision(ctx context.Context, eff *feature.EffectiveConfig) (*Result, error) {
	baseImage, err := p.baseImage(ctx, eff.Base)
	if err != nil {
		return nil, &ProvisionError{Step: "base", Err: err}
	}

	plan, err := newLayerPlan(baseImage, eff)
	if err != nil {
		return nil, &ProvisionError{Step: "prepare", Err: err}
	}
	dockerfile := generateDockerfile(plan)

	cacheKey, err := calculateCacheKey(plan, dockerfile)
	if err != nil {
		return nil, &ProvisionError{Step: "prepare", Err: fmt.Errorf("failed to calculate cache key: %w", err)}
	}
	tag := p.imageTag("devcon-"+SanitizeName(eff.Base.WorkspaceName()), cacheKey[:12])
	result := &Result{ImageTag: tag, BaseImage: baseImage}

	if p.cached(ctx, tag) {
		p.logger.Debug("reusing image", "tag", tag)
		return result, nil
	}

	p.logger.Info("building image", "tag", tag, "features", len(plan.features))
	if err := p.buildLayers(ctx, plan, dockerfile, tag); err != nil {
		return nil, &ProvisionError{Step: "build", Image: tag, Err: err}
	}
	result.Built = true
	return result, nil
}

func (p *LayerProvisioner) cached(ctx context.Context, tag container.ImageTag) bool {
	if p.config.ForceRebuild {
		return false
	}
	exists, _ := p.builder.ImageExists(ctx, tag) //nolint:errcheck // Error treated as "not found"
	return exists
}

// baseImage returns the configured image, or builds the project's Dockerfile
// into a content-addressed base tag.
func (p *LayerProvisioner) baseImage(ctx context.Context, cfg *devcontainer.Config) (container.ImageTag, error) {
	if cfg.Dockerfile() == "" {
		if cfg.Image == "" {
			return "", errors.New("devcontainer.json names neither an image nor a Dockerfile")
		}
		return container.ImageTag(cfg.Image), nil
	}

	key, err := baseCacheKey(cfg)
	if err != nil {
		return "", err
	}
	tag := p.baseTag(cfg, key)
	if p.cached(ctx, tag) {
		return tag, nil
	}

	var target string
	var args map[string]string
	if cfg.Build != nil {
		target = cfg.Build.Target
		args = cfg.Build.Args
	}
	p.logger.Info("building base image", "dockerfile", cfg.DockerfilePath(), "tag", tag)
	err = p.builder.Build(ctx, container.BuildOptions{
		ContextDir: cfg.BuildContext(),
		Dockerfile: cfg.DockerfilePath(),
		Tag:        tag,
		Target:     target,
		BuildArgs:  args,
		Stdout:     p.config.Stdout,
		Stderr:     p.config.Stderr,
	})
	if err != nil {
		return "", err
	}
	return tag, nil
}

func (p *LayerProvisioner) baseTag(cfg *devcontainer.Config, key string) container.ImageTag {
	return p.imageTag("devcon-"+SanitizeName(cfg.WorkspaceName())+"-base", key[:12])
}

// imageTag constructs the image tag with optional suffix.
// When TagSuffix is set, the tag format is "<repo>:<hash>-<suffix>".
func (p *LayerProvisioner) imageTag(repo, hash string) container.ImageTag {
	if p.config.TagSuffix != "" {
		return container.ImageTag(fmt.Sprintf("%s:%s-%s", repo, hash, p.config.TagSuffix))
	}
	return container.ImageTag(fmt.Sprintf("%s:%s", repo, hash))
}

// baseCacheKey hashes the inputs of a Dockerfile base build. The build
// context is not hashed; ForceRebuild picks up context-only changes.
func baseCacheKey(cfg *devcontainer.Config) (string, error) {
	content, err := os.ReadFile(cfg.DockerfilePath())
	if err != nil {
		return "", fmt.Errorf("failed to read Dockerfile: %w", err)
	}

	h := sha256.New()
	h.Write([]byte("dockerfile:"))
	h.Write(content)
	fmt.Fprintf(h, "\ncontext:%s\n", cfg.BuildContext())
	if cfg.Build != nil {
		fmt.Fprintf(h, "target:%s\n", cfg.Build.Target)
		for _, k := range slices.Sorted(maps.Keys(cfg.Build.Args)) {
			fmt.Fprintf(h, "arg:%s=%s\n", k, cfg.Build.Args[k])
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// newLayerPlan stages every feature of eff, in install order.
func newLayerPlan(baseImage container.ImageTag, eff *feature.EffectiveConfig) (*layerPlan, error) {
	remoteUser := eff.Base.EffectiveRemoteUser()
	containerUser := eff.Base.ContainerUser
	if containerUser == "" {
		containerUser = "root"
	}

	plan := &layerPlan{
		baseImage: baseImage,
		baseEnv: []envVar{
			{name: "DEVCON", value: "true"},
			{name: "DEVCON_WORKSPACE_NAME", value: eff.Base.WorkspaceName()},
			{name: "_REMOTE_USER", value: remoteUser},
			{name: "_REMOTE_USER_HOME", value: userHome(remoteUser)},
			{name: "_CONTAINER_USER", value: containerUser},
			{name: "_CONTAINER_USER_HOME", value: userHome(containerUser)},
		},
	}

	for i, f := range eff.Features {
		if f.Metadata == nil || f.Metadata.Dir == "" {
			return nil, fmt.Errorf("feature %s has not been fetched", f.Spec.ID)
		}
		if _, err := os.Stat(filepath.Join(f.Metadata.Dir, feature.InstallScript)); err != nil {
			return nil, fmt.Errorf("feature %s: missing %s: %w", f.Spec.ID, feature.InstallScript, err)
		}
		envFile, err := f.Metadata.EnvFile(f.Spec.Options)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", f.Spec.ID, err)
		}
		plan.features = append(plan.features, featureLayer{
			id:      f.Spec.ID,
			name:    fmt.Sprintf("%02d-%s", i+1, SanitizeName(f.Spec.ID.ShortName())),
			srcDir:  f.Metadata.Dir,
			envFile: envFile,
			env:     sortedEnv(f.Metadata.ContainerEnv),
		})
	}
	return plan, nil
}

// calculateCacheKey generates a unique key based on the Dockerfile and the
// staged feature contents.
func calculateCacheKey(plan *layerPlan, dockerfile string) (string, error) {
	h := sha256.New()
	h.Write([]byte("dockerfile:" + dockerfile))

	for _, f := range plan.features {
		dirHash, err := CalculateDirHash(f.srcDir)
		if err != nil {
			return "", fmt.Errorf("failed to hash feature %s: %w", f.id, err)
		}
		fmt.Fprintf(h, "\nfeature:%s:%s\nenv:%s", f.name, dirHash, f.envFile)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// buildLayers builds the layered image from a temporary build context.
func (p *LayerProvisioner) buildLayers(ctx context.Context, plan *layerPlan, dockerfile string, tag container.ImageTag) error {
	buildCtx, cleanup, err := p.prepareBuildContext(plan, dockerfile)
	if err != nil {
		return err
	}
	defer cleanup()

	return p.builder.Build(ctx, container.BuildOptions{
		ContextDir: buildCtx,
		Dockerfile: "Dockerfile",
		Tag:        tag,
		Target:     lastStage,
		Stdout:     p.config.Stdout,
		Stderr:     p.config.Stderr,
	})
}

// prepareBuildContext creates a temporary directory holding the Dockerfile
// and one directory per feature (its files plus devcontainer-features.env).
//
// The directory lives under Config.BuildRoot, which defaults to a visible
// directory in $HOME so Snap-installed Docker can read it.
func (p *LayerProvisioner) prepareBuildContext(plan *layerPlan, dockerfile string) (buildContextDir string, cleanup func(), err error) {
	if mkdirErr := os.MkdirAll(p.config.BuildRoot, 0o755); mkdirErr != nil {
		return "", nil, fmt.Errorf("failed to create build context parent directory: %w", mkdirErr)
	}

	tmpDir, err := os.MkdirTemp(p.config.BuildRoot, "ctx-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cleanup = func() {
		_ = os.RemoveAll(tmpDir) // Cleanup temp dir; error non-critical
	}

	for _, f := range plan.features {
		dst := filepath.Join(tmpDir, featuresContextDir, f.name)
		if err := CopyDir(f.srcDir, dst); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("failed to copy feature %s: %w", f.id, err)
		}
		if err := os.WriteFile(filepath.Join(dst, feature.EnvFileName), []byte(f.envFile), 0o644); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("failed to write options for feature %s: %w", f.id, err)
		}
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	return tmpDir, cleanup, nil
}
