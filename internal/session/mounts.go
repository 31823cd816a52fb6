// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"os"
	"slices"
	"strconv"

	"github.com/devcon/devcon/internal/bridge"
	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/feature"
)

const (
	// ContainerSocketPath is where the bridge socket is mounted.
	ContainerSocketPath = bridge.ContainerSocketPath
	// ContainerHelperPath is where the bridge helper script is mounted.
	ContainerHelperPath = bridge.ContainerHelperPath
	// ContainerDotfilesDir is where the dotfiles checkout is mounted.
	ContainerDotfilesDir = "/tmp/devcon-dotfiles"
	// BrowserEnv names the helper for tools that open URLs.
	BrowserEnv = "BROWSER"
)

// injection is the mount set computed before Building.
type injection struct {
	mounts      []container.Mount
	bridged     bool
	dotfilesDir string
}

// injections computes the container's mounts: the workspace, the effective
// config's mounts, the bridge socket and helper when a daemon answers, and
// the dotfiles checkout when configured. Bridge and dotfiles failures only
// produce warnings.
func (o *Orchestrator) injections(ctx context.Context, eff *feature.EffectiveConfig) injection {
	workspace := container.BindMount(eff.Base.ProjectDir, eff.Base.ContainerWorkspaceFolder(), false)
	inj := injection{mounts: container.MergeMounts([]container.Mount{workspace}, eff.Mounts...)}

	if extra, ok := o.bridgeMounts(ctx); ok {
		inj.mounts = container.MergeMounts(inj.mounts, extra...)
		inj.bridged = true
	}

	if repo := o.settings.Dotfiles.Repository; repo != "" {
		dir, err := o.dotfiles.Sync(ctx, repo)
		switch {
		case dir == "":
			o.logger.Warn("dotfiles unavailable, continuing without them", "repository", repo, "error", err)
		default:
			if err != nil {
				o.logger.Warn("using the existing dotfiles checkout", "repository", repo, "error", err)
			}
			inj.mounts = container.MergeMounts(inj.mounts, container.BindMount(dir, ContainerDotfilesDir, false))
			inj.dotfilesDir = dir
		}
	}
	return inj
}

// labels records the creation-time choices on a new container so a later
// open can tell what a reused container actually has.
func (inj injection) labels(projectPath string) map[string]string {
	labels := map[string]string{
		container.LabelPath:    projectPath,
		container.LabelBridged: strconv.FormatBool(inj.bridged),
	}
	if inj.dotfilesDir != "" {
		labels[container.LabelDotfiles] = ContainerDotfilesDir
	}
	return labels
}

// reconcile aligns the session with a reused container. Mounts and published
// ports are fixed when a container is created, so a bridge or dotfiles
// checkout that only became available since then is not inside it.
func (o *Orchestrator) reconcile(s *Session, inj *injection, ports []container.PortForward, up *container.UpResult) {
	const hint = "run `devcon stop --rm` to recreate the container"
	labels := up.Labels
	if up.Image != "" && up.Image != s.Image {
		o.logger.Warn("container runs an older image", "image", up.Image, "built", s.Image, "hint", hint)
		s.Image = up.Image
	}
	if inj.bridged && labels[container.LabelBridged] != "true" {
		o.logger.Warn("container was created without the browser bridge", "handle", s.Handle, "hint", hint)
		inj.mounts = withoutTargets(inj.mounts, ContainerSocketPath, ContainerHelperPath)
		inj.bridged = false
	}
	if inj.dotfilesDir != "" && labels[container.LabelDotfiles] == "" {
		o.logger.Warn("container was created without dotfiles", "handle", s.Handle, "hint", hint)
		inj.mounts = withoutTargets(inj.mounts, ContainerDotfilesDir)
		inj.dotfilesDir = ""
	}
	published := container.ParsePorts(labels[container.LabelPorts])
	if !slices.Equal(published, ports) {
		o.logger.Warn("container publishes different ports than forwardPorts",
			"published", container.FormatPorts(published), "configured", container.FormatPorts(ports), "hint", hint)
	}
	s.Mounts = inj.mounts
	s.Bridged = inj.bridged
	s.Ports = published
}

func withoutTargets(mounts []container.Mount, targets ...string) []container.Mount {
	return slices.DeleteFunc(slices.Clone(mounts), func(m container.Mount) bool {
		return slices.Contains(targets, m.Target)
	})
}

func (o *Orchestrator) bridgeMounts(ctx context.Context) ([]container.Mount, bool) {
	if o.bridge == nil {
		return nil, false
	}
	if !o.bridge.Reachable(ctx) {
		o.logger.Warn("browser bridge is not running; opening URLs from the container will not work",
			"socket", o.bridge.SocketPath(), "hint", "run `devcon socket --daemon`")
		return nil, false
	}
	if _, err := os.Stat(o.bridge.HelperPath()); err != nil {
		o.logger.Warn("browser bridge helper is missing", "path", o.bridge.HelperPath(), "error", err)
		return nil, false
	}
	return []container.Mount{
		container.BindMount(o.bridge.SocketPath(), ContainerSocketPath, false),
		container.BindMount(o.bridge.HelperPath(), ContainerHelperPath, true),
	}, true
}

// installDotfiles runs the dotfiles install command once per container as
// the remote user. Failures are logged.
func (o *Orchestrator) installDotfiles(ctx context.Context, s *Session, hostDir string) {
	const stage = "dotfiles"
	argv := dotfilesInstallCommand(hostDir, ContainerDotfilesDir, o.settings.Dotfiles.InstallCommand)
	if argv == nil {
		o.logger.Debug("dotfiles have no install script", "dir", hostDir)
		return
	}
	marker := HookMarkerDir + "/" + stage
	if err := o.exec(ctx, s, []string{"test", "-f", marker}, container.ExecOptions{User: "root"}); err == nil {
		return
	}
	err := o.exec(ctx, s, argv, container.ExecOptions{
		User:    s.effective.Base.EffectiveRemoteUser(),
		WorkDir: ContainerDotfilesDir,
		Stdout:  o.stdout,
		Stderr:  o.stderr,
	})
	if err != nil {
		o.logger.Warn("dotfiles install failed", "error", err)
		return
	}
	markerArgv := []string{"/bin/sh", "-c", `mkdir -p "$1" && touch "$1/$2"`, markerScriptName, HookMarkerDir, stage}
	if err := o.exec(ctx, s, markerArgv, container.ExecOptions{User: "root"}); err != nil {
		o.logger.Warn("failed to record dotfiles install", "error", err)
	}
}
