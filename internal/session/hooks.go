// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"path"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/devcontainer"
)

// HookMarkerDir holds one file per completed once-per-container stage.
const HookMarkerDir = "/var/lib/devcon/hooks"

// markerScriptName is $0 of the marker-writing script.
const markerScriptName = "devcon-marker"

// runHooks runs every command for stage in order: feature hooks in install
// order, then the devcontainer.json hook. Stages that run once per
// container are skipped when their marker exists and marked on success.
func (o *Orchestrator) runHooks(ctx context.Context, s *Session, stage devcontainer.HookStage) error {
	hooks := s.effective.Hooks(stage)
	if len(hooks) == 0 {
		return nil
	}

	once := stage.RunsOncePerContainer()
	if once {
		done, err := o.markerExists(ctx, s, stage)
		if err != nil {
			return err
		}
		if done {
			o.logger.Debug("hook already ran in this container", "stage", stage)
			return nil
		}
	}

	for _, h := range hooks {
		for _, argv := range h.Command.Commands() {
			index := s.nextHook()
			o.logger.Info("running hook", "stage", stage, "origin", h.Origin, "index", index)
			err := o.exec(ctx, s, argv, container.ExecOptions{
				User:    s.effective.Base.EffectiveRemoteUser(),
				WorkDir: s.effective.Base.ContainerWorkspaceFolder(),
				Env:     s.effective.RemoteEnv,
				Stdout:  o.stdout,
				Stderr:  o.stderr,
			})
			if err != nil {
				return hookError(stage, h.Origin, argv, err)
			}
		}
	}

	if once {
		return o.writeMarker(ctx, s, stage)
	}
	return nil
}

func (o *Orchestrator) markerExists(ctx context.Context, s *Session, stage devcontainer.HookStage) (bool, error) {
	err := o.exec(ctx, s, []string{"test", "-f", markerPath(stage)}, container.ExecOptions{User: "root"})
	if err == nil {
		return true, nil
	}
	var rerr *container.RuntimeError
	if errors.As(err, &rerr) && rerr.ExitCode == 1 {
		return false, nil
	}
	return false, err
}

func (o *Orchestrator) writeMarker(ctx context.Context, s *Session, stage devcontainer.HookStage) error {
	argv := []string{"/bin/sh", "-c", `mkdir -p "$1" && touch "$1/$2"`, markerScriptName, HookMarkerDir, stage.Marker()}
	return o.exec(ctx, s, argv, container.ExecOptions{User: "root"})
}

// exec runs argv in the session's container. Calls are serialized per
// session.
func (o *Orchestrator) exec(ctx context.Context, s *Session, argv []string, opts container.ExecOptions) error {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	return s.backend.Exec(ctx, s.Handle, argv, opts)
}

func markerPath(stage devcontainer.HookStage) string {
	return path.Join(HookMarkerDir, stage.Marker())
}

func hookError(stage devcontainer.HookStage, origin string, argv []string, err error) error {
	he := &HookError{Stage: stage, Origin: origin, Command: devcontainer.QuoteArgs(argv), ExitCode: 1, Err: err}
	var rerr *container.RuntimeError
	if errors.As(err, &rerr) {
		he.ExitCode = rerr.ExitCode
	}
	return he
}
