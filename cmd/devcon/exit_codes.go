// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/devcon/devcon/internal/bridge"
	"github.com/devcon/devcon/internal/config"
	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/devcontainer"
	"github.com/devcon/devcon/internal/feature"
	"github.com/devcon/devcon/internal/issue"
	"github.com/devcon/devcon/internal/provision"
	"github.com/devcon/devcon/internal/session"
	"github.com/devcon/devcon/pkg/types"
)

// Process exit codes. The values are stable; scripts depend on them.
const (
	// ExitOK is returned on success.
	ExitOK types.ExitCode = 0
	// ExitGeneric covers usage errors and anything not classified below.
	ExitGeneric types.ExitCode = 1
	// ExitConfig is returned for an invalid config file or devcontainer.json.
	ExitConfig types.ExitCode = 2
	// ExitFeature is returned when features cannot be fetched or ordered.
	ExitFeature types.ExitCode = 3
	// ExitBuild is returned when the image build fails.
	ExitBuild types.ExitCode = 4
	// ExitHook is returned when a lifecycle command fails.
	ExitHook types.ExitCode = 5
	// ExitRuntimeUnavailable is returned when no container runtime answers.
	ExitRuntimeUnavailable types.ExitCode = 6
	// ExitRuntime is returned when a runtime up, exec or stop call fails.
	ExitRuntime types.ExitCode = 7
	// ExitBridge is returned when the browser bridge cannot bind its socket.
	ExitBridge types.ExitCode = 8
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
// A nil Err exits silently, which is how `devcon shell` passes through the
// exit status of the command it ran.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// classify maps an error to its exit code and the catalog issue that explains
// it. Order matters: a HookError also carries the RuntimeError of the failed
// exec, and provisioning errors wrap runtime build errors.
func classify(err error) (types.ExitCode, issue.Id) {
	var exitErr *ExitError
	var runtimeErr *container.RuntimeError
	switch {
	case err == nil:
		return ExitOK, 0
	case errors.As(err, &exitErr):
		_, id := classify(exitErr.Err)
		return exitErr.Code, id
	case errors.Is(err, session.ErrHook):
		return ExitHook, issue.LifecycleHookFailedId
	case errors.Is(err, feature.ErrCyclicDependency):
		return ExitFeature, issue.FeatureCycleId
	case errors.Is(err, feature.ErrFetch):
		return ExitFeature, issue.FeatureFetchFailedId
	case errors.Is(err, feature.ErrFeature):
		return ExitFeature, 0
	case errors.Is(err, provision.ErrProvision):
		return ExitBuild, issue.ImageBuildFailedId
	case errors.Is(err, container.ErrBackendNotAvailable):
		return ExitRuntimeUnavailable, issue.RuntimeNotAvailableId
	case errors.As(err, &runtimeErr):
		if runtimeErr.Operation == container.OperationBuild {
			return ExitBuild, issue.ImageBuildFailedId
		}
		return ExitRuntime, 0
	case errors.Is(err, bridge.ErrAddressInUse):
		return ExitBridge, issue.BridgeAddressInUseId
	case errors.Is(err, bridge.ErrBridge):
		return ExitBridge, issue.BridgeSocketUnavailableId
	case errors.Is(err, devcontainer.ErrConfigNotFound):
		return ExitConfig, issue.DevcontainerNotFoundId
	case errors.Is(err, devcontainer.ErrInvalidConfig):
		return ExitConfig, issue.DevcontainerParseErrorId
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, container.ErrInvalidBackendType):
		return ExitConfig, issue.ConfigLoadFailedId
	case errors.Is(err, session.ErrInvalidProjectPath):
		return ExitConfig, 0
	default:
		return ExitGeneric, 0
	}
}

// exitCodeFor returns the process exit code for err.
func exitCodeFor(err error) types.ExitCode {
	code, _ := classify(err)
	return code
}
