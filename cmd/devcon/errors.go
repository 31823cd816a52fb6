// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"

	"github.com/devcon/devcon/internal/issue"
)

// suggestions holds the short hints printed under an error, keyed by the
// catalog issue its kind maps to.
var suggestions = map[issue.Id][]string{
	issue.RuntimeNotAvailableId: {
		"Start Docker, or Apple's container service on macOS",
		"Run 'devcon check' to see which runtimes were found",
	},
	issue.DevcontainerNotFoundId: {
		"Create .devcontainer/devcontainer.json in the project",
	},
	issue.DevcontainerParseErrorId: {
		"Check the file for syntax errors and unknown properties",
	},
	issue.FeatureFetchFailedId: {
		"Check the feature reference and your network connection",
	},
	issue.FeatureCycleId: {
		"Remove one of the dependsOn or installsAfter edges listed above",
	},
	issue.ImageBuildFailedId: {
		"Re-run with --verbose to see the full build output",
	},
	issue.LifecycleHookFailedId: {
		"Fix the command and run 'devcon open' again; finished stages are skipped",
	},
	issue.BridgeAddressInUseId: {
		"Another bridge is already serving this socket; 'devcon socket --show-path' prints it",
	},
	issue.BridgeSocketUnavailableId: {
		"Check the socket directory permissions or set socket_path in the config",
	},
	issue.ConfigLoadFailedId: {
		"Run 'devcon config show' to see the effective configuration",
	},
}

// actionable wraps err with the operation and resource it concerns plus the
// suggestions for its kind. Errors that already carry context, and
// pass-through exit statuses, are returned unchanged.
func actionable(operation, resource string, err error) error {
	if err == nil {
		return nil
	}
	var ae *issue.ActionableError
	var exitErr *ExitError
	if errors.As(err, &ae) || errors.As(err, &exitErr) {
		return err
	}
	_, id := classify(err)
	return issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		WithSuggestions(suggestions[id]...).
		WithIssue(id).
		Wrap(err).
		BuildError()
}
