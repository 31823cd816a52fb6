// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

const (
	ConfigLoadFailedId Id = iota + 1
	RuntimeNotAvailableId
	DevcontainerNotFoundId
	DevcontainerParseErrorId
	FeatureFetchFailedId
	FeatureCycleId
	ImageBuildFailedId
	LifecycleHookFailedId
	BridgeAddressInUseId
	BridgeSocketUnavailableId
	ShellNotFoundId
	PermissionDeniedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		extLinks []HttpLink  // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render returns the issue as terminal-styled Markdown. stylePath is a
// glamour style name ("dark", "light", "notty") or a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load the devcon configuration!

The config file could not be parsed or did not match the schema.

## Things you can try:
- Show the effective configuration and where it was read from:
~~~
$ devcon config show
~~~
- Check for DEVCON_* environment variables overriding the file:
~~~
$ env | grep ^DEVCON_
~~~
- Start over from the defaults by moving the file aside and running any devcon command`,
	}

	runtimeNotAvailableIssue = &Issue{
		id: RuntimeNotAvailableId,
		mdMsg: `
# No container runtime available!

devcon needs Docker, or Apple's container CLI on macOS, to run dev containers.

## Things you can try:
- Check that the runtime is installed and its daemon is running:
~~~
$ docker info
$ container system status
~~~
- Pick a runtime explicitly:
~~~
$ devcon open --runtime docker .
~~~
- Or set it once in the config file with ` + "`runtime: \"docker\"`",
		extLinks: []HttpLink{
			"https://docs.docker.com/get-started/get-docker/",
			"https://github.com/apple/container",
		},
	}

	devcontainerNotFoundIssue = &Issue{
		id: DevcontainerNotFoundId,
		mdMsg: `
# No devcontainer.json found!

devcon looked for a configuration in the project directory but found none.

## Search locations (in order):
1. .devcontainer/devcontainer.json
2. .devcontainer.json

## Things you can try:
- Check that you passed the project root, not a subdirectory
- Create a minimal configuration:
~~~json
{
  "image": "mcr.microsoft.com/devcontainers/base:debian"
}
~~~`,
		extLinks: []HttpLink{"https://containers.dev/implementors/json_reference/"},
	}

	devcontainerParseErrorIssue = &Issue{
		id: DevcontainerParseErrorId,
		mdMsg: `
# Failed to parse devcontainer.json!

The file is not valid JSONC or does not match the devcontainer schema.

## Things you can try:
- Look for trailing commas in objects other than the last property
- Check that exactly one of "image" or "build.dockerfile" is set
- Check that lifecycle hooks are a string, an array or an object of commands`,
		extLinks: []HttpLink{"https://containers.dev/implementors/json_reference/"},
	}

	featureFetchFailedIssue = &Issue{
		id: FeatureFetchFailedId,
		mdMsg: `
# Failed to fetch a feature!

A feature could not be downloaded from its registry or read from the project.

## Things you can try:
- Check the feature reference, including its tag:
~~~
ghcr.io/devcontainers/features/go:1
~~~
- Local features must start with ./ and contain devcontainer-feature.json
- Check your network connection and registry credentials`,
		extLinks: []HttpLink{"https://containers.dev/implementors/features/"},
	}

	featureCycleIssue = &Issue{
		id: FeatureCycleId,
		mdMsg: `
# Feature dependency cycle detected!

Two or more features depend on each other through dependsOn or
installsAfter, so no install order exists.

## Things you can try:
- Remove one of the edges listed in the error
- Prefer installsAfter for soft ordering; it never pulls features in
- Use overrideFeatureInstallOrder in devcontainer.json for the features you
  control`,
		extLinks: []HttpLink{"https://containers.dev/implementors/features/#installation-order"},
	}

	imageBuildFailedIssue = &Issue{
		id: ImageBuildFailedId,
		mdMsg: `
# Failed to build the container image!

The runtime could not build the base image or install a feature layer.

## Things you can try:
- Re-run with --verbose to see the full build output
- Check that the base image can be pulled by your runtime
- A feature's install.sh failed if its name appears in the output; check its
  options`,
	}

	lifecycleHookFailedIssue = &Issue{
		id: LifecycleHookFailedId,
		mdMsg: `
# A lifecycle command failed!

A command from onCreateCommand, postCreateCommand, postStartCommand or
postAttachCommand exited with a non-zero status. Later commands did not run.

## Things you can try:
- Run the failing command yourself inside the container:
~~~
$ devcon shell .
~~~
- Fix the command and run open again; completed stages are not repeated`,
		extLinks: []HttpLink{"https://containers.dev/implementors/json_reference/#lifecycle-scripts"},
	}

	bridgeAddressInUseIssue = &Issue{
		id: BridgeAddressInUseId,
		mdMsg: `
# The browser bridge is already running!

Another devcon socket daemon is listening on the socket path.

## Things you can try:
- Nothing, if that daemon is yours; containers will use it
- Print the socket path in use:
~~~
$ devcon socket --show-path
~~~
- Start a separate daemon elsewhere:
~~~
$ devcon socket --path /tmp/my-devcon.sock
~~~`,
	}

	bridgeSocketUnavailableIssue = &Issue{
		id: BridgeSocketUnavailableId,
		mdMsg: `
# Cannot create the browser bridge socket!

The socket directory is missing or not writable, or a regular file is in the
way.

## Things you can try:
- Check the permissions of the directory holding the socket
- Remove whatever file occupies the socket path
- Point socket_path in the config file at a writable location`,
	}

	shellNotFoundIssue = &Issue{
		id: ShellNotFoundId,
		mdMsg: `
# No shell found in the container!

devcon tried zsh, bash and sh and none of them exist in the image.

## Things you can try:
- Pass the command to run explicitly:
~~~
$ devcon shell . -- /busybox/sh
~~~
- Set default_shell in the config file`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

devcon could not access the container runtime or a file it needs.

## Things you can try:
- Check that your user can talk to the Docker daemon:
~~~
$ docker ps
~~~
- On Linux, add yourself to the docker group and log in again`,
		extLinks: []HttpLink{"https://docs.docker.com/engine/install/linux-postinstall/"},
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		runtimeNotAvailableIssue.Id():     runtimeNotAvailableIssue,
		devcontainerNotFoundIssue.Id():    devcontainerNotFoundIssue,
		devcontainerParseErrorIssue.Id():  devcontainerParseErrorIssue,
		featureFetchFailedIssue.Id():      featureFetchFailedIssue,
		featureCycleIssue.Id():            featureCycleIssue,
		imageBuildFailedIssue.Id():        imageBuildFailedIssue,
		lifecycleHookFailedIssue.Id():     lifecycleHookFailedIssue,
		bridgeAddressInUseIssue.Id():      bridgeAddressInUseIssue,
		bridgeSocketUnavailableIssue.Id(): bridgeSocketUnavailableIssue,
		shellNotFoundIssue.Id():           shellNotFoundIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
	}
)

// Values returns every registered issue ordered by id.
func Values() []*Issue {
	ids := maps.Keys(issues)
	slices.Sort(ids)
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
