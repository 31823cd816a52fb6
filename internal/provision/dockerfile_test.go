// SPDX-License-Identifier: MPL-2.0

package provision

import "testing"

func TestGenerateDockerfile(t *testing.T) {
	t.Parallel()

	plan := &layerPlan{
		baseImage: "debian:12",
		baseEnv:   []envVar{{name: "DEVCON", value: "true"}},
		features: []featureLayer{
			{id: "./a", name: "01-a", env: []envVar{{name: "A_HOME", value: "/opt/a"}}},
			{id: "./b", name: "02-b"},
		},
	}

	want := `FROM debian:12 AS base
USER root
ENV DEVCON="true"
RUN mkdir -p /tmp/features

# ./a
FROM base AS feature_1
COPY features/01-a/ /tmp/features/01-a/
RUN cd /tmp/features/01-a && chmod +x install.sh && set -a && . ./devcontainer-features.env && set +a && ./install.sh
ENV A_HOME="/opt/a"

# ./b
FROM feature_1 AS feature_2
COPY features/02-b/ /tmp/features/02-b/
RUN cd /tmp/features/02-b && chmod +x install.sh && set -a && . ./devcontainer-features.env && set +a && ./install.sh

FROM feature_2 AS feature_last
`
	if got := generateDockerfile(plan); got != want {
		t.Errorf("generateDockerfile() =\n%s\nwant\n%s", got, want)
	}
}

func TestGenerateDockerfile_NoFeatures(t *testing.T) {
	t.Parallel()

	want := `FROM alpine AS base
USER root
RUN mkdir -p /tmp/features

FROM base AS feature_last
`
	if got := generateDockerfile(&layerPlan{baseImage: "alpine"}); got != want {
		t.Errorf("generateDockerfile() =\n%s\nwant\n%s", got, want)
	}
}

func TestEscapeEnvValue(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"plain":                 "plain",
		`say "hi"`:              `say \"hi\"`,
		`C:\tools`:              `C:\\tools`,
		"${PATH}:/opt/node/bin": "${PATH}:/opt/node/bin",
		"two\nlines":            `two\nlines`,
	}
	for in, want := range tests {
		if got := escapeEnvValue(in); got != want {
			t.Errorf("escapeEnvValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUserHome(t *testing.T) {
	t.Parallel()

	for user, want := range map[string]string{"": "/root", "root": "/root", "vscode": "/home/vscode"} {
		if got := userHome(user); got != want {
			t.Errorf("userHome(%q) = %q, want %q", user, got, want)
		}
	}
}
