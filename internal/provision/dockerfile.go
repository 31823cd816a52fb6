// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/feature"
)

const (
	// ContainerFeaturesDir is where feature directories are copied during the build.
	ContainerFeaturesDir = "/tmp/features"

	featuresContextDir = "features"
	lastStage          = "feature_last"
)

type (
	// layerPlan is everything the generated Dockerfile depends on.
	layerPlan struct {
		baseImage container.ImageTag
		baseEnv   []envVar
		features  []featureLayer
	}

	// featureLayer is one feature staged into the build context.
	featureLayer struct {
		id feature.ID
		// name is the directory under features/ in the build context and
		// under ContainerFeaturesDir in the image.
		name string
		// srcDir is the feature directory on the host.
		srcDir  string
		envFile string
		env     []envVar
	}

	envVar struct {
		name  string
		value string
	}
)

// generateDockerfile renders the multi-stage Dockerfile for plan. Each
// feature gets its own stage on top of the previous one so a failing
// install.sh is easy to attribute.
func generateDockerfile(plan *layerPlan) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "FROM %s AS base\n", plan.baseImage)
	sb.WriteString("USER root\n")
	writeEnv(&sb, plan.baseEnv)
	fmt.Fprintf(&sb, "RUN mkdir -p %s\n", ContainerFeaturesDir)

	prev := "base"
	for i, f := range plan.features {
		stage := fmt.Sprintf("feature_%d", i+1)
		dst := path.Join(ContainerFeaturesDir, f.name)

		fmt.Fprintf(&sb, "\n# %s\n", f.id)
		fmt.Fprintf(&sb, "FROM %s AS %s\n", prev, stage)
		fmt.Fprintf(&sb, "COPY %s/%s/ %s/\n", featuresContextDir, f.name, dst)
		fmt.Fprintf(&sb, "RUN cd %s && chmod +x %s && set -a && . ./%s && set +a && ./%s\n",
			dst, feature.InstallScript, feature.EnvFileName, feature.InstallScript)
		writeEnv(&sb, f.env)
		prev = stage
	}

	fmt.Fprintf(&sb, "\nFROM %s AS %s\n", prev, lastStage)
	return sb.String()
}

func writeEnv(sb *strings.Builder, env []envVar) {
	for _, v := range env {
		fmt.Fprintf(sb, "ENV %s=\"%s\"\n", v.name, escapeEnvValue(v.value))
	}
}

// escapeEnvValue escapes a value for a double-quoted ENV instruction.
// '$' is left alone so values can reference earlier variables.
func escapeEnvValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return r.Replace(v)
}

// sortedEnv returns env as a list ordered by name.
func sortedEnv(env map[string]string) []envVar {
	out := make([]envVar, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, envVar{name: k, value: env[k]})
	}
	return out
}

// userHome guesses the home directory of user inside the image.
func userHome(user string) string {
	if user == "" || user == "root" {
		return "/root"
	}
	return "/home/" + user
}
