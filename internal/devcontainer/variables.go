// SPDX-License-Identifier: MPL-2.0

package devcontainer

import (
	"path/filepath"
	"regexp"
	"strings"
)

// variablePattern matches ${name} and ${localEnv:NAME[:default]}.
var variablePattern = regexp.MustCompile(`\$\{([A-Za-z]+)(?::([^}:]*)(?::([^}]*))?)?\}`)

// LookupEnvFunc resolves host environment variables.
type LookupEnvFunc func(key string) (string, bool)

// Expand replaces devcontainer.json variables in s. Unknown variables are
// left untouched.
func (c *Config) Expand(s string, lookup LookupEnvFunc) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return variablePattern.ReplaceAllStringFunc(s, func(match string) string {
		m := variablePattern.FindStringSubmatch(match)
		switch m[1] {
		case "localWorkspaceFolder":
			return c.ProjectDir
		case "localWorkspaceFolderBasename":
			return c.WorkspaceName()
		case "containerWorkspaceFolder":
			return c.ContainerWorkspaceFolder()
		case "containerWorkspaceFolderBasename":
			return filepath.Base(c.ContainerWorkspaceFolder())
		case "localEnv", "env":
			if v, ok := lookup(m[2]); ok {
				return v
			}
			return m[3]
		default:
			return match
		}
	})
}

// expandVariables applies Expand to every field that may carry variables.
// workspaceFolder goes first since containerWorkspaceFolder depends on it.
func (c *Config) expandVariables(lookup LookupEnvFunc) {
	c.WorkspaceFolder = c.Expand(c.WorkspaceFolder, lookup)
	for i := range c.Mounts {
		c.Mounts[i].Source = c.Expand(c.Mounts[i].Source, lookup)
		c.Mounts[i].Target = c.Expand(c.Mounts[i].Target, lookup)
	}
	for k, v := range c.ContainerEnv {
		c.ContainerEnv[k] = c.Expand(v, lookup)
	}
	for k, v := range c.RemoteEnv {
		c.RemoteEnv[k] = c.Expand(v, lookup)
	}
	if c.Build != nil {
		for k, v := range c.Build.Args {
			c.Build.Args[k] = c.Expand(v, lookup)
		}
	}
}
