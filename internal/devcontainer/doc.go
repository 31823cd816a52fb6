// SPDX-License-Identifier: MPL-2.0

// Package devcontainer loads a project's devcontainer.json.
//
// The file is normalized through CUE (so comments and trailing commas are
// fine), validated against an embedded JSON schema, and decoded into Config.
// Only the subset devcon acts on is modeled: the base image or Dockerfile,
// features in file order, mounts, environment, users and lifecycle hooks.
package devcontainer
