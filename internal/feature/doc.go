// SPDX-License-Identifier: MPL-2.0

// Package feature merges, fetches and orders devcontainer features.
//
// Features come from two places: the user's devcon configuration (stored)
// and the project's devcontainer.json. Collect reads every manifest through a
// Fetcher (local directories or OCI registries) and pulls in undeclared
// dependencies. Resolve then merges duplicates and produces an install order
// in which every feature follows its dependencies. Resolve is pure; all I/O
// happens in the Fetcher.
package feature
