// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the devcon CLI.
//
// This package implements the Cobra command hierarchy: open, shell and stop
// drive the session orchestrator, socket runs the browser bridge, and
// config, recent and check manage and inspect local state. Errors are mapped
// to stable exit codes in exit_codes.go.
package cmd
