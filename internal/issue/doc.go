// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and the catalog of user-facing
// troubleshooting pages.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions. Errors may link to an Issue, a Markdown page rendered with
// glamour when the CLI runs with --verbose.
package issue
