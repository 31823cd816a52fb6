// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by devcon tests: Must* wrappers that
// fail the test on setup errors and a semaphore that throttles integration
// tests against a real container runtime.
package testutil
