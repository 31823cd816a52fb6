// SPDX-License-Identifier: MPL-2.0

// Package container is the runtime abstraction over the container CLIs devcon
// can drive. Each backend (docker, Apple `container`) exposes the same four
// verbs: Build, Up, Exec and Stop. A backend is chosen once per session by
// Select and is never swapped afterwards.
//
// Backends shell out through an injectable ExecCommandFunc; tests replace it
// with the TestHelperProcess pattern instead of touching a real runtime.
package container
