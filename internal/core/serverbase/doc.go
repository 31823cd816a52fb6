// SPDX-License-Identifier: MPL-2.0

// Package serverbase holds the lifecycle shared by long-running listeners.
//
// A Base moves through created, starting, running, stopping and stopped (or
// failed). Reads of the state are lock-free. Goroutines started through Go are
// tracked so Stop can wait for them.
package serverbase
