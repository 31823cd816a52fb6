// SPDX-License-Identifier: MPL-2.0

// Package session drives a project's dev container through its lifecycle.
//
// An Orchestrator turns a project path into a Session and moves it along
// the stage graph:
//
//	Requested -> Building -> Created -> HooksRunning -> Ready
//	Ready -> HooksRunning -> Ready   (postAttach on every exec)
//	Requested | Ready -> Stopping -> Stopped
//
// Any non-terminal stage may move to Failed. Hooks that run once per
// container (onCreate, updateContent, postCreate) leave a marker file inside
// the container, so reopening a project never repeats them. postStart runs
// whenever the container had to be started.
package session
