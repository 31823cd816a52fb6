// SPDX-License-Identifier: MPL-2.0

// Package platform centralizes host operating system differences: GOOS
// constants, the default URL opener per OS, Flatpak sandbox escapes, Windows
// reserved file names, and which container runtimes a host can offer.
package platform
