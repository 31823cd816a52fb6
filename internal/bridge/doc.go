// SPDX-License-Identifier: MPL-2.0

// Package bridge forwards URLs from containers to the host browser.
//
// A Daemon listens on a unix socket. Each connection carries a single
// newline-terminated URL and no reply; the daemon hands the URL to the host
// opener verbatim. Inside the container a small shell helper (devcon-browser)
// is mounted next to the socket and set as BROWSER, so tools that open URLs
// reach the host without knowing about devcon.
//
//	d := bridge.NewDaemon(path)
//	if err := d.Run(ctx); err != nil {
//		// AddressInUseError, SocketPathUnavailableError, ...
//	}
package bridge
