// SPDX-License-Identifier: MPL-2.0

//go:build windows

package bridge

// checkWritable is left to bind on Windows, where ACLs decide.
func checkWritable(string) error {
	return nil
}
