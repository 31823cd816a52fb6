// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package bridge

import "golang.org/x/sys/unix"

func checkWritable(dir string) error {
	return unix.Access(dir, unix.W_OK|unix.X_OK)
}
