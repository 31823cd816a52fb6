// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package bridge

import "syscall"

func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
