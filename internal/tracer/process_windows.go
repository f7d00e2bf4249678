//go:build windows
// +build windows

package tracer

import "syscall"

// newProcAttr Windows 平台没有进程组语义
func newProcAttr() *syscall.SysProcAttr {
	return nil
}

func processGroup(pid int) int {
	return pid
}

// terminateGroup Windows 平台占位实现
func terminateGroup(int) error {
	return ErrNotSupported
}
