//go:build !windows
// +build !windows

package tracer

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// newProcAttr agent 放到新的进程组，组号等于其 pid
func newProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// processGroup 查询进程组号，失败时退回 pid
func processGroup(pid int) int {
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		return pid
	}
	return pgid
}

// terminateGroup 向整个进程组发送 SIGTERM
func terminateGroup(pgid int) error {
	err := unix.Kill(-pgid, unix.SIGTERM)
	if errors.Is(err, unix.ESRCH) {
		// 进程组已经不存在
		return nil
	}
	return err
}
