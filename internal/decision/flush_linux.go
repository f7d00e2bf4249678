//go:build linux
// +build linux

package decision

import (
	"os"

	"golang.org/x/sys/unix"
)

// flushInput 丢弃终端输入队列中尚未读取的数据，非终端时什么也不做
func flushInput(f *os.File) error {
	fd := int(f.Fd())
	if _, err := unix.IoctlGetTermios(fd, unix.TCGETS); err != nil {
		return nil
	}
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)
}
