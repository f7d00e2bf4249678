//go:build !linux
// +build !linux

package decision

import "os"

// flushInput 非 Linux 平台占位实现
func flushInput(*os.File) error {
	return nil
}
