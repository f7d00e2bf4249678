// Package procinfo 提供进程元数据查询：工作目录、可执行文件和命令行
package procinfo

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// Inspector 实时进程查询接口
type Inspector interface {
	Cwd(pid int) (string, error)
	Exe(pid int) (string, error)
	Cmdline(pid int) ([]string, error)
}

// SystemInspector 基于 gopsutil 查询本机进程
type SystemInspector struct{}

// NewSystemInspector 创建本机进程查询器
func NewSystemInspector() SystemInspector {
	return SystemInspector{}
}

func lookup(pid int) (*process.Process, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}
	return p, nil
}

// Cwd 查询进程当前工作目录
func (SystemInspector) Cwd(pid int) (string, error) {
	p, err := lookup(pid)
	if err != nil {
		return "", err
	}
	return p.Cwd()
}

// Exe 查询进程可执行文件路径
func (SystemInspector) Exe(pid int) (string, error) {
	p, err := lookup(pid)
	if err != nil {
		return "", err
	}
	return p.Exe()
}

// Cmdline 查询进程命令行参数
func (SystemInspector) Cmdline(pid int) ([]string, error) {
	p, err := lookup(pid)
	if err != nil {
		return nil, err
	}
	return p.CmdlineSlice()
}

// Info 进程描述信息
type Info struct {
	PID     int
	Exe     string
	Cmdline []string
}

// Describe 尽力获取进程的可执行文件和命令行
// 能拿到的字段都会填充，拿不到的字段对应的错误合并后返回。
func Describe(inspector Inspector, pid int) (Info, error) {
	info := Info{PID: pid}
	var errs []error

	exe, err := inspector.Exe(pid)
	if err != nil {
		errs = append(errs, fmt.Errorf("exe: %w", err))
	} else {
		info.Exe = exe
	}

	cmdline, err := inspector.Cmdline(pid)
	if err != nil {
		errs = append(errs, fmt.Errorf("cmdline: %w", err))
	} else {
		info.Cmdline = cmdline
	}

	return info, errors.Join(errs...)
}
