// Package pathresolve 将 (pid, 路径) 解析为规范化的绝对路径
package pathresolve

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnresolvable 路径为空，或相对路径所属进程的工作目录未知
var ErrUnresolvable = errors.New("path unresolvable")

// CwdResolver 进程工作目录查询
type CwdResolver interface {
	ResolveCwd(pid int) (string, error)
}

// Canonicalizer 绝对路径规范化函数
type Canonicalizer func(path string) string

// Resolver 路径解析器
type Resolver struct {
	cwd   CwdResolver
	canon Canonicalizer
}

// Option Resolver 配置选项
type Option func(*Resolver)

// WithCanonicalizer 替换规范化函数
func WithCanonicalizer(c Canonicalizer) Option {
	return func(r *Resolver) {
		r.canon = c
	}
}

// New 创建路径解析器
func New(cwd CwdResolver, opts ...Option) *Resolver {
	r := &Resolver{cwd: cwd, canon: Canonicalize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve 解析路径
// 绝对路径直接规范化，不查询工作目录。
func (r *Resolver) Resolve(pid int, raw string) (string, error) {
	if raw == "" {
		return "", ErrUnresolvable
	}
	if filepath.IsAbs(raw) {
		return r.canon(raw), nil
	}

	cwd, err := r.cwd.ResolveCwd(pid)
	if err != nil {
		return "", ErrUnresolvable
	}
	// 不用 filepath.Join：它会在解析符号链接之前按字面折叠 ".."
	return r.canon(strings.TrimRight(cwd, "/") + "/" + raw), nil
}

// Canonicalize 与 realpath(3) 语义一致：解析符号链接并去掉 "." 和 ".."
// 路径不存在时（文件可能已被删除）逐级解析最长的已存在前缀，剩余部分按字面拼接。
// ".." 作用于已解析的前缀，因此 link/.. 指向链接目标的父目录。
func Canonicalize(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	resolved := string(filepath.Separator)
	if !filepath.IsAbs(path) {
		resolved = "."
	}

	parts := strings.Split(path, string(filepath.Separator))
	for i, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next, err := filepath.EvalSymlinks(filepath.Join(resolved, part))
		if err != nil {
			return filepath.Join(resolved, filepath.Join(parts[i:]...))
		}
		resolved = next
	}
	return resolved
}
