package procinfo

import (
	"errors"

	"go.uber.org/zap"

	"github.com/FloatingGuy/ransomcare/internal/log"
)

// ErrNotFound 进程已退出（或无权限）且没有缓存的工作目录
var ErrNotFound = errors.New("process cwd not found")

// Resolver 查询进程工作目录并缓存
//
// 缓存条目在进程退出后不会清除，进程退出前发出的尾部事件仍能解析相对路径。
// 缓存只由读循环 goroutine 写入，不加锁。
type Resolver struct {
	inspector Inspector
	cache     map[int]string
	logger    *log.Logger
}

// NewResolver 创建工作目录解析器
func NewResolver(inspector Inspector, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Resolver{
		inspector: inspector,
		cache:     make(map[int]string),
		logger:    logger,
	}
}

// ResolveCwd 返回进程工作目录
// 实时查询成功则刷新缓存；失败时回退到缓存，仍没有则返回 ErrNotFound。
func (r *Resolver) ResolveCwd(pid int) (string, error) {
	cwd, err := r.inspector.Cwd(pid)
	if err == nil && cwd != "" {
		r.cache[pid] = cwd
		return cwd, nil
	}

	if cached, ok := r.cache[pid]; ok {
		r.logger.Debug("Using cached cwd", zap.Int("pid", pid), zap.String("cwd", cached), zap.Error(err))
		return cached, nil
	}
	return "", ErrNotFound
}

// Cached 查询缓存，不触发实时查询
func (r *Resolver) Cached(pid int) (string, bool) {
	cwd, ok := r.cache[pid]
	return cwd, ok
}

// Remember 预置缓存条目
func (r *Resolver) Remember(pid int, cwd string) {
	r.cache[pid] = cwd
}

// Len 缓存条目数
func (r *Resolver) Len() int {
	return len(r.cache)
}
