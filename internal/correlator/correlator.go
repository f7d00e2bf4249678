// Package correlator 将原始系统调用记录关联为类型化文件事件
//
// 每个 (pid, fd) 只有两种状态：absent 和 active。open 进入 active，
// close/unlink 回到 absent，read/write/listdir 只读取状态。
// 无法关联的记录直接丢弃：监控是尽力而为的，宁缺毋滥。
package correlator

import (
	"go.uber.org/zap"

	"github.com/FloatingGuy/ransomcare/internal/event"
	"github.com/FloatingGuy/ransomcare/internal/log"
	"github.com/FloatingGuy/ransomcare/internal/metrics"
)

// PathResolver 将进程相对路径解析为绝对路径
type PathResolver interface {
	Resolve(pid int, raw string) (string, error)
}

// Publisher 事件发布
type Publisher interface {
	Publish(ev event.Event)
}

// Correlator 事件关联器
type Correlator struct {
	table   *Table
	paths   PathResolver
	pub     Publisher
	logger  *log.Logger
	metrics *metrics.Metrics
}

// Option Correlator 配置选项
type Option func(*Correlator)

// WithLogger 设置日志器
func WithLogger(logger *log.Logger) Option {
	return func(c *Correlator) {
		c.logger = logger
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Correlator) {
		c.metrics = m
	}
}

// New 创建关联器
func New(paths PathResolver, pub Publisher, opts ...Option) *Correlator {
	c := &Correlator{
		table:  NewTable(),
		paths:  paths,
		pub:    pub,
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Table 返回描述符表
func (c *Correlator) Table() *Table {
	return c.table
}

// Correlate 处理一条原始记录
// 生成事件时发布并返回 (事件, true)；记录被丢弃时返回 (nil, false)。
func (c *Correlator) Correlate(rec RawRecord) (event.Event, bool) {
	if rec.FD == nil {
		c.drop(rec, metrics.DropMissingField)
		return nil, false
	}
	fd := *rec.FD

	var ev event.Event
	switch rec.Action {
	case ActionOpen:
		path, err := c.paths.Resolve(rec.PID, rec.path())
		if err != nil {
			c.drop(rec, metrics.DropUnresolvable)
			return nil, false
		}
		c.table.Open(rec.PID, fd, path)
		ev = event.FileOpen{Timestamp: rec.T, PID: rec.PID, Path: path}

	case ActionClose, ActionUnlink:
		path, ok := c.table.Remove(rec.PID, fd)
		if !ok {
			c.drop(rec, metrics.DropUnknownDescriptor)
			return nil, false
		}
		if rec.Action == ActionClose {
			ev = event.FileClose{Timestamp: rec.T, PID: rec.PID, Path: path}
		} else {
			ev = event.FileUnlink{Timestamp: rec.T, PID: rec.PID, Path: path}
		}

	case ActionRead, ActionWrite, ActionListDir:
		path, ok := c.table.Lookup(rec.PID, fd)
		if !ok {
			c.drop(rec, metrics.DropUnknownDescriptor)
			return nil, false
		}
		switch rec.Action {
		case ActionRead:
			ev = event.FileRead{Timestamp: rec.T, PID: rec.PID, Path: path, Size: rec.size()}
		case ActionWrite:
			ev = event.FileWrite{Timestamp: rec.T, PID: rec.PID, Path: path, Size: rec.size()}
		default:
			ev = event.ListDir{Timestamp: rec.T, PID: rec.PID, Path: path}
		}

	default:
		c.drop(rec, metrics.DropUnknownAction)
		return nil, false
	}

	c.metrics.SetOpenDescriptors(c.table.Len())
	c.pub.Publish(ev)
	return ev, true
}

func (c *Correlator) drop(rec RawRecord, reason string) {
	c.metrics.RecordDropped(reason)
	fields := []zap.Field{
		zap.String("reason", reason),
		zap.String("action", string(rec.Action)),
		zap.Int("pid", rec.PID),
	}
	if rec.FD != nil {
		fields = append(fields, zap.Int("fd", *rec.FD))
	}
	c.logger.Debug("Record dropped", fields...)
}
