// Package tracer 管理外部 tracing agent 子进程的生命周期
//
// agent 在自己的进程组中运行，标准输出按行读取并交给关联器，
// 标准错误丢弃。停止时向整个进程组发送 SIGTERM，agent 派生的子进程一并结束。
package tracer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/FloatingGuy/ransomcare/internal/correlator"
	"github.com/FloatingGuy/ransomcare/internal/event"
	"github.com/FloatingGuy/ransomcare/internal/log"
	"github.com/FloatingGuy/ransomcare/internal/metrics"
)

// 错误定义
var (
	ErrAlreadyStarted = errors.New("tracing agent already started")
	ErrStopped        = errors.New("tracing agent manager already stopped")
	ErrNotSupported   = errors.New("not supported on this platform")
)

// 日志中保留的原始行最大长度
const maxLoggedLine = 256

// Config agent 启动配置
type Config struct {
	Binary      string   // agent 可执行文件
	Args        []string // 额外参数
	ExcludeFlag string   // 排除自身 pid 的参数名
	SelfPID     int      // 需要排除的 pid，默认为当前进程
}

// RecordHandler 原始记录处理者（通常是关联器）
type RecordHandler interface {
	Correlate(rec correlator.RawRecord) (event.Event, bool)
}

// StateFunc agent 运行状态变化回调
type StateFunc func(running bool)

// Manager agent 生命周期管理器
type Manager struct {
	cfg     Config
	handler RecordHandler
	logger  *log.Logger
	metrics *metrics.Metrics
	onState StateFunc

	// 向进程组发送终止信号，测试中可替换
	signal func(pgid int) error

	mu       sync.Mutex
	cmd      *exec.Cmd
	pgid     int
	started  bool
	stopping bool
	exited   bool
	done     chan struct{}
}

// Option Manager 配置选项
type Option func(*Manager)

// WithLogger 设置日志器
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics 设置指标
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithStateFunc 设置运行状态回调
func WithStateFunc(fn StateFunc) Option {
	return func(m *Manager) {
		m.onState = fn
	}
}

// NewManager 创建 agent 管理器
func NewManager(cfg Config, handler RecordHandler, opts ...Option) *Manager {
	if cfg.ExcludeFlag == "" {
		cfg.ExcludeFlag = "-x"
	}
	if cfg.SelfPID <= 0 {
		cfg.SelfPID = os.Getpid()
	}

	m := &Manager{
		cfg:     cfg,
		handler: handler,
		logger:  log.NewNop(),
		signal:  terminateGroup,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Argv 返回 agent 的完整命令行
func (m *Manager) Argv() []string {
	argv := make([]string, 0, len(m.cfg.Args)+3)
	argv = append(argv, m.cfg.Binary)
	argv = append(argv, m.cfg.Args...)
	return append(argv, m.cfg.ExcludeFlag, strconv.Itoa(m.cfg.SelfPID))
}

// Start 启动 agent 并开始读循环
// 启动失败直接返回错误；重复调用返回 ErrAlreadyStarted，Stop 之后调用返回 ErrStopped。
// ctx 取消时自动调用 Stop。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	if m.stopping {
		m.mu.Unlock()
		return ErrStopped
	}

	argv := m.Argv()
	cmd := exec.Command(argv[0], argv[1:]...)
	// Stderr 为 nil 时连接到空设备
	cmd.Stderr = nil
	cmd.SysProcAttr = newProcAttr()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("create agent stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("spawn tracing agent %s: %w", argv[0], err)
	}

	m.cmd = cmd
	m.pgid = processGroup(cmd.Process.Pid)
	m.started = true
	m.mu.Unlock()

	m.logger.Info("Tracing agent started",
		zap.Strings("argv", argv),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("pgid", m.pgid),
		zap.Int("excluded_pid", m.cfg.SelfPID),
	)
	m.setRunning(true)

	go m.run(stdout)
	go func() {
		select {
		case <-ctx.Done():
			if err := m.Stop(); err != nil {
				m.logger.Error("Failed to stop tracing agent", zap.Error(err))
			}
		case <-m.done:
		}
	}()
	return nil
}

func (m *Manager) run(stdout io.Reader) {
	defer close(m.done)

	if err := m.Consume(stdout); err != nil {
		m.logger.Warn("Agent output read failed", zap.Error(err))
	}

	// 读完之后才能 Wait，Wait 会关闭 stdout 管道
	err := m.cmd.Wait()

	m.mu.Lock()
	m.exited = true
	stopping := m.stopping
	m.mu.Unlock()
	m.setRunning(false)

	if err != nil && !stopping {
		m.logger.Warn("Tracing agent exited unexpectedly", zap.Error(err))
		return
	}
	m.logger.Info("Tracing agent exited")
}

// Consume 逐行读取 agent 输出并交给关联器
// 空行跳过；解码失败记录告警后继续；EOF 或停止请求时正常返回。
func (m *Manager) Consume(r io.Reader) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		if m.stopRequested() {
			m.logger.Debug("Read loop stopped")
			return nil
		}

		line, err := br.ReadBytes('\n')
		m.handleLine(line)

		if err != nil {
			if errors.Is(err, io.EOF) {
				m.logger.Info("Tracing agent output closed")
				return nil
			}
			if m.stopRequested() {
				return nil
			}
			return fmt.Errorf("read agent output: %w", err)
		}
	}
}

func (m *Manager) handleLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	m.metrics.RecordRead()

	rec, err := correlator.DecodeRecord(line)
	if err != nil {
		m.metrics.DecodeError()
		if len(line) > maxLoggedLine {
			line = line[:maxLoggedLine]
		}
		m.logger.Warn("Failed to decode agent record", zap.ByteString("line", line), zap.Error(err))
		return
	}
	m.handler.Correlate(rec)
}

// Stop 停止 agent，可重复调用
// agent 仍在运行时向其进程组发送一次 SIGTERM，读循环随管道关闭退出。
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	if !m.started || m.exited {
		m.mu.Unlock()
		return nil
	}
	pgid := m.pgid
	m.mu.Unlock()

	m.logger.Info("Stopping tracing agent", zap.Int("pgid", pgid))
	if err := m.signal(pgid); err != nil {
		return fmt.Errorf("terminate agent process group %d: %w", pgid, err)
	}
	return nil
}

// Done 读循环退出且 agent 被回收后关闭
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Running agent 是否在运行
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.exited
}

func (m *Manager) stopRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopping
}

func (m *Manager) setRunning(running bool) {
	m.metrics.SetTracerRunning(running)
	if m.onState != nil {
		m.onState(running)
	}
}
