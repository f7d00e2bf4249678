package decision

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FloatingGuy/ransomcare/internal/event"
	"github.com/FloatingGuy/ransomcare/internal/log"
	"github.com/FloatingGuy/ransomcare/internal/metrics"
)

// State 裁决状态机
type State int32

const (
	// StateIdle 空闲
	StateIdle State = iota
	// StateAwaitingInput 等待裁决
	StateAwaitingInput
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting_input"
	default:
		return "unknown"
	}
}

// Publisher 裁决事件的发布方
type Publisher interface {
	Publish(ev event.Event)
}

// Handler 订阅 AskUserAllowOrDeny 并发布 AllowProcess/DenyProcess
// Handle 会阻塞到裁决完成，接入总线时应包一层 bus.Queued。
type Handler struct {
	provider Provider
	pub      Publisher
	logger   *log.Logger
	metrics  *metrics.Metrics
	ctx      context.Context
	state    atomic.Int32
}

// Option Handler 配置选项
type Option func(*Handler)

// WithLogger 设置日志器
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithContext 设置裁决使用的上下文，取消后挂起的提示立即返回
func WithContext(ctx context.Context) Option {
	return func(h *Handler) {
		h.ctx = ctx
	}
}

// NewHandler 创建裁决处理器
func NewHandler(provider Provider, pub Publisher, opts ...Option) *Handler {
	h := &Handler{
		provider: provider,
		pub:      pub,
		logger:   log.NewNop(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State 返回当前状态
func (h *Handler) State() State {
	return State(h.state.Load())
}

// Handle 实现 bus.Subscriber
func (h *Handler) Handle(ev event.Event) {
	ask, ok := ev.(event.AskUserAllowOrDeny)
	if !ok {
		return
	}

	h.state.Store(int32(StateAwaitingInput))
	defer h.state.Store(int32(StateIdle))

	req := Request{
		ID:      uuid.New().String(),
		Process: ask.Process,
		Path:    ask.Path,
	}
	logger := h.logger.With(
		zap.String("prompt_id", req.ID),
		zap.Int("pid", req.Process.PID),
		zap.String("path", req.Path),
	)
	logger.Info("Awaiting verdict for suspicious process")

	verdict, err := h.provider.Decide(h.ctx, req)
	if err != nil {
		logger.Error("Failed to obtain verdict", zap.Error(err))
		return
	}

	h.metrics.Verdict(verdict.String())
	logger.Info("Verdict made", zap.String("verdict", verdict.String()))

	switch verdict {
	case VerdictAllow:
		h.pub.Publish(event.AllowProcess{Process: ask.Process})
	default:
		h.pub.Publish(event.DenyProcess{Process: ask.Process})
	}
}
