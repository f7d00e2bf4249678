package bus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/FloatingGuy/ransomcare/internal/event"
	"github.com/FloatingGuy/ransomcare/internal/log"
)

// DropFunc 队列满时的回调
type DropFunc func(name string, ev event.Event)

// Queued 将慢订阅者放到独立 goroutine 上执行
// 队列有界；队列满时丢弃事件并告警，发布方永远不会被阻塞。
type Queued struct {
	name   string
	next   Subscriber
	ch     chan event.Event
	logger *log.Logger
	onDrop DropFunc

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

// QueuedOption Queued 配置选项
type QueuedOption func(*Queued)

// WithLogger 设置日志器
func WithLogger(logger *log.Logger) QueuedOption {
	return func(q *Queued) {
		q.logger = logger
	}
}

// WithDropFunc 设置丢弃回调（通常用于计数）
func WithDropFunc(fn DropFunc) QueuedOption {
	return func(q *Queued) {
		q.onDrop = fn
	}
}

// NewQueued 创建带有界队列的订阅者
func NewQueued(name string, next Subscriber, size int, opts ...QueuedOption) *Queued {
	if size <= 0 {
		size = 16
	}
	q := &Queued{
		name:   name,
		next:   next,
		ch:     make(chan event.Event, size),
		logger: log.NewNop(),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Handle 实现 Subscriber，只入队不执行
func (q *Queued) Handle(ev event.Event) {
	select {
	case <-q.stopCh:
		return
	default:
	}

	select {
	case q.ch <- ev:
	default:
		q.logger.Warn("Subscriber queue full, dropping event",
			zap.String("subscriber", q.name),
			zap.String("event_type", string(ev.Type())),
			zap.Int("capacity", cap(q.ch)),
		)
		if q.onDrop != nil {
			q.onDrop(q.name, ev)
		}
	}
}

// Start 启动消费 goroutine，重复调用无效
func (q *Queued) Start() {
	q.startOnce.Do(func() {
		go q.run()
	})
}

func (q *Queued) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stopCh:
			return
		case ev := <-q.ch:
			q.next.Handle(ev)
		}
	}
}

// Close 停止消费；队列中尚未处理的事件被丢弃
// 不等待正在执行的 Handle 返回，阻塞中的交互提示不会卡住退出流程。
func (q *Queued) Close() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
	})
}

// Done 消费 goroutine 退出后关闭
func (q *Queued) Done() <-chan struct{} {
	return q.done
}

// Pending 队列中待处理的事件数
func (q *Queued) Pending() int {
	return len(q.ch)
}
