// Package bus 提供类型化事件的同步广播
package bus

import (
	"sync"

	"github.com/FloatingGuy/ransomcare/internal/event"
)

// Subscriber 事件订阅者
type Subscriber interface {
	Handle(ev event.Event)
}

// SubscriberFunc 函数适配为 Subscriber
type SubscriberFunc func(ev event.Event)

// Handle 实现 Subscriber
func (f SubscriberFunc) Handle(ev event.Event) { f(ev) }

// SubscriptionID 订阅标识，用于取消订阅
type SubscriptionID uint64

type subscription struct {
	id  SubscriptionID
	sub Subscriber
}

// Bus 事件总线
// Publish 在调用方 goroutine 上按注册顺序同步投递，不缓冲也不持久化。
// 订阅和取消订阅可以与 Publish 并发进行。
type Bus struct {
	mu     sync.RWMutex
	nextID SubscriptionID
	subs   []subscription
}

// New 创建事件总线
func New() *Bus {
	return &Bus{}
}

// Subscribe 注册订阅者
func (b *Bus) Subscribe(s Subscriber) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs = append(b.subs, subscription{id: b.nextID, sub: s})
	return b.nextID
}

// Unsubscribe 取消订阅，id 不存在时返回 false
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			// 重新分配切片，正在进行的 Publish 持有的快照不受影响
			subs := make([]subscription, 0, len(b.subs)-1)
			subs = append(subs, b.subs[:i]...)
			b.subs = append(subs, b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len 当前订阅者数量
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish 向所有订阅者投递事件
func (b *Bus) Publish(ev event.Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		s.sub.Handle(ev)
	}
}
