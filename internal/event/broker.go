// Package event はプロセス内のpublish/subscribeを提供する。
package event

import (
	"log/slog"
	"sync"
)

// Broker は型Tのイベントを購読者に配信する。
// Publishはブロックせず、バッファが満杯の購読者への配信は破棄する。
// 1購読者に届くイベントの順序はPublishの呼び出し順と一致する。
type Broker[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]chan T
	next   uint64
	closed bool
	name   string
	logger *slog.Logger
}

// NewBroker は新しいBrokerを生成する。nameはログ出力に使う。
func NewBroker[T any](name string, logger *slog.Logger) *Broker[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker[T]{
		subs:   make(map[uint64]chan T),
		name:   name,
		logger: logger,
	}
}

// Subscribe は購読を開始する。返される関数で購読を解除するとチャネルは閉じられる。
// Close済みのBrokerでは閉じたチャネルを返す。
func (b *Broker[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan T, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish はイベントを全購読者に配信する。
func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- v:
		default:
			b.logger.Warn("購読者のバッファが満杯のためイベントを破棄しました",
				slog.String("broker", b.name),
				slog.Uint64("subscriber", id),
			)
		}
	}
}

// Len は現在の購読者数を返す。
func (b *Broker[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close は全購読者のチャネルを閉じ、以降のPublishを無視する。
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
