// Package membus — шина событий в памяти процесса с семантикой at-least-once.
package membus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/metrics"
)

var ErrAlreadySubscribed = errors.New("membus: subscriber already registered")

// Bus хранит неподтверждённые сообщения в очереди. Доставки, для которых
// обработчик вернул ошибку, возвращаются в очередь после RedeliveryDelay,
// но не более MaxAttempts попыток всего.
type Bus struct {
	RedeliveryDelay time.Duration
	BatchSize       int
	MaxAttempts     int
	Logger          *slog.Logger

	mu         sync.Mutex
	queue      []domain.Delivery
	attempts   map[string]int
	scheduled  int
	subscribed bool
	notify     chan struct{}
	seq        atomic.Uint64
}

func New() *Bus {
	return &Bus{notify: make(chan struct{}, 1)}
}

func (b *Bus) Publish(ctx context.Context, env domain.Envelope) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublish, err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: marshal envelope: %v", domain.ErrPublish, err)
	}
	id := "membus-" + strconv.FormatUint(b.seq.Add(1), 10)
	b.enqueue(domain.Delivery{MessageID: id, Body: raw})
	return nil
}

// Subscribe запускает доставку в фоне; допускается один обработчик.
func (b *Bus) Subscribe(ctx context.Context, handler domain.BatchHandler) error {
	b.mu.Lock()
	if b.subscribed {
		b.mu.Unlock()
		return ErrAlreadySubscribed
	}
	b.subscribed = true
	b.mu.Unlock()
	go b.dispatch(ctx, handler)
	return nil
}

// Pending — число сообщений, ожидающих доставки или повтора.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) + b.scheduled
}

func (b *Bus) dispatch(ctx context.Context, handler domain.BatchHandler) {
	for {
		batch := b.take()
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-b.notify:
				continue
			}
		}
		failed := handler(ctx, batch)
		for _, d := range batch {
			err, ok := failed[d.MessageID]
			n := b.settle(d.MessageID, ok)
			switch {
			case !ok:
			case n >= b.maxAttempts():
				metrics.DeadLettered.WithLabelValues("memory").Inc()
				b.logger().ErrorContext(ctx, "delivery dead-lettered", "message_id", d.MessageID, "attempts", n, "error", err)
			default:
				b.logger().WarnContext(ctx, "delivery scheduled for redelivery", "message_id", d.MessageID, "error", err)
				b.redeliverLater(d)
			}
		}
	}
}

// settle возвращает число неудачных попыток доставки; успешные и
// исчерпавшие лимит доставки забываются.
func (b *Bus) settle(id string, failed bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !failed {
		delete(b.attempts, id)
		return 0
	}
	if b.attempts == nil {
		b.attempts = make(map[string]int)
	}
	b.attempts[id]++
	n := b.attempts[id]
	if n >= b.maxAttempts() {
		delete(b.attempts, id)
	}
	return n
}

func (b *Bus) take() []domain.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := min(len(b.queue), b.batchSize())
	batch := append([]domain.Delivery(nil), b.queue[:n]...)
	b.queue = b.queue[n:]
	return batch
}

func (b *Bus) enqueue(d domain.Delivery) {
	b.mu.Lock()
	b.queue = append(b.queue, d)
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *Bus) redeliverLater(d domain.Delivery) {
	d.Redelivered = true
	b.mu.Lock()
	b.scheduled++
	b.mu.Unlock()
	time.AfterFunc(b.RedeliveryDelay, func() {
		b.mu.Lock()
		b.scheduled--
		b.mu.Unlock()
		b.enqueue(d)
	})
}

func (b *Bus) maxAttempts() int {
	if b.MaxAttempts > 0 {
		return b.MaxAttempts
	}
	return 5
}

func (b *Bus) batchSize() int {
	if b.BatchSize > 0 {
		return b.BatchSize
	}
	return 10
}

func (b *Bus) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

var (
	_ domain.EventPublisher    = (*Bus)(nil)
	_ domain.MessageSubscriber = (*Bus)(nil)
)
