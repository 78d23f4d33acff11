package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/metrics"
)

// Subscriber читает топик в составе consumer group пачками. После обработки
// в каждой партиции коммитится только префикс до первой неудачной доставки,
// а reader пересоздаётся, чтобы неподтверждённые сообщения пришли повторно.
// Сообщение, не обработанное за MaxAttempts попыток, логируется и коммитится.
type Subscriber struct {
	Brokers     []string
	Topic       string
	GroupID     string
	BatchSize   int
	BatchWait   time.Duration
	MaxAttempts int
	Logger      *slog.Logger

	mu     sync.Mutex
	gen    int
	failed map[string]failedEntry
}

// failedEntry — число неудачных попыток и поколение reader'а, в котором была последняя.
type failedEntry struct {
	attempts int
	gen      int
}

// Subscribe запускает цикл чтения в фоне и возвращается сразу.
func (s *Subscriber) Subscribe(ctx context.Context, handler domain.BatchHandler) error {
	if len(s.Brokers) == 0 || s.Topic == "" || s.GroupID == "" {
		return fmt.Errorf("%w: kafka brokers, topic and group id are required", domain.ErrValidation)
	}
	go s.run(ctx, handler)
	return nil
}

func (s *Subscriber) run(ctx context.Context, handler domain.BatchHandler) {
	log := s.logger().With("topic", s.Topic, "group_id", s.GroupID)
	log.InfoContext(ctx, "kafka subscriber started")
	for ctx.Err() == nil {
		r := s.newReader()
		err := s.consume(ctx, r, handler)
		_ = r.Close()
		s.nextGeneration()
		if err != nil && ctx.Err() == nil {
			log.WarnContext(ctx, "kafka reader restarted", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
	log.InfoContext(ctx, "kafka subscriber stopped")
}

var errRedeliver = errors.New("uncommitted deliveries pending")

// consume обрабатывает пачки, пока все доставки успешны.
func (s *Subscriber) consume(ctx context.Context, r *kafkago.Reader, handler domain.BatchHandler) error {
	for {
		batch, err := s.fetchBatch(ctx, r)
		if err != nil {
			return err
		}
		deliveries := make([]domain.Delivery, len(batch))
		attempts := make(map[string]int, len(batch))
		for i, m := range batch {
			deliveries[i] = s.toDelivery(m)
			attempts[deliveries[i].MessageID] = s.attemptsOf(deliveries[i].MessageID)
		}
		failed := s.deadLetter(ctx, handler(ctx, deliveries), attempts)
		s.remember(deliveries, failed)

		if commit := commitPrefix(batch, failed); len(commit) > 0 {
			if err := r.CommitMessages(ctx, commit...); err != nil {
				return fmt.Errorf("kafka commit: %w", err)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%w: %d of %d", errRedeliver, len(failed), len(batch))
		}
	}
}

// fetchBatch ждёт первое сообщение без ограничения, остальные не дольше BatchWait.
func (s *Subscriber) fetchBatch(ctx context.Context, r *kafkago.Reader) ([]kafkago.Message, error) {
	first, err := r.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafkago.Message{first}
	waitCtx, cancel := context.WithTimeout(ctx, s.batchWait())
	defer cancel()
	for len(batch) < s.batchSize() {
		m, err := r.FetchMessage(waitCtx)
		if err != nil {
			break
		}
		batch = append(batch, m)
	}
	return batch, nil
}

func (s *Subscriber) newReader() *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  s.Brokers,
		Topic:    s.Topic,
		GroupID:  s.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  s.batchWait(),
	})
}

func (s *Subscriber) toDelivery(m kafkago.Message) domain.Delivery {
	id := MessageID(m)
	s.mu.Lock()
	_, again := s.failed[id]
	s.mu.Unlock()
	return domain.Delivery{MessageID: id, Body: m.Value, Redelivered: again}
}

func (s *Subscriber) attemptsOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed[id].attempts
}

// deadLetter убирает из failed доставки, исчерпавшие попытки, чтобы
// партиция не блокировалась навсегда. attempts — неудачи до этой пачки.
func (s *Subscriber) deadLetter(ctx context.Context, failed map[string]error, attempts map[string]int) map[string]error {
	for id, err := range failed {
		if attempts[id]+1 < s.maxAttempts() {
			continue
		}
		metrics.DeadLettered.WithLabelValues("kafka").Inc()
		s.logger().ErrorContext(ctx, "delivery dead-lettered", "message_id", id,
			"attempts", attempts[id]+1, "error", err)
		delete(failed, id)
	}
	return failed
}

// remember обновляет счётчики попыток: успешные и отброшенные доставки
// пачки забываются, неудачные получают +1.
func (s *Subscriber) remember(delivered []domain.Delivery, failed map[string]error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = make(map[string]failedEntry)
	}
	for _, d := range delivered {
		if _, bad := failed[d.MessageID]; !bad {
			delete(s.failed, d.MessageID)
		}
	}
	for id := range failed {
		e := s.failed[id]
		s.failed[id] = failedEntry{attempts: e.attempts + 1, gen: s.gen}
	}
}

// nextGeneration вызывается при пересоздании reader'а. Записи, не
// доставленные повторно за два поколения (например, партиция ушла
// другому участнику группы), удаляются.
func (s *Subscriber) nextGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.failed {
		if e.gen < s.gen-1 {
			delete(s.failed, id)
		}
	}
	s.gen++
}

// MessageID — "<topic>-<partition>-<offset>".
func MessageID(m kafkago.Message) string {
	return fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
}

// commitPrefix возвращает для каждой партиции последнее сообщение из
// непрерывного успешного префикса пачки.
func commitPrefix(batch []kafkago.Message, failed map[string]error) []kafkago.Message {
	blocked := make(map[int]bool)
	last := make(map[int]int)
	var order []int
	for i, m := range batch {
		if blocked[m.Partition] {
			continue
		}
		if _, bad := failed[MessageID(m)]; bad {
			blocked[m.Partition] = true
			continue
		}
		if _, seen := last[m.Partition]; !seen {
			order = append(order, m.Partition)
		}
		last[m.Partition] = i
	}
	out := make([]kafkago.Message, 0, len(order))
	for _, p := range order {
		out = append(out, batch[last[p]])
	}
	return out
}

func (s *Subscriber) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return 10
}

func (s *Subscriber) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return 5
}

func (s *Subscriber) batchWait() time.Duration {
	if s.BatchWait > 0 {
		return s.BatchWait
	}
	return time.Second
}

func (s *Subscriber) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

var _ domain.MessageSubscriber = (*Subscriber)(nil)
