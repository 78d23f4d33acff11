package usecase

import (
	"sync/atomic"
	"time"
)

// MonotonicClock выдаёт строго возрастающие миллисекунды в пределах процесса,
// поэтому две обработки одного события не получают одинаковый sort key.
type MonotonicClock struct {
	now  func() time.Time
	last atomic.Int64
}

func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

func (c *MonotonicClock) Now() time.Time {
	for {
		prev := c.last.Load()
		ms := c.now().UnixMilli()
		if ms <= prev {
			ms = prev + 1
		}
		if c.last.CompareAndSwap(prev, ms) {
			return time.UnixMilli(ms)
		}
	}
}
