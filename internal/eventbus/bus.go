// Package eventbus is an in-memory fan-out of small activity events.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topics published by the logger and the notifier.
const (
	LoggerTruncated = "logger.truncated"
	LoggerFlushed   = "logger.flushed"
	NotifyQueued    = "notify.queued"
	NotifySent      = "notify.sent"
	NotifyFailed    = "notify.failed"
	NotifyDeduped   = "notify.deduped"
	NotifyDropped   = "notify.dropped"
)

// Event is one signal on the bus. Data should be small and
// JSON-serializable.
//
// Contract:
//   - Publish never blocks.
//   - Subscribers get buffered channels; a full channel drops the event.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			// Publish holds the read lock while sending, so closing under
			// the write lock cannot race a send.
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}
