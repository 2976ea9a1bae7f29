package queue

import (
	"sync"

	"github.com/scriptgate/scriptgate/internal/shared/types"
)

// Subscription is one observer's view of the stats feed. Close must be
// called when the observer goes away; it is safe to call twice.
type Subscription struct {
	C <-chan types.QueueStats

	id   uint64
	ch   chan types.QueueStats
	b    *broadcaster
	once sync.Once
}

// Close detaches the subscription and releases its buffer.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.unsubscribe(s.id)
	})
}

// broadcaster fans stats snapshots out to any number of observers.
// Delivery is decoupled from the admission path: each subscriber has a
// single-slot buffer and a stalled observer has stale snapshots
// replaced rather than back-pressuring the producer.
type broadcaster struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]chan types.QueueStats
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]chan types.QueueStats)}
}

// subscribe registers a new observer and seeds its buffer with initial
// so reconnecting observers resume from the current state.
func (b *broadcaster) subscribe(initial types.QueueStats) *Subscription {
	ch := make(chan types.QueueStats, 1)
	ch <- initial

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = ch
	b.mu.Unlock()

	return &Subscription{C: ch, id: id, ch: ch, b: b}
}

func (b *broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// publish offers the snapshot to every subscriber without blocking.
// A full buffer is drained first so a slow observer sees the latest
// snapshot instead of a stale one (latest-wins coalescing).
func (b *broadcaster) publish(s types.QueueStats) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// count reports the number of live subscriptions.
func (b *broadcaster) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
