// Package slot provides a single item mailbox which always hands its reader
// the freshest value written to it.
//
// Writers never block. When a value is written while a previous one is still
// unread, the previous value is dropped (and passed to the drop callback so
// that resources like video frames can be released) rather than queued.
package slot

import (
	"sync"
	"sync/atomic"
	"time"
)

type Latest[T any] struct {
	mu     sync.Mutex
	ch     chan T
	onDrop func(T)
	puts   uint64
	drops  uint64
}

// New creates an empty slot. onDrop may be nil.
func New[T any](onDrop func(T)) *Latest[T] {
	return &Latest[T]{ch: make(chan T, 1), onDrop: onDrop}
}

// Put stores v, discarding any unread value already held.
func (s *Latest[T]) Put(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	atomic.AddUint64(&s.puts, 1)
	select {
	case old := <-s.ch:
		atomic.AddUint64(&s.drops, 1)
		s.drop(old)
	default:
	}
	// the channel is empty and only Put sends under mu, so this never blocks
	s.ch <- v
}

// Get waits up to timeout for a value. A timeout of zero or less only
// checks for a value already present.
func (s *Latest[T]) Get(timeout time.Duration) (T, bool) {
	var zero T
	if timeout <= 0 {
		select {
		case v := <-s.ch:
			return v, true
		default:
			return zero, false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-s.ch:
		return v, true
	case <-timer.C:
		return zero, false
	}
}

// Drain drops whatever unread value the slot holds.
func (s *Latest[T]) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case old := <-s.ch:
		s.drop(old)
	default:
	}
}

// Puts is the number of values ever written.
func (s *Latest[T]) Puts() uint64 { return atomic.LoadUint64(&s.puts) }

// Drops is the number of values overwritten before anybody read them.
func (s *Latest[T]) Drops() uint64 { return atomic.LoadUint64(&s.drops) }

func (s *Latest[T]) drop(v T) {
	if s.onDrop != nil {
		s.onDrop(v)
	}
}
