// Package observable provides small change-notification primitives:
// a mutable cell whose updates can be watched, and a payload-free
// signal for one-shot notifications. Both are safe for concurrent use.
package observable

import "sync"

// Value is a mutable cell with change notification. Each Set publishes
// the new value to every subscriber. Publishing never blocks: a
// subscriber that falls behind loses intermediate values and only sees
// the most recent one (last-write-wins).
type Value[T any] struct {
	mu   sync.RWMutex
	val  T
	subs map[int]chan T
	next int
}

// NewValue creates a cell holding the given initial value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		val:  initial,
		subs: make(map[int]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.val
}

// Set stores val and notifies all subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	v.val = val
	for _, ch := range v.subs {
		// Drain a stale value if the subscriber hasn't caught up, then
		// deliver the fresh one. Keeps the channel holding the latest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- val:
		default:
		}
	}
	v.mu.Unlock()
}

// Subscribe registers a watcher and returns a channel carrying updates
// plus a cancel function. The channel is closed on cancel. The current
// value is not replayed; only updates after Subscribe are delivered.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	id := v.next
	v.next++
	ch := make(chan T, 1)
	v.subs[id] = ch
	v.mu.Unlock()

	cancel := func() {
		v.mu.Lock()
		if c, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(c)
		}
		v.mu.Unlock()
	}
	return ch, cancel
}

// Signal is a payload-free notification fan-out, used for events like
// "ready" and "ended" where only the occurrence matters.
type Signal struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

// NewSignal creates an empty signal.
func NewSignal() *Signal {
	return &Signal{subs: make(map[int]chan struct{})}
}

// Notify wakes all subscribers. A subscriber that has not consumed the
// previous notification is not queued a second one.
func (s *Signal) Notify() {
	s.mu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}

// Subscribe registers a watcher and returns its channel plus a cancel
// function. The channel is closed on cancel.
func (s *Signal) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
