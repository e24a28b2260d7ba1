package cache

import (
	"context"
	"sync"
)

// Store is an in-memory, append-only-by-batch store of elements exposed
// as an observable collection. Batches appended via Append are
// concatenated onto the current list, and every subscriber obtained from
// All receives the full updated snapshot after each non-empty append, in
// append order. The list is never deduplicated: a record loaded by two
// overlapping pages appears twice.
type Store[E any] struct {
	mu     sync.Mutex
	items  []E
	subs   map[int]*subscriber[E]
	nextID int
}

// subscriber holds the ordered backlog of snapshots still to be delivered
// to one All channel.
type subscriber[E any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]E
	closed bool
}

// NewStore creates an empty store.
func NewStore[E any]() *Store[E] {
	return &Store[E]{
		subs: make(map[int]*subscriber[E]),
	}
}

// Append concatenates elements onto the stored list and delivers the
// updated snapshot to every current subscriber. Appending an empty batch
// is a no-op and produces no emission.
func (s *Store[E]) Append(elements []E) {
	if len(elements) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, elements...)
	snapshot := s.snapshotLocked()
	for _, sub := range s.subs {
		sub.push(snapshot)
	}
}

// Snapshot returns a copy of the current full list.
func (s *Store[E]) Snapshot() []E {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of stored elements.
func (s *Store[E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// All subscribes to the store. The returned channel emits the current
// full list immediately (even if empty) and then the updated full list
// once after every non-empty Append. Snapshots are delivered to each
// subscriber in append order with no skips. The subscription ends and the
// channel is closed when ctx is done.
func (s *Store[E]) All(ctx context.Context) <-chan []E {
	out := make(chan []E)

	sub := &subscriber[E]{}
	sub.cond = sync.NewCond(&sub.mu)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	sub.queue = append(sub.queue, s.snapshotLocked())
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()
		sub.cond.Broadcast()
	})

	go func() {
		defer func() {
			stop()
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(out)
		}()

		for {
			sub.mu.Lock()
			for len(sub.queue) == 0 && !sub.closed {
				sub.cond.Wait()
			}
			if sub.closed {
				sub.mu.Unlock()
				return
			}
			snapshot := sub.queue[0]
			sub.queue = sub.queue[1:]
			sub.mu.Unlock()

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (s *Store[E]) snapshotLocked() []E {
	snapshot := make([]E, len(s.items))
	copy(snapshot, s.items)
	return snapshot
}

func (sub *subscriber[E]) push(snapshot []E) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, snapshot)
	sub.mu.Unlock()
	sub.cond.Signal()
}
