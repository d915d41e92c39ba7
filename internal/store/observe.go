package store

import (
	"log"
	"sync"
)

// notifier fans committed-write notifications out to subscriptions.
// Subscribers register the set of tables their query reads; a write to
// any of those tables triggers a recomputation.
type notifier struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

type subscriber struct {
	tables map[string]bool
	wake   chan struct{} // buffered(1): coalesces bursts of writes
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]*subscriber)}
}

func (n *notifier) subscribe(tables []string) (int, *subscriber) {
	sub := &subscriber{tables: make(map[string]bool, len(tables)), wake: make(chan struct{}, 1)}
	for _, t := range tables {
		sub.tables[t] = true
	}
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = sub
	n.mu.Unlock()
	return id, sub
}

func (n *notifier) unsubscribe(id int) {
	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
}

func (n *notifier) notify(tables ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		for _, t := range tables {
			if sub.tables[t] {
				select {
				case sub.wake <- struct{}{}:
				default: // already pending; results are recomputed, not queued
				}
				break
			}
		}
	}
}

func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, sub := range n.subs {
		close(sub.wake)
		delete(n.subs, id)
	}
}

// Subscription delivers fresh query results on C whenever an underlying
// table changes. Lifecycle is explicit: results flow until Close is
// called (or the store is closed); there is no implicit teardown when a
// receiver stops reading, so an abandoned subscription must be Closed.
type Subscription[T any] struct {
	C <-chan []T

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// Close cancels the subscription and closes C once the delivery goroutine
// has drained. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// Watch runs query immediately, delivers the initial result on the
// subscription channel, then re-runs and re-delivers it after every
// committed write touching one of tables. Delivery keeps only the latest
// result: a slow receiver sees the freshest rows, not every intermediate
// state. Query errors after the initial run are logged and skipped.
func Watch[T any](s *Store, tables []string, query func() ([]T, error)) (*Subscription[T], error) {
	initial, err := query()
	if err != nil {
		return nil, err
	}
	id, sub := s.notifier.subscribe(tables)

	out := make(chan []T, 1)
	w := &Subscription[T]{C: out, stop: make(chan struct{}), done: make(chan struct{})}
	out <- initial

	go func() {
		defer close(w.done)
		defer close(out)
		defer s.notifier.unsubscribe(id)
		for {
			select {
			case <-w.stop:
				return
			case _, ok := <-sub.wake:
				if !ok {
					return
				}
				rows, err := query()
				if err != nil {
					log.Printf("[WATCH] recompute failed: %v", err)
					continue
				}
				// Replace any undelivered result with the fresh one.
				select {
				case <-out:
				default:
				}
				select {
				case out <- rows:
				case <-w.stop:
					return
				}
			}
		}
	}()
	return w, nil
}
