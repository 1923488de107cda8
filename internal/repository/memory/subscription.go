package memory

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/bingo-backend/internal/repository"
)

// subscription queues events without bound and hands them to the reader in
// order, so a slow reader never blocks a writer holding the store lock.
type subscription struct {
	mu     sync.Mutex
	queue  []repository.ChangeEvent
	signal chan struct{}

	events chan repository.ChangeEvent
	done   chan struct{}
	once   sync.Once

	unregister func(*subscription)
}

func newSubscription(unregister func(*subscription)) *subscription {
	sub := &subscription{
		signal:     make(chan struct{}, 1),
		events:     make(chan repository.ChangeEvent),
		done:       make(chan struct{}),
		unregister: unregister,
	}

	go sub.pump()

	return sub
}

func (that *subscription) Events() <-chan repository.ChangeEvent {
	return that.events
}

func (that *subscription) Close() error {
	that.once.Do(func() {
		close(that.done)
		that.unregister(that)
	})

	return nil
}

func (that *subscription) closeOnDone(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = that.Close()
	case <-that.done:
	}
}

func (that *subscription) push(event repository.ChangeEvent) {
	that.mu.Lock()
	that.queue = append(that.queue, event)
	that.mu.Unlock()

	select {
	case that.signal <- struct{}{}:
	default:
	}
}

func (that *subscription) pump() {
	defer close(that.events)

	for {
		that.mu.Lock()
		var (
			next repository.ChangeEvent
			ok   bool
		)
		if len(that.queue) > 0 {
			next, ok = that.queue[0], true
			that.queue = that.queue[1:]
		}
		that.mu.Unlock()

		if !ok {
			select {
			case <-that.signal:
				continue
			case <-that.done:
				return
			}
		}

		select {
		case that.events <- next:
		case <-that.done:
			return
		}
	}
}
