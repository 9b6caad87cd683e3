package live

import (
	"context"
	"sync"

	"smart-fleet/internal/domain/fleet"
)

// Source opens subscriptions to a push topic.
type Source interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription is a live stream of vehicle updates. Updates is closed once
// the subscription ends, either through Close, context cancellation or a
// transport failure (reported by Err).
type Subscription interface {
	Updates() <-chan fleet.Vehicle
	Err() error
	Close() error
}

// stream is the shared bookkeeping of a subscription: one reader goroutine
// owns updates and closes it on exit; done tells it to stop.
type stream struct {
	updates  chan fleet.Vehicle
	done     chan struct{}
	finished chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func newStream() *stream {
	return &stream{
		updates:  make(chan fleet.Vehicle, 64),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (s *stream) Updates() <-chan fleet.Vehicle { return s.updates }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// deliver hands v to the consumer unless the stream is stopping.
func (s *stream) deliver(v fleet.Vehicle) bool {
	select {
	case s.updates <- v:
		return true
	case <-s.done:
		return false
	}
}

func (s *stream) stopping() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// shutdown signals stop once, runs teardown and waits for the reader to exit.
func (s *stream) shutdown(teardown func()) {
	s.closeOnce.Do(func() {
		close(s.done)
		if teardown != nil {
			teardown()
		}
	})
	<-s.finished
}

// watch ties the stream lifetime to ctx.
func (s *stream) watch(ctx context.Context, closeFn func() error) {
	go func() {
		select {
		case <-ctx.Done():
			_ = closeFn()
		case <-s.finished:
		}
	}()
}
