package flexcan

import (
	"context"
	"fmt"
	"sync"
)

// Subscriber receives the flags of one event source. Flags posted while
// nobody waits are OR-ed together and handed out by the next Wait.
type Subscriber struct {
	src    *eventSource
	mask   uint64
	mu     sync.Mutex
	flags  uint64
	signal chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func newSubscriber(src *eventSource, mask uint64) *Subscriber {
	if mask == 0 {
		mask = ^uint64(0)
	}
	return &Subscriber{
		src:    src,
		mask:   mask,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *Subscriber) post(flags uint64) {
	s.mu.Lock()
	s.flags |= flags
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Source returns the event source the subscriber listens to.
func (s *Subscriber) Source() EventSource {
	return s.src.source
}

// C is signalled whenever new flags are pending.
func (s *Subscriber) C() <-chan struct{} {
	return s.signal
}

// Flags returns and clears the pending flags.
func (s *Subscriber) Flags() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flags
	s.flags = 0
	return f
}

// Wait blocks until flags are pending, the subscriber is closed or ctx
// is done.
func (s *Subscriber) Wait(ctx context.Context) (uint64, error) {
	for {
		if f := s.Flags(); f != 0 {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%s: %w", s.src.source, ctx.Err())
		case <-s.done:
			return 0, ErrSubscriberClosed
		case <-s.signal:
		}
	}
}

// Event waits like Wait and wraps the result.
func (s *Subscriber) Event(ctx context.Context) (Event, error) {
	f, err := s.Wait(ctx)
	return Event{Source: s.src.source, Flags: f}, err
}

func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.src.unregister(s)
		close(s.done)
	})
}
