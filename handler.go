package flexcan

import (
	"sync"
)

// eventSource fans flags out to its subscribers. broadcast never blocks,
// so it is safe from interrupt context.
type eventSource struct {
	source EventSource
	subs   map[*Subscriber]struct{}
	mu     sync.RWMutex
}

func newEventSource(source EventSource) *eventSource {
	return &eventSource{
		source: source,
		subs:   make(map[*Subscriber]struct{}),
	}
}

func (es *eventSource) register(sub *Subscriber) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.subs[sub] = struct{}{}
}

func (es *eventSource) unregister(sub *Subscriber) {
	es.mu.Lock()
	defer es.mu.Unlock()
	delete(es.subs, sub)
}

func (es *eventSource) broadcast(flags uint64) {
	if flags == 0 {
		return
	}
	es.mu.RLock()
	defer es.mu.RUnlock()
	for sub := range es.subs {
		if f := flags & sub.mask; f != 0 {
			sub.post(f)
		}
	}
}

func (es *eventSource) len() int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return len(es.subs)
}
