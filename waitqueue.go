package flexcan

// waitQueue wakes every waiter at once. A waiter takes the current
// channel while holding the driver lock, drops the lock and blocks on the
// channel; broadcast closes it and installs a fresh one. Waiters re-check
// availability after waking, a wakeup is no promise of a free mailbox.
//
// Callers must hold Driver.mu for both wait and broadcast.
type waitQueue struct {
	ch chan struct{}
}

func newWaitQueue() *waitQueue {
	return &waitQueue{ch: make(chan struct{})}
}

func (q *waitQueue) wait() <-chan struct{} {
	return q.ch
}

func (q *waitQueue) broadcast() {
	close(q.ch)
	q.ch = make(chan struct{})
}
