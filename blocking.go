package flexcan

import (
	"context"
	"time"
)

// TransmitWait queues f, waiting for the selected mailbox to become free.
// The wait ends with a *TimeoutError when ctx is done first.
func (d *Driver) TransmitWait(ctx context.Context, sel Mailbox, f *Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	start := time.Now()
	for {
		d.mu.Lock()
		if err := d.readyLocked(); err != nil {
			d.mu.Unlock()
			return err
		}
		if !d.table.Valid(sel, true) || d.table.TransmitReady(sel) {
			err := d.transmitLocked(sel, f)
			d.mu.Unlock()
			return err
		}
		wake := d.txQueue.wait()
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return timeoutError(ctx, start, "transmit", sel)
		case <-wake:
		}
	}
}

// ReceiveWait waits for a frame in the selected mailbox and returns it.
// The wait ends with a *TimeoutError when ctx is done first.
func (d *Driver) ReceiveWait(ctx context.Context, sel Mailbox) (Frame, error) {
	var f Frame
	start := time.Now()
	for {
		d.mu.Lock()
		if err := d.readyLocked(); err != nil {
			d.mu.Unlock()
			return f, err
		}
		if !d.table.Valid(sel, false) || d.table.ReceiveReady(sel) {
			err := d.receiveLocked(sel, &f)
			d.mu.Unlock()
			return f, err
		}
		wake := d.rxQueue.wait()
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return f, timeoutError(ctx, start, "receive", sel)
		case <-wake:
		}
	}
}

func timeoutError(ctx context.Context, start time.Time, kind string, sel Mailbox) error {
	e := &TimeoutError{
		Mailbox: sel.String(),
		Type:    kind,
		Err:     ctx.Err(),
	}
	if deadline, ok := ctx.Deadline(); ok {
		e.Timeout = deadline.Sub(start)
	}
	return e
}
