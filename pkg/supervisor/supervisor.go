// Package supervisor restarts a driver that went bus off.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/roffe/flexcan"
	"github.com/roffe/flexcan/pkg/status"
)

type Recoverer interface {
	Recover(context.Context) error
}

// Waiter yields error flags, *flexcan.Subscriber implements it.
type Waiter interface {
	Wait(context.Context) (uint64, error)
}

type Supervisor struct {
	dev        Recoverer
	attempts   uint
	delay      time.Duration
	onMessage  func(string)
	recoveries uint64
}

type Option func(*Supervisor)

func WithAttempts(n uint) Option {
	return func(s *Supervisor) {
		s.attempts = n
	}
}

// WithDelay sets the pause before the first retry. Later retries back
// off from it.
func WithDelay(d time.Duration) Option {
	return func(s *Supervisor) {
		s.delay = d
	}
}

func WithOnMessage(fn func(string)) Option {
	return func(s *Supervisor) {
		s.onMessage = fn
	}
}

func New(dev Recoverer, opts ...Option) *Supervisor {
	s := &Supervisor{
		dev:      dev,
		attempts: 5,
		delay:    50 * time.Millisecond,
		onMessage: func(msg string) {
			log.Println(msg)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recoveries returns the number of recoveries this supervisor performed.
func (s *Supervisor) Recoveries() uint64 {
	return atomic.LoadUint64(&s.recoveries)
}

// Recover restarts the device, retrying while it stays bus off. When all
// attempts fail the returned error is unrecoverable.
func (s *Supervisor) Recover(ctx context.Context) error {
	recovered := false
	err := retry.Do(func() error {
		err := s.dev.Recover(ctx)
		switch {
		case err == nil:
			recovered = true
		case errors.Is(err, flexcan.ErrInvalidState):
			// Someone else brought it back already.
			return nil
		}
		return err
	},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.OnRetry(func(n uint, err error) {
			s.onMessage(fmt.Sprintf("recovery retry #%d: %v", n, err))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return flexcan.Unrecoverable(fmt.Errorf("bus off recovery failed after %d attempts: %w", s.attempts, err))
	}
	if recovered {
		atomic.AddUint64(&s.recoveries, 1)
	}
	return nil
}

// Watch recovers the device every time w reports bus off. It returns when
// ctx is done, w fails or a recovery is given up.
func (s *Supervisor) Watch(ctx context.Context, w Waiter) error {
	for {
		flags, err := w.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if !status.Flags(flags).Has(status.BusOff) {
			continue
		}
		s.onMessage("bus off, recovering")
		if err := s.Recover(ctx); err != nil {
			return err
		}
		s.onMessage("recovered")
	}
}

// Supervise watches d for bus off until ctx is done.
func Supervise(ctx context.Context, d *flexcan.Driver, opts ...Option) error {
	sub := d.Subscribe(flexcan.EventError, uint64(status.BusOff))
	defer sub.Close()
	return New(d, opts...).Watch(ctx, sub)
}
