package flexcan

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"

	"github.com/roffe/flexcan/pkg/mailbox"
)

type Option func(*Driver) error

// Clock gates the peripheral clock of a module.
type Clock interface {
	Enable()
	Disable()
}

type nopClock struct{}

func (nopClock) Enable()  {}
func (nopClock) Disable() {}

// WithClock sets the clock gate toggled by Start and Stop.
func WithClock(c Clock) Option {
	return func(d *Driver) error {
		if c == nil {
			return fmt.Errorf("%w: nil clock", ErrInvalidConfig)
		}
		d.clock = c
		return nil
	}
}

// WithRxMailboxes sets the size of the receive partition. The rest of the
// message buffers are used for transmission.
func WithRxMailboxes(n int) Option {
	return func(d *Driver) error {
		d.rx = n
		return nil
	}
}

func WithName(name string) Option {
	return func(d *Driver) error {
		d.name = name
		return nil
	}
}

func WithOnMessage(fn func(string)) Option {
	return func(d *Driver) error {
		d.onMessage = fn
		return nil
	}
}

// WithDebug makes the driver report state changes and interrupts through
// the message callback.
func WithDebug(enabled bool) Option {
	return func(d *Driver) error {
		d.debug = enabled
		return nil
	}
}

func defaultOnMessage(msg string) {
	_, file, no, ok := runtime.Caller(2)
	if ok {
		fmt.Printf("%s#%d %v\n", filepath.Base(file), no, msg)
	} else {
		log.Println(msg)
	}
}

func defaultDriver() *Driver {
	return &Driver{
		name:      "flexcan",
		rx:        mailbox.DefaultRxMailboxes,
		clock:     nopClock{},
		onMessage: defaultOnMessage,
	}
}
