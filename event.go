package flexcan

import (
	"fmt"

	"github.com/roffe/flexcan/pkg/status"
)

// EventSource names one of the notification channels of a driver.
type EventSource int

const (
	// EventTxEmpty carries the set of transmit buffers that completed.
	EventTxEmpty EventSource = iota
	// EventRxFull carries the set of receive buffers holding a frame.
	EventRxFull
	// EventError carries status.Flags.
	EventError
)

func (es EventSource) String() string {
	switch es {
	case EventTxEmpty:
		return "TXEMPTY"
	case EventRxFull:
		return "RXFULL"
	case EventError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is a source and the flags accumulated for it.
type Event struct {
	Source EventSource
	Flags  uint64
}

func (e Event) String() string {
	if e.Source == EventError {
		return fmt.Sprintf("[%s] %s", e.Source, status.Flags(e.Flags))
	}
	return fmt.Sprintf("[%s] 0x%016X", e.Source, e.Flags)
}
