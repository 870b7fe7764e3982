package flexcan

import (
	"errors"
	"fmt"
	"time"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable wraps an error in `unrecoverableError` struct
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable checks if error is an instance of `unrecoverableError`
func IsRecoverable(err error) bool {
	var u unrecoverableError
	return !errors.As(err, &u)
}

var (
	ErrNotReady           = errors.New("driver not ready")
	ErrInvalidState       = errors.New("invalid driver state for operation")
	ErrMailboxUnavailable = errors.New("no mailbox available")
	ErrInvalidMailbox     = errors.New("invalid mailbox")
	ErrInvalidFrame       = errors.New("invalid frame")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrBusOff             = errors.New("bus off")
	ErrSubscriberClosed   = errors.New("subscriber closed")
)

// TimeoutError is returned by the blocking wrappers when their context
// ends before a mailbox became available.
type TimeoutError struct {
	Timeout time.Duration
	Mailbox string
	Type    string
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s timeout (%dms) waiting for mailbox %s", e.Type, e.Timeout.Milliseconds(), e.Mailbox)
	}
	return fmt.Sprintf("%s wait for mailbox %s aborted: %v", e.Type, e.Mailbox, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}
