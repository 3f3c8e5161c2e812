package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when submitting to a dispatcher that has been
	// closed.
	ErrClosed = errors.New("dispatch: dispatcher closed")

	// ErrQueueFull is forwarded to the error callback when a device's
	// queue is saturated; submission never blocks the caller.
	ErrQueueFull = errors.New("dispatch: queue full")
)

// BadResponseError is a non-2xx response from a device. It is never
// retried: the device answered, it just refused.
type BadResponseError struct {
	StatusCode int
	Body       string
}

func (e *BadResponseError) Error() string {
	return fmt.Sprintf("dispatch: bad response: status %d", e.StatusCode)
}
