package pub

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed publish parameters detected before any send.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransport marks failures reported by the broker transport.
	ErrTransport = errors.New("transport error")

	// ErrClosed is returned, wrapped in a TransportError, for calls on a closed publisher.
	ErrClosed = errors.New("publisher closed")

	// ErrBatchSent is returned when a batch is reused after it was sent.
	ErrBatchSent = errors.New("batch already sent")
)

// TransportError wraps an error returned by the broker or the transport client.
// Callers may retry these at their own discretion.
type TransportError struct {
	Op  string
	Err error
}

// NewTransportError wraps err, returning nil when err is nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return err
	}

	return &TransportError{Op: op, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransport as a match so callers can branch with errors.Is.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
