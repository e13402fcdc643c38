package flow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is returned when stage is misconfigured, e.g.
	// required filename or input is missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound is returned when a source doesn't resolve to an existing
	// readable file.
	ErrNotFound = errors.New("not found")
	// ErrFormat is returned when source cannot be decoded.
	ErrFormat = errors.New("format error")
	// ErrReleased is returned when the consumer released the buffer.
	ErrReleased = errors.New("released")
	// ErrNoData is returned when output is read before it was updated.
	ErrNoData = errors.New("no data")
	// ErrStopped is returned when producer was stopped before the end of
	// stream.
	ErrStopped = errors.New("stopped")
)

// ErrorExecute is returned if stage execution failed. Stage stays dirty
// and the execution can be retried with the next update.
type ErrorExecute struct {
	Stage string
	Err   error
}

func (e *ErrorExecute) Error() string {
	return fmt.Sprintf("execute %s: %v", e.Stage, e.Err)
}

// Unwrap returns the execution failure.
func (e *ErrorExecute) Unwrap() error {
	return e.Err
}

// ErrorProps is returned when frame samples don't match frame props.
type ErrorProps struct {
	Props   Props
	Samples int
}

func (e ErrorProps) Error() string {
	return fmt.Sprintf("%d samples don't match %dx%dx%d frame", e.Samples, e.Props.Width, e.Props.Height, e.Props.Channels)
}

// Is makes props mismatch a format error.
func (e ErrorProps) Is(err error) bool {
	return err == ErrFormat
}

// Errors wraps errors that might occur when multiple stages are failing.
type Errors []error

func (e Errors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Is checks if any of errors match provided sentinel error.
func (e Errors) Is(err error) bool {
	for _, se := range e {
		if errors.Is(se, err) {
			return true
		}
	}
	return false
}

// Ret returns untyped nil if errors list is empty.
func (e Errors) Ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
