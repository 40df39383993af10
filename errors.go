package srvdrv

import (
	"errors"
	"fmt"
)

// Common errors returned by srvdrv operations
var (
	// ErrNotFound indicates the unit no longer exists in the OS registry
	ErrNotFound = errors.New("srvdrv: unit not found")

	// ErrAccessDenied indicates the caller lacks the rights for the request
	ErrAccessDenied = errors.New("srvdrv: access denied")

	// ErrInvalidState indicates the unit cannot accept the request in its current state
	ErrInvalidState = errors.New("srvdrv: invalid state for request")

	// ErrDependency indicates a dependency prevented the request
	ErrDependency = errors.New("srvdrv: dependency violation")

	// ErrTimeout indicates the target status was not observed in time
	ErrTimeout = errors.New("srvdrv: timeout")

	// ErrUnsupported indicates the backend cannot perform the request
	ErrUnsupported = errors.New("srvdrv: not supported")

	// ErrPrecondition indicates the request is invalid for the unit's status or capabilities
	ErrPrecondition = errors.New("srvdrv: precondition failed")

	// ErrBusy indicates another lifecycle operation is already in flight
	ErrBusy = errors.New("srvdrv: operation in progress")

	// ErrCommandDisabled indicates the command is disabled for the current selection
	ErrCommandDisabled = errors.New("srvdrv: command disabled")

	// ErrStopped indicates the dispatcher no longer accepts work
	ErrStopped = errors.New("srvdrv: dispatcher stopped")
)

// OpError represents an error from an operation against a unit
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// Name is the unit the operation targeted, empty for enumeration
	Name string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("srvdrv %s: %v", e.Op.String(), e.Err)
	}
	return fmt.Sprintf("srvdrv %s %q: %v", e.Op.String(), e.Name, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// osError ties a raw OS error to the sentinel that classifies it, keeping
// the OS message intact for display.
type osError struct {
	class error
	err   error
}

func (e *osError) Error() string {
	return e.err.Error()
}

// Is matches the classifying sentinel
func (e *osError) Is(target error) bool {
	return target == e.class
}

func (e *osError) Unwrap() error {
	return e.err
}

// classified wraps err so that errors.Is(err, class) holds.
// A nil class returns err unchanged.
func classified(class, err error) error {
	if class == nil || err == nil {
		return err
	}
	return &osError{class: class, err: err}
}

// MultiError aggregates multiple errors, one per failed unit kind
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(m.Errors), m.Errors[0])
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
