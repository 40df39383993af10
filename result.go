package srvdrv

import (
	"context"
	"errors"
	"time"
)

// ResultKind classifies the outcome of a Transition
type ResultKind int

const (
	// ResultSuccess means the unit reached the target status in time
	ResultSuccess ResultKind = iota
	// ResultPreconditionFailed means the request was invalid and the OS was not touched
	ResultPreconditionFailed
	// ResultTimedOut means the OS accepted the request but the target status was not observed in time
	ResultTimedOut
	// ResultFailed means the OS rejected the request or the unit is gone
	ResultFailed
)

// String returns the string representation of a ResultKind
func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultPreconditionFailed:
		return "precondition-failed"
	case ResultTimedOut:
		return "timed-out"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Notice texts shown by the presentation layer
const (
	// NoticeTimedOut is shown for ResultTimedOut
	NoticeTimedOut = "Operation timed out."
	// noticeErrorPrefix precedes the message of a ResultFailed
	noticeErrorPrefix = "Error: "
)

// Result is the outcome of one Transition
type Result struct {
	// Kind classifies the outcome
	Kind ResultKind
	// Op is the requested operation
	Op Operation
	// Unit is the name of the target unit
	Unit string
	// Message describes the failure for ResultFailed and ResultPreconditionFailed
	Message string
	// Err is the classified error, nil on success
	Err error
	// Status is the unit's status after the post-transition refresh
	Status Status
	// Elapsed is the wall time spent in the OS call and wait
	Elapsed time.Duration
}

// OK reports whether the transition succeeded
func (r Result) OK() bool {
	return r.Kind == ResultSuccess
}

// Notice returns the user-visible notice for the result.
// Success and precondition rejections produce no notice; the latter
// should never reach the user since the gate disables the command.
func (r Result) Notice() string {
	switch r.Kind {
	case ResultTimedOut:
		return NoticeTimedOut
	case ResultFailed:
		return noticeErrorPrefix + r.Message
	default:
		return ""
	}
}

// classify converts an error from the OS boundary into a Result kind and message
func classify(err error) (ResultKind, string) {
	switch {
	case err == nil:
		return ResultSuccess, ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ResultTimedOut, NoticeTimedOut
	case errors.Is(err, ErrPrecondition):
		return ResultPreconditionFailed, messageOf(err)
	default:
		return ResultFailed, messageOf(err)
	}
}

// messageOf extracts the most specific message from an error chain,
// skipping the OpError envelope.
func messageOf(err error) string {
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}
	return err.Error()
}
