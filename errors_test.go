package srvdrv

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestOpErrorMessage(t *testing.T) {
	named := &OpError{Op: OpStop, Name: "Spooler", Err: ErrAccessDenied}
	if got, want := named.Error(), `srvdrv stop "Spooler": srvdrv: access denied`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	unnamed := &OpError{Op: OpEnumerate, Err: ErrUnsupported}
	if got, want := unnamed.Error(), "srvdrv enumerate: srvdrv: not supported"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if !errors.Is(named, ErrAccessDenied) {
		t.Error("OpError does not unwrap to its cause")
	}
}

func TestClassified(t *testing.T) {
	raw := errors.New("The service has not been started.")
	err := classified(ErrInvalidState, raw)

	if err.Error() != raw.Error() {
		t.Errorf("Error() = %q, want the OS message", err.Error())
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Error("not classified")
	}
	if !errors.Is(err, raw) {
		t.Error("raw error lost")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("matches an unrelated sentinel")
	}

	wrapped := fmt.Errorf("stop: %w", &OpError{Op: OpStop, Name: "x", Err: err})
	if !errors.Is(wrapped, ErrInvalidState) {
		t.Error("classification lost through wrapping")
	}

	if classified(nil, raw) != raw {
		t.Error("nil class changed the error")
	}
	if classified(ErrTimeout, nil) != nil {
		t.Error("nil error classified")
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	if m.Err() != nil {
		t.Error("empty MultiError is an error")
	}
	if m.Error() != "no errors" {
		t.Errorf("Error() = %q", m.Error())
	}

	m.Add(nil)
	m.Add(&OpError{Op: OpEnumerate, Err: ErrAccessDenied})
	if m.Err() == nil || m.Error() != "srvdrv enumerate: srvdrv: access denied" {
		t.Errorf("single error = %v", m.Err())
	}

	m.Add(context.DeadlineExceeded)
	err := m.Err()
	if got := err.Error(); got != "2 errors occurred: srvdrv enumerate: srvdrv: access denied" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrAccessDenied) || !errors.Is(err, context.DeadlineExceeded) {
		t.Error("MultiError does not expose its errors")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ResultKind
	}{
		{"nil", nil, ResultSuccess},
		{"timeout", &OpError{Op: OpStart, Err: ErrTimeout}, ResultTimedOut},
		{"deadline", context.DeadlineExceeded, ResultTimedOut},
		{"scm timeout", classified(ErrTimeout, errors.New("did not respond")), ResultTimedOut},
		{"precondition", fmt.Errorf("%w: nope", ErrPrecondition), ResultPreconditionFailed},
		{"not found", &OpError{Op: OpStop, Err: ErrNotFound}, ResultFailed},
		{"access denied", ErrAccessDenied, ResultFailed},
		{"cancelled", context.Canceled, ResultFailed},
		{"other", errors.New("boom"), ResultFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := classify(tt.err); got != tt.want {
				t.Errorf("classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResultNotice(t *testing.T) {
	tests := []struct {
		res  Result
		want string
	}{
		{Result{Kind: ResultSuccess}, ""},
		{Result{Kind: ResultPreconditionFailed, Message: "not allowed"}, ""},
		{Result{Kind: ResultTimedOut}, "Operation timed out."},
		{Result{Kind: ResultFailed, Message: "Access is denied."}, "Error: Access is denied."},
	}

	for _, tt := range tests {
		if got := tt.res.Notice(); got != tt.want {
			t.Errorf("%s Notice() = %q, want %q", tt.res.Kind, got, tt.want)
		}
	}
}

func TestMessageOfSkipsEnvelope(t *testing.T) {
	err := &OpError{Op: OpStart, Name: "Netlogon", Err: classified(ErrInvalidState, errors.New("An instance of the service is already running."))}
	_, msg := classify(err)
	if msg != "An instance of the service is already running." {
		t.Errorf("message = %q", msg)
	}
}
