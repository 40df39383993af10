package srvdrv

import (
	"context"
)

// ServiceControl is the boundary to the OS service-control facility.
// Implementations exist for the Windows service control manager, systemd
// (plus kernel modules as drivers) and an in-memory simulator.
//
// Every error returned must be an *OpError or wrap one of the package
// sentinels so callers can classify it with errors.Is.
type ServiceControl interface {
	// Enumerate lists every unit of the given kind
	Enumerate(ctx context.Context, kind Kind) ([]Descriptor, error)

	// Query returns the current descriptor of a single unit.
	// It fails with ErrNotFound if the unit no longer exists.
	Query(ctx context.Context, name string) (Descriptor, error)

	// Lifecycle requests. Each returns once the OS has accepted or
	// rejected the request; none of them wait for the target status.
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Pause(ctx context.Context, name string) error
	Continue(ctx context.Context, name string) error

	// Close releases the connection to the OS
	Close() error
}

// send issues the control request for op
func send(ctx context.Context, ctl ServiceControl, name string, op Operation) error {
	switch op {
	case OpStart:
		return ctl.Start(ctx, name)
	case OpStop:
		return ctl.Stop(ctx, name)
	case OpPause:
		return ctl.Pause(ctx, name)
	case OpContinue:
		return ctl.Continue(ctx, name)
	default:
		return &OpError{Op: op, Name: name, Err: ErrUnsupported}
	}
}
