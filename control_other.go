//go:build !linux && !windows

package srvdrv

import (
	"context"
	"runtime"
)

// NewSystemControl reports ErrUnsupported; only Windows and Linux have a
// native backend. Use a MemoryControl elsewhere.
func NewSystemControl(_ context.Context) (ServiceControl, error) {
	return nil, &OpError{Op: OpEnumerate, Name: runtime.GOOS, Err: ErrUnsupported}
}
