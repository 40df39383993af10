package srvdrv

import (
	"context"
	"errors"
	"time"
)

// waitForStatus polls ctl until the unit reports target or ctx ends.
// The current status is checked first so an already-satisfied wait returns
// without sleeping. Transient query errors are retried; ErrNotFound is not.
// On deadline expiry the error wraps ErrTimeout and the last observed status
// is returned alongside it.
func waitForStatus(ctx context.Context, ctl ServiceControl, name string, target Status, interval time.Duration) (Status, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	last := StatusUnknown
	var lastErr error

	check := func() (bool, error) {
		d, err := ctl.Query(ctx, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, err
			}
			// Keep trying
			lastErr = err
			return false, nil
		}
		last = d.Status
		lastErr = nil
		return d.Status == target, nil
	}

	if done, err := check(); err != nil || done {
		return last, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return last, waitError(ctx.Err(), lastErr)
		case <-ticker.C:
			if done, err := check(); err != nil || done {
				return last, err
			}
		}
	}
}

// waitError maps the end of a wait to an error. Only an expired deadline is
// a timeout; cancellation by the caller is reported as such.
func waitError(ctxErr, lastErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		if lastErr != nil {
			return errors.Join(ErrTimeout, lastErr)
		}
		return ErrTimeout
	}
	return ctxErr
}
