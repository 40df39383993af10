package srvdrv

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"vawter.tech/stopper"
)

// DefaultStopGrace is how long Dispatcher.Stop lets an in-flight
// transition finish before its context is cancelled
const DefaultStopGrace = 500 * time.Millisecond

// Dispatcher runs transitions on a single background worker so the
// control thread never blocks on the wait window.
type Dispatcher struct {
	session *Session
	sctx    *stopper.Context
	jobs    chan job
	log     zerolog.Logger

	// mu orders queueing against the worker's final drain
	mu     sync.Mutex
	closed bool
}

type job struct {
	pending *Pending
	out     chan Result
}

// NewDispatcher starts the worker. It stops when ctx is cancelled or
// Stop is called.
func NewDispatcher(ctx context.Context, session *Session) *Dispatcher {
	d := &Dispatcher{
		session: session,
		sctx:    stopper.WithContext(ctx),
		// The session admits one operation at a time, so one slot is enough.
		jobs: make(chan job, 1),
		log:  session.log,
	}

	d.sctx.Go(func(sctx *stopper.Context) error {
		d.work(sctx)
		return nil
	})

	return d
}

// Dispatch claims the busy flag for cmd on the caller's goroutine and
// hands the transition to the worker. The returned channel receives one
// Result and is then closed. A transition dropped at shutdown closes the
// channel without a Result.
func (d *Dispatcher) Dispatch(cmd Command) (<-chan Result, error) {
	if d.sctx.IsStopping() {
		return nil, ErrStopped
	}

	p, err := d.session.Begin(cmd)
	if err != nil {
		return nil, err
	}

	out := make(chan Result, 1)
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		p.Abort()
		return nil, ErrStopped
	}
	select {
	case d.jobs <- job{pending: p, out: out}:
		d.mu.Unlock()
		return out, nil
	default:
		// Begin admits one transition at a time, so the slot is free
		// unless a caller bypassed the session.
		d.mu.Unlock()
		p.Abort()
		return nil, ErrBusy
	}
}

func (d *Dispatcher) work(sctx *stopper.Context) {
	for {
		select {
		case <-sctx.Stopping():
			d.mu.Lock()
			d.closed = true
			dropped := d.drain()
			d.mu.Unlock()

			for _, j := range dropped {
				d.log.Debug().Str("unit", j.pending.Unit().Name()).Msg("dropping queued transition")
				j.pending.Abort()
				close(j.out)
			}
			return
		case j := <-d.jobs:
			res := j.pending.Run(sctx)
			j.out <- res
			close(j.out)
		}
	}
}

// drain empties the queue of jobs that were never started
func (d *Dispatcher) drain() []job {
	var dropped []job
	for {
		select {
		case j := <-d.jobs:
			dropped = append(dropped, j)
		default:
			return dropped
		}
	}
}

// Stop stops accepting work, gives an in-flight transition up to grace to
// finish and waits for the worker to exit.
func (d *Dispatcher) Stop(grace time.Duration) error {
	d.sctx.Stop(grace)
	return d.sctx.Wait()
}
