package srvdrv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Controller executes lifecycle transitions and waits for their outcome.
// Callers serialize transitions through a Session. The exported fields may
// only be changed through Reconfigure once the Controller is in use.
type Controller struct {
	// StartStopTimeout is the wait budget for Start and Stop
	StartStopTimeout time.Duration

	// PauseContinueTimeout is the wait budget for Pause and Continue
	PauseContinueTimeout time.Duration

	// PollInterval is the delay between status queries while waiting
	PollInterval time.Duration

	// RefreshTimeout bounds the refresh that follows every attempt
	RefreshTimeout time.Duration

	mu  sync.RWMutex
	log zerolog.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithStartStopTimeout sets the wait budget for Start and Stop
func WithStartStopTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.StartStopTimeout = d
	}
}

// WithPauseContinueTimeout sets the wait budget for Pause and Continue
func WithPauseContinueTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.PauseContinueTimeout = d
	}
}

// WithPollInterval sets the delay between status queries while waiting
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.PollInterval = d
	}
}

// WithRefreshTimeout bounds the post-transition refresh
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.RefreshTimeout = d
	}
}

// WithLogger sets the logger used for transition events
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// NewController creates a Controller with default budgets and applies opts.
// Non-positive durations fall back to their defaults.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		StartStopTimeout:     DefaultStartStopTimeout,
		PauseContinueTimeout: DefaultPauseContinueTimeout,
		PollInterval:         DefaultPollInterval,
		RefreshTimeout:       DefaultRefreshTimeout,
		log:                  zerolog.Nop(),
	}

	c.apply(opts)
	return c
}

// Reconfigure applies opts to a Controller that may be running transitions.
// Transitions already in flight keep the settings they started with.
func (c *Controller) Reconfigure(opts ...Option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(opts)
}

func (c *Controller) apply(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}

	if c.StartStopTimeout <= 0 {
		c.StartStopTimeout = DefaultStartStopTimeout
	}
	if c.PauseContinueTimeout <= 0 {
		c.PauseContinueTimeout = DefaultPauseContinueTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = DefaultRefreshTimeout
	}
}

// settings is a consistent copy of the tunables for one transition
type settings struct {
	startStop     time.Duration
	pauseContinue time.Duration
	poll          time.Duration
	refresh       time.Duration
	log           zerolog.Logger
}

func (c *Controller) settings() settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return settings{
		startStop:     c.StartStopTimeout,
		pauseContinue: c.PauseContinueTimeout,
		poll:          c.PollInterval,
		refresh:       c.RefreshTimeout,
		log:           c.log,
	}
}

// Budget returns the wait budget for op
func (c *Controller) Budget(op Operation) time.Duration {
	return c.settings().budget(op)
}

func (s settings) budget(op Operation) time.Duration {
	switch op {
	case OpPause, OpContinue:
		return s.pauseContinue
	default:
		return s.startStop
	}
}

// Transition requests op on u and blocks until the unit reports the
// operation's target status or the budget for op elapses.
//
// Requests that are invalid for the unit's current status or capabilities
// return ResultPreconditionFailed without touching the OS. Every attempt
// that reaches the OS refreshes u afterwards, whatever the outcome.
func (c *Controller) Transition(ctx context.Context, u *Unit, op Operation) (res Result) {
	res = Result{Op: op, Unit: u.Name()}
	cfg := c.settings()

	if u.Stale() {
		res.Err = &OpError{Op: op, Name: u.Name(), Err: ErrNotFound}
		res.Kind, res.Message = classify(res.Err)
		res.Status = u.Status()
		return res
	}

	d := u.Snapshot()
	if !op.IsLifecycle() || !permits(d, op) {
		res.Err = &OpError{Op: op, Name: u.Name(), Err: fmt.Errorf("%w: %s not allowed while %s", ErrPrecondition, op, d.Status)}
		res.Kind, res.Message = classify(res.Err)
		res.Status = d.Status
		cfg.log.Debug().Str("unit", u.Name()).Stringer("op", op).Stringer("status", d.Status).Msg("transition rejected")
		return res
	}

	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		cfg.refreshUnit(ctx, u)
		res.Status = u.Status()
		cfg.logResult(res)
	}()

	ctl := u.control()
	cfg.log.Debug().Str("unit", u.Name()).Stringer("op", op).Msg("transition requested")

	if err := send(ctx, ctl, u.Name(), op); err != nil {
		res.Err = err
		res.Kind, res.Message = classify(err)
		return res
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.budget(op))
	defer cancel()

	if _, err := waitForStatus(waitCtx, ctl, u.Name(), op.Target(), cfg.poll); err != nil {
		res.Err = &OpError{Op: op, Name: u.Name(), Err: err}
		res.Kind, res.Message = classify(res.Err)
		return res
	}

	res.Kind = ResultSuccess
	return res
}

// PauseOrContinue pauses a running unit or resumes a paused one.
// Any other status yields ResultPreconditionFailed.
func (c *Controller) PauseOrContinue(ctx context.Context, u *Unit) Result {
	return c.Transition(ctx, u, CmdPauseContinue.Operation(u.Snapshot()))
}

// refreshUnit re-reads u after an attempt. It runs even when ctx has been
// cancelled so the snapshot reflects whatever the OS reached.
func (s settings) refreshUnit(ctx context.Context, u *Unit) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refresh)
	defer cancel()

	if err := u.Refresh(rctx); err != nil {
		s.log.Warn().Err(err).Str("unit", u.Name()).Msg("refresh after transition failed")
	}
}

func (s settings) logResult(res Result) {
	ev := s.log.Info()
	if res.Kind != ResultSuccess {
		ev = s.log.Warn()
		if res.Err != nil {
			ev = ev.Err(res.Err)
		}
	}
	ev.Str("unit", res.Unit).
		Stringer("op", res.Op).
		Stringer("result", res.Kind).
		Stringer("status", res.Status).
		Dur("elapsed", res.Elapsed).
		Msg("transition finished")
}
