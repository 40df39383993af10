package srvdrv

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Change is a set of session state changes, passed to OnChange hooks.
// Each bit is a trigger for recomputing the command gate or the view.
type Change uint8

const (
	// ChangeSelection fires when the selected unit changes
	ChangeSelection Change = 1 << iota
	// ChangeBusy fires when the busy flag flips
	ChangeBusy
	// ChangeCriteria fires when a filter criterion changes
	ChangeCriteria
	// ChangeUnit fires when the selected unit has been refreshed
	ChangeUnit
)

// Has reports whether c contains every bit of other
func (c Change) Has(other Change) bool {
	return c&other == other
}

// Session holds the per-session state shared by the presentation layer:
// the selected unit, the busy flag and the filter criteria. All reads and
// writes go through its accessors, which fire the registered hooks.
//
// The busy flag admits one lifecycle operation at a time for the whole
// session, not one per unit.
type Session struct {
	catalog    *Catalog
	filter     *Filter
	controller *Controller
	log        zerolog.Logger

	mu       sync.Mutex
	selected *Unit
	busy     bool

	hooksMu sync.Mutex
	hooks   []func(Change)
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionLogger sets the logger used for session events
func WithSessionLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = l
	}
}

// NewSession creates a Session over catalog that runs transitions with controller
func NewSession(catalog *Catalog, controller *Controller, opts ...SessionOption) *Session {
	s := &Session{
		catalog:    catalog,
		filter:     NewFilter(catalog),
		controller: controller,
		log:        zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Catalog returns the session's unit collection
func (s *Session) Catalog() *Catalog {
	return s.catalog
}

// Controller returns the session's lifecycle controller
func (s *Session) Controller() *Controller {
	return s.controller
}

// OnChange registers fn to be called after every state change.
// Hooks run synchronously on the goroutine that made the change and must
// not block.
func (s *Session) OnChange(fn func(Change)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Session) notify(c Change) {
	s.hooksMu.Lock()
	hooks := make([]func(Change), len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.Unlock()

	for _, fn := range hooks {
		fn(c)
	}
}

// Selected returns the selected unit, or nil
func (s *Session) Selected() *Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select makes u the selected unit; nil clears the selection
func (s *Session) Select(u *Unit) {
	s.mu.Lock()
	changed := s.selected != u
	s.selected = u
	s.mu.Unlock()

	if changed {
		s.notify(ChangeSelection)
	}
}

// SelectName selects the catalog unit with the given name
func (s *Session) SelectName(ctx context.Context, name string) (*Unit, error) {
	u, err := s.catalog.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	s.Select(u)
	return u, nil
}

// Busy reports whether a lifecycle operation is in flight
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Commands recomputes the command gate for the current selection and busy flag
func (s *Session) Commands() Commands {
	s.mu.Lock()
	u, busy := s.selected, s.busy
	s.mu.Unlock()
	return Gate(u, busy)
}

// Enabled reports whether cmd may currently be invoked
func (s *Session) Enabled(cmd Command) bool {
	return s.Commands().Enabled(cmd)
}

// Criteria returns the current filter criteria
func (s *Session) Criteria() Criteria {
	return s.filter.Criteria()
}

// Filter returns the session's filter engine
func (s *Session) Filter() *Filter {
	return s.filter
}

// SetCriteria replaces the filter criteria
func (s *Session) SetCriteria(c Criteria) {
	s.criteriaChanged(s.filter.SetCriteria(c))
}

// SetShowServices toggles whether services are visible
func (s *Session) SetShowServices(show bool) {
	s.criteriaChanged(s.filter.SetShowServices(show))
}

// SetShowDrivers toggles whether drivers are visible
func (s *Session) SetShowDrivers(show bool) {
	s.criteriaChanged(s.filter.SetShowDrivers(show))
}

// SetSearchText sets the case-insensitive search text
func (s *Session) SetSearchText(text string) {
	s.criteriaChanged(s.filter.SetSearchText(text))
}

func (s *Session) criteriaChanged(changed bool) {
	if changed {
		s.notify(ChangeCriteria)
	}
}

// Visible returns the units visible under the current criteria
func (s *Session) Visible(ctx context.Context) ([]*Unit, error) {
	return s.filter.Visible(ctx)
}

// Refresh re-queries the selected unit. It is a no-op without a selection.
func (s *Session) Refresh(ctx context.Context) error {
	u := s.Selected()
	if u == nil {
		return nil
	}

	err := u.Refresh(ctx)
	s.notify(ChangeUnit)
	return err
}

// Begin claims the busy flag for cmd on the selected unit. It fails with
// ErrBusy while another operation is in flight and with ErrCommandDisabled
// when the gate disables cmd. The returned Pending must be either Run or
// Aborted so the busy flag is released.
func (s *Session) Begin(cmd Command) (*Pending, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	u := s.selected
	if !Gate(u, false).Enabled(cmd) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCommandDisabled, cmd)
	}

	s.busy = true
	s.mu.Unlock()

	s.notify(ChangeBusy)

	return &Pending{
		session: s,
		unit:    u,
		op:      cmd.Operation(u.Snapshot()),
	}, nil
}

// Invoke runs cmd on the selected unit on the calling goroutine
func (s *Session) Invoke(ctx context.Context, cmd Command) (Result, error) {
	p, err := s.Begin(cmd)
	if err != nil {
		return Result{}, err
	}
	return p.Run(ctx), nil
}

// Pending is a claimed, not yet executed transition
type Pending struct {
	session *Session
	unit    *Unit
	op      Operation
	once    sync.Once
}

// Unit returns the target unit
func (p *Pending) Unit() *Unit {
	return p.unit
}

// Op returns the resolved operation
func (p *Pending) Op() Operation {
	return p.op
}

// Run executes the transition and releases the busy flag on return,
// whatever the outcome. Run must be called at most once.
func (p *Pending) Run(ctx context.Context) Result {
	defer p.release()

	res := p.session.controller.Transition(ctx, p.unit, p.op)
	p.session.log.Debug().
		Str("unit", res.Unit).
		Stringer("op", res.Op).
		Stringer("result", res.Kind).
		Msg("session transition done")
	return res
}

// Abort releases the busy flag without running the transition
func (p *Pending) Abort() {
	p.release()
}

func (p *Pending) release() {
	p.once.Do(func() {
		s := p.session
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		s.notify(ChangeBusy | ChangeUnit)
	})
}
