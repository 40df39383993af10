package srvdrv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// testPoll keeps transition tests fast
const testPoll = 5 * time.Millisecond

func newDemoControl() *MemoryControl {
	return NewMemoryControl(DemoUnits()...)
}

func newTestController(opts ...Option) *Controller {
	return NewController(append([]Option{WithPollInterval(testPoll)}, opts...)...)
}

// newTestSession returns a session over the demo units with the catalog loaded
func newTestSession(t *testing.T, opts ...Option) (*MemoryControl, *Session) {
	t.Helper()
	ctl := newDemoControl()
	s := NewSession(NewCatalog(ctl), newTestController(opts...))
	if _, err := s.Visible(context.Background()); err != nil {
		t.Fatalf("Visible() error: %v", err)
	}
	return ctl, s
}

func mustLookup(t *testing.T, c *Catalog, name string) *Unit {
	t.Helper()
	u, err := c.Lookup(context.Background(), name)
	if err != nil {
		t.Fatalf("Lookup(%q) error: %v", name, err)
	}
	return u
}

func mustSelect(t *testing.T, s *Session, name string) *Unit {
	t.Helper()
	u, err := s.SelectName(context.Background(), name)
	if err != nil {
		t.Fatalf("SelectName(%q) error: %v", name, err)
	}
	return u
}

func unitNames(units []*Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Name()
	}
	return out
}

var errInjected = errors.New("injected failure")

// faultyControl fails the first enumerateFailures[kind] Enumerate calls
// for each kind and the first queryFailures Query calls
type faultyControl struct {
	*MemoryControl

	mu                sync.Mutex
	enumerateFailures map[Kind]int
	queryFailures     int
}

func (f *faultyControl) Enumerate(ctx context.Context, kind Kind) ([]Descriptor, error) {
	f.mu.Lock()
	fail := f.enumerateFailures[kind] > 0
	if fail {
		f.enumerateFailures[kind]--
	}
	f.mu.Unlock()

	if fail {
		return nil, &OpError{Op: OpEnumerate, Err: classified(ErrAccessDenied, errInjected)}
	}
	return f.MemoryControl.Enumerate(ctx, kind)
}

func (f *faultyControl) Query(ctx context.Context, name string) (Descriptor, error) {
	f.mu.Lock()
	fail := f.queryFailures > 0
	if fail {
		f.queryFailures--
	}
	f.mu.Unlock()

	if fail {
		return Descriptor{}, &OpError{Op: OpQuery, Name: name, Err: errInjected}
	}
	return f.MemoryControl.Query(ctx, name)
}
