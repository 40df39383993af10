package srvdrv

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryControl is an in-memory ServiceControl. Lifecycle requests move a
// unit into the matching pending state, which settles into the target
// status once the configured delay has passed. It backs the demo mode and
// the package tests.
type MemoryControl struct {
	// StartDelay is how long StartPending lasts
	StartDelay time.Duration
	// StopDelay is how long StopPending lasts
	StopDelay time.Duration
	// PauseDelay is how long PausePending lasts
	PauseDelay time.Duration
	// ContinueDelay is how long ContinuePending lasts
	ContinueDelay time.Duration

	mu      sync.Mutex
	units   map[string]*memUnit
	calls   []Call
	nextPID int
	now     func() time.Time
}

// Call records one request received by a MemoryControl
type Call struct {
	Op   Operation
	Name string
}

type memUnit struct {
	desc    Descriptor
	target  Status
	due     time.Time
	stalled bool
	fail    map[Operation]error
}

// NewMemoryControl creates a simulator holding the given units
func NewMemoryControl(units ...Descriptor) *MemoryControl {
	m := &MemoryControl{
		units:   make(map[string]*memUnit, len(units)),
		nextPID: 1000,
		now:     time.Now,
	}
	for _, d := range units {
		m.Add(d)
	}
	return m
}

// Add registers or replaces a unit
func (m *MemoryControl) Add(d Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[d.Name] = &memUnit{desc: d}
}

// Remove deletes a unit, as if it had been uninstalled
func (m *MemoryControl) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.units, name)
}

// Update applies fn to a unit's descriptor. The name cannot be changed.
func (m *MemoryControl) Update(name string, fn func(*Descriptor)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.units[name]
	if !ok {
		return &OpError{Op: OpQuery, Name: name, Err: ErrNotFound}
	}
	fn(&u.desc)
	u.desc.Name = name
	return nil
}

// Stall keeps a unit in its pending state until Stall(name, false) is called
func (m *MemoryControl) Stall(name string, stalled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.units[name]; ok {
		u.stalled = stalled
	}
}

// FailNext makes the next op request on name fail with err
func (m *MemoryControl) FailNext(name string, op Operation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.units[name]; ok {
		if u.fail == nil {
			u.fail = make(map[Operation]error)
		}
		u.fail[op] = err
	}
}

// Calls returns every request received so far
func (m *MemoryControl) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many op requests were received
func (m *MemoryControl) CallCount(op Operation) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Enumerate lists the units of kind ordered by name
func (m *MemoryControl) Enumerate(ctx context.Context, kind Kind) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, &OpError{Op: OpEnumerate, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: OpEnumerate})

	var out []Descriptor
	for _, u := range m.units {
		m.settle(u)
		if u.desc.Kind() == kind {
			out = append(out, u.desc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Query returns the current descriptor of name
func (m *MemoryControl) Query(ctx context.Context, name string) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, &OpError{Op: OpQuery, Name: name, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: OpQuery, Name: name})

	u, ok := m.units[name]
	if !ok {
		return Descriptor{}, &OpError{Op: OpQuery, Name: name, Err: ErrNotFound}
	}
	m.settle(u)
	return u.desc, nil
}

// Start requests a stopped unit to start
func (m *MemoryControl) Start(ctx context.Context, name string) error {
	return m.request(ctx, name, OpStart, func(d Descriptor) error {
		if d.StartMode == StartModeDisabled {
			return classified(ErrInvalidState, errors.New("the service cannot be started because it is disabled"))
		}
		if d.Status != StatusStopped {
			return classified(ErrInvalidState, errors.New("an instance of the service is already running"))
		}
		return nil
	})
}

// Stop requests a running or paused unit to stop
func (m *MemoryControl) Stop(ctx context.Context, name string) error {
	return m.request(ctx, name, OpStop, func(d Descriptor) error {
		if !d.CanStop {
			return classified(ErrInvalidState, errors.New("the requested control is not valid for this service"))
		}
		if d.Status != StatusRunning && d.Status != StatusPaused {
			return classified(ErrInvalidState, errors.New("the service has not been started"))
		}
		return nil
	})
}

// Pause requests a running unit to pause
func (m *MemoryControl) Pause(ctx context.Context, name string) error {
	return m.request(ctx, name, OpPause, func(d Descriptor) error {
		if !d.CanPauseAndContinue {
			return classified(ErrInvalidState, errors.New("the requested control is not valid for this service"))
		}
		if d.Status != StatusRunning {
			return classified(ErrInvalidState, errors.New("the service cannot accept control messages at this time"))
		}
		return nil
	})
}

// Continue requests a paused unit to resume
func (m *MemoryControl) Continue(ctx context.Context, name string) error {
	return m.request(ctx, name, OpContinue, func(d Descriptor) error {
		if !d.CanPauseAndContinue {
			return classified(ErrInvalidState, errors.New("the requested control is not valid for this service"))
		}
		if d.Status != StatusPaused {
			return classified(ErrInvalidState, errors.New("the service cannot accept control messages at this time"))
		}
		return nil
	})
}

// Close is a no-op
func (m *MemoryControl) Close() error {
	return nil
}

func (m *MemoryControl) request(ctx context.Context, name string, op Operation, check func(Descriptor) error) error {
	if err := ctx.Err(); err != nil {
		return &OpError{Op: op, Name: name, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: op, Name: name})

	u, ok := m.units[name]
	if !ok {
		return &OpError{Op: op, Name: name, Err: ErrNotFound}
	}
	if err, ok := u.fail[op]; ok {
		delete(u.fail, op)
		return &OpError{Op: op, Name: name, Err: err}
	}

	m.settle(u)
	if err := check(u.desc); err != nil {
		return &OpError{Op: op, Name: name, Err: err}
	}

	var pending Status
	var delay time.Duration
	switch op {
	case OpStart:
		pending, delay = StatusStartPending, m.StartDelay
	case OpStop:
		pending, delay = StatusStopPending, m.StopDelay
	case OpPause:
		pending, delay = StatusPausePending, m.PauseDelay
	case OpContinue:
		pending, delay = StatusContinuePending, m.ContinueDelay
	}

	u.desc.Status = pending
	u.target = op.Target()
	u.due = m.now().Add(delay)
	m.settle(u)
	return nil
}

// settle completes a pending transition whose delay has elapsed
func (m *MemoryControl) settle(u *memUnit) {
	if !u.desc.Status.IsPending() || u.stalled || m.now().Before(u.due) {
		return
	}

	u.desc.Status = u.target
	switch u.target {
	case StatusStopped:
		u.desc.PID = 0
	case StatusRunning:
		if u.desc.PID == 0 {
			m.nextPID++
			u.desc.PID = m.nextPID
		}
	}
}

// DemoUnits returns a small, fixed set of units for demo mode
func DemoUnits() []Descriptor {
	return []Descriptor{
		{Name: "Netlogon", DisplayName: "Netlogon", ImagePath: `C:\Windows\system32\lsass.exe`, Type: 0x20, Status: StatusStopped, StartMode: StartModeManual, CanStop: true, CanPauseAndContinue: true},
		{Name: "NetAdapter", DisplayName: "Network Adapter Driver", ImagePath: `\SystemRoot\System32\drivers\netadapter.sys`, Type: TypeKernelDriver, Status: StatusRunning, StartMode: StartModeSystem},
		{Name: "Spooler", DisplayName: "Print Spooler", ImagePath: `C:\Windows\System32\spoolsv.exe`, Type: TypeOwnProcess, Status: StatusRunning, StartMode: StartModeAutomatic, CanStop: true, PID: 2412},
		{Name: "W32Time", DisplayName: "Windows Time", ImagePath: `C:\Windows\system32\svchost.exe -k LocalService`, Type: 0x20, Status: StatusRunning, StartMode: StartModeManual, CanStop: true, CanPauseAndContinue: true, PID: 1876},
		{Name: "RemoteRegistry", DisplayName: "Remote Registry", ImagePath: `C:\Windows\system32\svchost.exe -k localService -p`, Type: 0x20, Status: StatusStopped, StartMode: StartModeDisabled, CanStop: true},
		{Name: "Tcpip", DisplayName: "TCP/IP Protocol Driver", ImagePath: `System32\drivers\tcpip.sys`, Type: TypeKernelDriver, Status: StatusRunning, StartMode: StartModeBoot},
		{Name: "Ntfs", DisplayName: "Ntfs", ImagePath: `\SystemRoot\System32\Drivers\Ntfs.sys`, Type: 0x2, Status: StatusRunning, StartMode: StartModeBoot},
		{Name: "LanmanServer", DisplayName: "Server", ImagePath: `C:\Windows\system32\svchost.exe -k smbsvcs`, Type: 0x20, Status: StatusPaused, StartMode: StartModeAutomatic, CanStop: true, CanPauseAndContinue: true, PID: 1204},
	}
}
