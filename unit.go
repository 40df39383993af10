package srvdrv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Kind distinguishes services from drivers
type Kind int

const (
	// KindService is a user-mode service
	KindService Kind = iota
	// KindDriver is a kernel or file-system driver
	KindDriver
)

// String returns the string representation of a Kind
func (k Kind) String() string {
	if k == KindDriver {
		return "driver"
	}
	return "service"
}

// KindOf classifies a raw type code
func KindOf(typeCode uint32) Kind {
	if typeCode < DriverTypeThreshold {
		return KindDriver
	}
	return KindService
}

// Status is the OS-reported state of a unit.
// Values mirror the Windows SERVICE_* state constants.
type Status uint32

const (
	// StatusUnknown is reported when the backend could not map the state
	StatusUnknown Status = iota
	// StatusStopped means the unit is not running
	StatusStopped
	// StatusStartPending means the unit is starting
	StatusStartPending
	// StatusStopPending means the unit is stopping
	StatusStopPending
	// StatusRunning means the unit is running
	StatusRunning
	// StatusContinuePending means the unit is resuming from pause
	StatusContinuePending
	// StatusPausePending means the unit is pausing
	StatusPausePending
	// StatusPaused means the unit is paused
	StatusPaused
)

// Status string constants
const (
	statusUnknownStr         = "unknown"
	statusStoppedStr         = "stopped"
	statusStartPendingStr    = "start-pending"
	statusStopPendingStr     = "stop-pending"
	statusRunningStr         = "running"
	statusContinuePendingStr = "continue-pending"
	statusPausePendingStr    = "pause-pending"
	statusPausedStr          = "paused"
)

// String returns the string representation of a Status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return statusStoppedStr
	case StatusStartPending:
		return statusStartPendingStr
	case StatusStopPending:
		return statusStopPendingStr
	case StatusRunning:
		return statusRunningStr
	case StatusContinuePending:
		return statusContinuePendingStr
	case StatusPausePending:
		return statusPausePendingStr
	case StatusPaused:
		return statusPausedStr
	default:
		return statusUnknownStr
	}
}

// IsPending reports whether s is one of the transient *Pending states
func (s Status) IsPending() bool {
	switch s {
	case StatusStartPending, StatusStopPending, StatusContinuePending, StatusPausePending:
		return true
	default:
		return false
	}
}

// StartMode is the configured start behavior of a unit
type StartMode int

const (
	// StartModeUnknown is used by backends that cannot report a start mode
	StartModeUnknown StartMode = iota
	// StartModeBoot is loaded by the boot loader (drivers only)
	StartModeBoot
	// StartModeSystem is started during kernel initialization (drivers only)
	StartModeSystem
	// StartModeAutomatic is started at system startup
	StartModeAutomatic
	// StartModeManual is started on demand
	StartModeManual
	// StartModeDisabled cannot be started
	StartModeDisabled
)

// String returns the string representation of a StartMode
func (m StartMode) String() string {
	switch m {
	case StartModeBoot:
		return "boot"
	case StartModeSystem:
		return "system"
	case StartModeAutomatic:
		return "automatic"
	case StartModeManual:
		return "manual"
	case StartModeDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Descriptor is the raw description of a unit as reported by a ServiceControl
type Descriptor struct {
	// Name is the unique, stable unit name
	Name string
	// DisplayName is the human-readable name
	DisplayName string
	// Description is an optional longer description
	Description string
	// ImagePath is the executable image path, possibly quoted and with arguments
	ImagePath string
	// Type is the raw type code; see KindOf
	Type uint32
	// Status is the current state
	Status Status
	// StartMode is the configured start behavior
	StartMode StartMode
	// CanStop reports whether the unit accepts stop requests
	CanStop bool
	// CanPauseAndContinue reports whether the unit accepts pause and continue requests
	CanPauseAndContinue bool
	// PID is the process ID of a running unit, 0 if none
	PID int
}

// Kind returns the unit kind derived from the type code
func (d Descriptor) Kind() Kind {
	return KindOf(d.Type)
}

// Unit is the cached snapshot of one service or driver.
// It only changes when Refresh re-queries the OS.
type Unit struct {
	mu          sync.RWMutex
	ctl         ServiceControl
	desc        Descriptor
	stale       bool
	refreshedAt time.Time
}

// NewUnit creates a snapshot from a descriptor previously returned by ctl
func NewUnit(ctl ServiceControl, d Descriptor) *Unit {
	return &Unit{
		ctl:         ctl,
		desc:        d,
		refreshedAt: time.Now(),
	}
}

// Name returns the unique unit name
func (u *Unit) Name() string {
	// Name never changes after construction.
	return u.desc.Name
}

// DisplayName returns the human-readable name
func (u *Unit) DisplayName() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.desc.DisplayName
}

// ImagePath returns the raw executable image path
func (u *Unit) ImagePath() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.desc.ImagePath
}

// Kind returns whether the unit is a service or a driver
func (u *Unit) Kind() Kind {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.desc.Kind()
}

// Status returns the status at last refresh
func (u *Unit) Status() Status {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.desc.Status
}

// Snapshot returns a copy of the unit's descriptor at last refresh
func (u *Unit) Snapshot() Descriptor {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.desc
}

// Stale reports whether the unit no longer exists in the OS
func (u *Unit) Stale() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.stale
}

// RefreshedAt returns when the snapshot was last filled from the OS
func (u *Unit) RefreshedAt() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.refreshedAt
}

// ImageDir returns the directory containing the unit's executable
func (u *Unit) ImageDir() (string, error) {
	return ImageDir(u.ImagePath())
}

// Refresh re-queries the OS for the unit's current status and capabilities.
// A unit that has disappeared becomes stale and every later Refresh fails
// with ErrNotFound without querying the OS again.
func (u *Unit) Refresh(ctx context.Context) error {
	if u.Stale() {
		return &OpError{Op: OpQuery, Name: u.Name(), Err: ErrNotFound}
	}

	d, err := u.ctl.Query(ctx, u.Name())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			u.markStale()
		}
		return err
	}
	if d.Name != u.Name() {
		return &OpError{Op: OpQuery, Name: u.Name(), Err: fmt.Errorf("backend returned unit %q", d.Name)}
	}

	u.mu.Lock()
	u.desc = d
	u.refreshedAt = time.Now()
	u.mu.Unlock()
	return nil
}

func (u *Unit) markStale() {
	u.mu.Lock()
	u.stale = true
	u.mu.Unlock()
}

func (u *Unit) control() ServiceControl {
	return u.ctl
}
