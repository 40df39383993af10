package srvdrv

import "time"

// Wait budgets and polling defaults
const (
	// DefaultStartStopTimeout is how long Start and Stop wait for the target status
	DefaultStartStopTimeout = 10 * time.Second

	// DefaultPauseContinueTimeout is how long Pause and Continue wait for the target status
	DefaultPauseContinueTimeout = 5 * time.Second

	// DefaultPollInterval is the delay between status queries while waiting
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultRefreshTimeout bounds the post-transition refresh query
	DefaultRefreshTimeout = 2 * time.Second

	// DefaultEnumerateTimeout bounds the initial catalog enumeration
	DefaultEnumerateTimeout = 30 * time.Second
)

// DriverTypeThreshold separates drivers from services: any unit whose type
// code is below this value is a driver.
// Reference: SERVICE_KERNEL_DRIVER (0x1), SERVICE_FILE_SYSTEM_DRIVER (0x2),
// SERVICE_WIN32_OWN_PROCESS (0x10), SERVICE_WIN32_SHARE_PROCESS (0x20).
const DriverTypeThreshold = 0x10

// Type codes reported by backends that do not have native ones
const (
	// TypeKernelDriver is the type code used for kernel drivers and modules
	TypeKernelDriver uint32 = 0x1

	// TypeOwnProcess is the type code used for services running in their own process
	TypeOwnProcess uint32 = 0x10
)

// Operation represents a lifecycle or query operation against a unit
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpStart starts a stopped unit
	OpStart
	// OpStop stops a running unit
	OpStop
	// OpPause pauses a running unit
	OpPause
	// OpContinue resumes a paused unit
	OpContinue
	// OpQuery reads the current status of a unit
	OpQuery
	// OpEnumerate lists the units of one kind
	OpEnumerate
)

// Operation string constants
const (
	opUnknownStr   = "unknown"
	opStartStr     = "start"
	opStopStr      = "stop"
	opPauseStr     = "pause"
	opContinueStr  = "continue"
	opQueryStr     = "query"
	opEnumerateStr = "enumerate"
)

// String returns the string representation of an Operation
func (op Operation) String() string {
	switch op {
	case OpStart:
		return opStartStr
	case OpStop:
		return opStopStr
	case OpPause:
		return opPauseStr
	case OpContinue:
		return opContinueStr
	case OpQuery:
		return opQueryStr
	case OpEnumerate:
		return opEnumerateStr
	default:
		return opUnknownStr
	}
}

// ParseOperation maps a lifecycle name to its Operation.
// It returns OpUnknown for anything that is not start, stop, pause or continue.
func ParseOperation(s string) Operation {
	switch s {
	case opStartStr:
		return OpStart
	case opStopStr:
		return OpStop
	case opPauseStr:
		return OpPause
	case opContinueStr, "cont", "resume":
		return OpContinue
	default:
		return OpUnknown
	}
}

// IsLifecycle reports whether op changes the state of a unit
func (op Operation) IsLifecycle() bool {
	switch op {
	case OpStart, OpStop, OpPause, OpContinue:
		return true
	default:
		return false
	}
}

// Target returns the status a lifecycle operation waits for.
// Non-lifecycle operations return StatusUnknown.
func (op Operation) Target() Status {
	switch op {
	case OpStart, OpContinue:
		return StatusRunning
	case OpStop:
		return StatusStopped
	case OpPause:
		return StatusPaused
	default:
		return StatusUnknown
	}
}
