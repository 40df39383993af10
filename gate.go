package srvdrv

// Command is a user-invocable action
type Command int

const (
	// CmdStart starts the selected unit
	CmdStart Command = iota
	// CmdStop stops the selected unit
	CmdStop
	// CmdPause pauses the selected unit
	CmdPause
	// CmdContinue resumes the selected unit
	CmdContinue
	// CmdPauseContinue pauses or resumes depending on the selected unit's status
	CmdPauseContinue
)

// String returns the string representation of a Command
func (c Command) String() string {
	switch c {
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	case CmdPause:
		return "pause"
	case CmdContinue:
		return "continue"
	case CmdPauseContinue:
		return "pause/continue"
	default:
		return "unknown"
	}
}

// CommandFor maps a lifecycle operation to its command
func CommandFor(op Operation) (Command, bool) {
	switch op {
	case OpStart:
		return CmdStart, true
	case OpStop:
		return CmdStop, true
	case OpPause:
		return CmdPause, true
	case OpContinue:
		return CmdContinue, true
	default:
		return 0, false
	}
}

// Operation resolves the command to the lifecycle operation it performs on d.
// CmdPauseContinue resolves to OpPause when running, OpContinue when paused
// and OpUnknown otherwise.
func (c Command) Operation(d Descriptor) Operation {
	switch c {
	case CmdStart:
		return OpStart
	case CmdStop:
		return OpStop
	case CmdPause:
		return OpPause
	case CmdContinue:
		return OpContinue
	case CmdPauseContinue:
		switch d.Status {
		case StatusRunning:
			return OpPause
		case StatusPaused:
			return OpContinue
		}
	}
	return OpUnknown
}

// Commands holds the enabled state of every command
type Commands struct {
	Start         bool
	Stop          bool
	Pause         bool
	Continue      bool
	PauseContinue bool
}

// Enabled reports whether cmd may be invoked
func (c Commands) Enabled(cmd Command) bool {
	switch cmd {
	case CmdStart:
		return c.Start
	case CmdStop:
		return c.Stop
	case CmdPause:
		return c.Pause
	case CmdContinue:
		return c.Continue
	case CmdPauseContinue:
		return c.PauseContinue
	default:
		return false
	}
}

// Any reports whether at least one command is enabled
func (c Commands) Any() bool {
	return c.Start || c.Stop || c.Pause || c.Continue || c.PauseContinue
}

// Gate derives the enabled state of every command from the selected unit
// and the busy flag. It is a pure function of its inputs and must be
// recomputed after a selection change, a busy change, a refresh, or the
// completion of a transition.
func Gate(selected *Unit, busy bool) Commands {
	if selected == nil || busy || selected.Stale() {
		return Commands{}
	}
	return GateFor(selected.Snapshot())
}

// GateFor computes command enablement for a descriptor, ignoring the busy flag
func GateFor(d Descriptor) Commands {
	return Commands{
		Start:         permits(d, OpStart),
		Stop:          permits(d, OpStop),
		Pause:         permits(d, OpPause),
		Continue:      permits(d, OpContinue),
		PauseContinue: d.CanPauseAndContinue,
	}
}

// permits is the precondition table shared by the gate and the controller
func permits(d Descriptor, op Operation) bool {
	switch op {
	case OpStart:
		return d.Status == StatusStopped && d.StartMode != StartModeDisabled
	case OpStop:
		return d.Status == StatusRunning && d.CanStop
	case OpPause:
		return d.Status == StatusRunning && d.CanPauseAndContinue
	case OpContinue:
		return d.Status == StatusPaused && d.CanPauseAndContinue
	default:
		return false
	}
}
