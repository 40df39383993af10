package srvdrv

// Win32 error codes returned by the service control manager
const (
	errAccessDenied             = 5
	errDependentServicesRunning = 1051
	errInvalidServiceControl    = 1052
	errServiceRequestTimeout    = 1053
	errServiceAlreadyRunning    = 1056
	errServiceDisabled          = 1058
	errServiceDoesNotExist      = 1060
	errServiceCannotAcceptCtrl  = 1061
	errServiceNotActive         = 1062
	errServiceDependencyFail    = 1068
	errServiceMarkedForDelete   = 1072
)

// scmClass returns the sentinel classifying a Win32 error code, or nil
func scmClass(code uint32) error {
	switch code {
	case errServiceDoesNotExist, errServiceMarkedForDelete:
		return ErrNotFound
	case errAccessDenied:
		return ErrAccessDenied
	case errServiceRequestTimeout:
		return ErrTimeout
	case errServiceAlreadyRunning, errServiceNotActive, errServiceCannotAcceptCtrl,
		errInvalidServiceControl, errServiceDisabled:
		return ErrInvalidState
	case errDependentServicesRunning, errServiceDependencyFail:
		return ErrDependency
	default:
		return nil
	}
}

// Start types from the service configuration
const (
	scmBootStart     = 0
	scmSystemStart   = 1
	scmAutoStart     = 2
	scmDemandStart   = 3
	scmDisabledStart = 4
)

// scmStartMode maps a configured start type to a StartMode
func scmStartMode(startType uint32) StartMode {
	switch startType {
	case scmBootStart:
		return StartModeBoot
	case scmSystemStart:
		return StartModeSystem
	case scmAutoStart:
		return StartModeAutomatic
	case scmDemandStart:
		return StartModeManual
	case scmDisabledStart:
		return StartModeDisabled
	default:
		return StartModeUnknown
	}
}

// Control codes a service reports it accepts
const (
	scmAcceptStop             = 0x1
	scmAcceptPauseAndContinue = 0x2
)

// scmStatus converts a SERVICE_* state. The values are shared with Status.
func scmStatus(state uint32) Status {
	if state < uint32(StatusStopped) || state > uint32(StatusPaused) {
		return StatusUnknown
	}
	return Status(state)
}
