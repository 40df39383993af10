package srvdrv

import (
	"errors"
	"testing"
)

func TestSCMClass(t *testing.T) {
	tests := []struct {
		code uint32
		want error
	}{
		{5, ErrAccessDenied},
		{1051, ErrDependency},
		{1052, ErrInvalidState},
		{1053, ErrTimeout},
		{1056, ErrInvalidState},
		{1058, ErrInvalidState},
		{1060, ErrNotFound},
		{1061, ErrInvalidState},
		{1062, ErrInvalidState},
		{1068, ErrDependency},
		{1072, ErrNotFound},
		{87, nil},
	}

	for _, tt := range tests {
		if got := scmClass(tt.code); !errors.Is(got, tt.want) || (tt.want == nil && got != nil) {
			t.Errorf("scmClass(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestSCMServiceTimeoutIsTimedOut(t *testing.T) {
	err := &OpError{Op: OpStart, Name: "Svc", Err: classified(scmClass(1053), errors.New("The service did not respond to the start or control request in a timely fashion."))}
	if kind, _ := classify(err); kind != ResultTimedOut {
		t.Errorf("classify() = %s, want timed-out", kind)
	}
}

func TestSCMStartMode(t *testing.T) {
	want := []StartMode{StartModeBoot, StartModeSystem, StartModeAutomatic, StartModeManual, StartModeDisabled}
	for code, mode := range want {
		if got := scmStartMode(uint32(code)); got != mode {
			t.Errorf("scmStartMode(%d) = %s, want %s", code, got, mode)
		}
	}
	if got := scmStartMode(9); got != StartModeUnknown {
		t.Errorf("scmStartMode(9) = %s", got)
	}
}

func TestSCMStatus(t *testing.T) {
	// SERVICE_STOPPED through SERVICE_PAUSED
	for state := uint32(1); state <= 7; state++ {
		if got := scmStatus(state); got != Status(state) || got == StatusUnknown {
			t.Errorf("scmStatus(%d) = %s", state, got)
		}
	}
	for _, state := range []uint32{0, 8, 0xFFFFFFFF} {
		if got := scmStatus(state); got != StatusUnknown {
			t.Errorf("scmStatus(%d) = %s, want unknown", state, got)
		}
	}
	if scmStatus(4) != StatusRunning || scmStatus(7) != StatusPaused {
		t.Error("state values drifted from the Windows constants")
	}
}
