package srvdrv

import (
	"context"
	"errors"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		code uint32
		want Kind
	}{
		{0x1, KindDriver},
		{0x2, KindDriver},
		{0x8, KindDriver},
		{0xF, KindDriver},
		{0x10, KindService},
		{0x20, KindService},
		{0x110, KindService},
	}

	for _, tt := range tests {
		if got := KindOf(tt.code); got != tt.want {
			t.Errorf("KindOf(0x%x) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusUnknown:         "unknown",
		StatusStopped:         "stopped",
		StatusStartPending:    "start-pending",
		StatusStopPending:     "stop-pending",
		StatusRunning:         "running",
		StatusContinuePending: "continue-pending",
		StatusPausePending:    "pause-pending",
		StatusPaused:          "paused",
		Status(42):            "unknown",
	}

	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestStatusIsPending(t *testing.T) {
	pending := []Status{StatusStartPending, StatusStopPending, StatusContinuePending, StatusPausePending}
	settled := []Status{StatusUnknown, StatusStopped, StatusRunning, StatusPaused}

	for _, s := range pending {
		if !s.IsPending() {
			t.Errorf("%s.IsPending() = false", s)
		}
	}
	for _, s := range settled {
		if s.IsPending() {
			t.Errorf("%s.IsPending() = true", s)
		}
	}
}

func TestUnitRefresh(t *testing.T) {
	ctl := newDemoControl()
	u := mustLookup(t, NewCatalog(ctl), "Spooler")
	before := u.RefreshedAt()

	if err := ctl.Update("Spooler", func(d *Descriptor) {
		d.Status = StatusStopped
		d.PID = 0
		d.DisplayName = "Print Spooler (renamed)"
	}); err != nil {
		t.Fatal(err)
	}

	// The snapshot does not change until refreshed
	if u.Status() != StatusRunning {
		t.Fatalf("snapshot changed without refresh: %s", u.Status())
	}

	if err := u.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if u.Status() != StatusStopped {
		t.Errorf("Status() = %s, want stopped", u.Status())
	}
	if u.DisplayName() != "Print Spooler (renamed)" {
		t.Errorf("DisplayName() = %q", u.DisplayName())
	}
	if u.RefreshedAt().Before(before) {
		t.Error("RefreshedAt went backwards")
	}
}

func TestUnitRefreshIdempotent(t *testing.T) {
	ctl := newDemoControl()
	ctx := context.Background()

	for _, d := range DemoUnits() {
		u := NewUnit(ctl, d)

		if err := u.Refresh(ctx); err != nil {
			t.Fatalf("%s: first Refresh() error: %v", d.Name, err)
		}
		first, firstGate := u.Snapshot(), GateFor(u.Snapshot())

		if err := u.Refresh(ctx); err != nil {
			t.Fatalf("%s: second Refresh() error: %v", d.Name, err)
		}
		if second := u.Snapshot(); second != first {
			t.Errorf("%s: snapshot changed without an OS change\nfirst  %+v\nsecond %+v", d.Name, first, second)
		}
		if GateFor(u.Snapshot()) != firstGate {
			t.Errorf("%s: commands changed between refreshes", d.Name)
		}
		if u.Stale() {
			t.Errorf("%s: became stale", d.Name)
		}
	}
}

func TestUnitBecomesStale(t *testing.T) {
	ctl := newDemoControl()
	u := mustLookup(t, NewCatalog(ctl), "W32Time")
	ctl.Remove("W32Time")

	err := u.Refresh(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Refresh() = %v, want ErrNotFound", err)
	}
	if !u.Stale() {
		t.Fatal("unit not stale")
	}

	queries := ctl.CallCount(OpQuery)
	if err := u.Refresh(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Refresh() = %v, want ErrNotFound", err)
	}
	if ctl.CallCount(OpQuery) != queries {
		t.Error("stale unit queried the OS again")
	}

	// The last snapshot stays readable
	if u.DisplayName() != "Windows Time" {
		t.Errorf("DisplayName() = %q", u.DisplayName())
	}
}

func TestUnitRefreshTransientError(t *testing.T) {
	ctl := &faultyControl{MemoryControl: newDemoControl(), queryFailures: 1}
	u := NewUnit(ctl, DemoUnits()[0])

	if err := u.Refresh(context.Background()); !errors.Is(err, errInjected) {
		t.Fatalf("Refresh() = %v, want injected error", err)
	}
	if u.Stale() {
		t.Error("transient error marked the unit stale")
	}
	if err := u.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh() after transient error = %v", err)
	}
}

func TestUnitImageDir(t *testing.T) {
	u := NewUnit(newDemoControl(), Descriptor{Name: "svc", ImagePath: `"C:\Program Files\Svc\svc.exe" -run`, Type: TypeOwnProcess})
	dir, err := u.ImageDir()
	if err != nil {
		t.Fatalf("ImageDir() error: %v", err)
	}
	if dir != `C:\Program Files\Svc` {
		t.Errorf("ImageDir() = %q", dir)
	}
}
