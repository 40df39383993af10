package srvdrv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForStatusAlreadySatisfied(t *testing.T) {
	ctl := newDemoControl()

	start := time.Now()
	st, err := waitForStatus(context.Background(), ctl, "Spooler", StatusRunning, time.Hour)
	if err != nil {
		t.Fatalf("waitForStatus() error: %v", err)
	}
	if st != StatusRunning {
		t.Errorf("status = %s", st)
	}
	if time.Since(start) > time.Second {
		t.Error("satisfied wait slept")
	}
	if ctl.CallCount(OpQuery) != 1 {
		t.Errorf("queries = %d, want 1", ctl.CallCount(OpQuery))
	}
}

func TestWaitForStatusPolls(t *testing.T) {
	ctl := newDemoControl()
	ctl.StopDelay = 25 * time.Millisecond
	if err := ctl.Stop(context.Background(), "Spooler"); err != nil {
		t.Fatal(err)
	}

	st, err := waitForStatus(context.Background(), ctl, "Spooler", StatusStopped, testPoll)
	if err != nil {
		t.Fatalf("waitForStatus() error: %v", err)
	}
	if st != StatusStopped {
		t.Errorf("status = %s", st)
	}
	if ctl.CallCount(OpQuery) < 2 {
		t.Errorf("queries = %d, want polling", ctl.CallCount(OpQuery))
	}
}

func TestWaitForStatusTimeout(t *testing.T) {
	ctl := newDemoControl()
	ctl.Stall("Netlogon", true)
	if err := ctl.Start(context.Background(), "Netlogon"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	st, err := waitForStatus(ctx, ctl, "Netlogon", StatusRunning, testPoll)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if st != StatusStartPending {
		t.Errorf("last status = %s, want start-pending", st)
	}
}

func TestWaitForStatusRetriesTransientErrors(t *testing.T) {
	ctl := &faultyControl{MemoryControl: newDemoControl(), queryFailures: 3}

	st, err := waitForStatus(context.Background(), ctl, "Spooler", StatusRunning, testPoll)
	if err != nil {
		t.Fatalf("waitForStatus() error: %v", err)
	}
	if st != StatusRunning {
		t.Errorf("status = %s", st)
	}
}

func TestWaitForStatusTimeoutKeepsLastError(t *testing.T) {
	ctl := &faultyControl{MemoryControl: newDemoControl(), queryFailures: 1 << 20}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	st, err := waitForStatus(ctx, ctl, "Spooler", StatusRunning, testPoll)
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, errInjected) {
		t.Errorf("err = %v, want ErrTimeout joined with the query error", err)
	}
	if st != StatusUnknown {
		t.Errorf("status = %s, want unknown", st)
	}
}

func TestWaitForStatusNotFound(t *testing.T) {
	ctl := newDemoControl()

	_, err := waitForStatus(context.Background(), ctl, "Missing", StatusRunning, testPoll)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestWaitForStatusCancelled(t *testing.T) {
	ctl := newDemoControl()
	ctl.Stall("Netlogon", true)
	if err := ctl.Start(context.Background(), "Netlogon"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := waitForStatus(ctx, ctl, "Netlogon", StatusRunning, testPoll)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("cancellation reported as timeout")
	}
}
