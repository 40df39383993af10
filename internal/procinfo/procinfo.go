// Package procinfo describes the process behind a running unit
package procinfo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/process"
)

// ErrNoProcess is returned for units without a process
var ErrNoProcess = errors.New("procinfo: unit has no process")

// Info is a point-in-time view of one process
type Info struct {
	PID        int
	Name       string
	RSS        uint64
	CPUPercent float64
	Started    time.Time
	Cmdline    string
}

// Lookup reads the process with the given pid
func Lookup(ctx context.Context, pid int) (Info, error) {
	if pid <= 0 {
		return Info{}, ErrNoProcess
	}

	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Info{}, fmt.Errorf("procinfo: pid %d: %w", pid, err)
	}

	info := Info{PID: pid}
	if info.Name, err = p.NameWithContext(ctx); err != nil {
		return Info{}, fmt.Errorf("procinfo: pid %d: %w", pid, err)
	}

	// The remaining fields are best effort; some need elevated rights.
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		info.RSS = mem.RSS
	}
	if ms, err := p.CreateTimeWithContext(ctx); err == nil && ms > 0 {
		info.Started = time.UnixMilli(ms)
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		info.CPUPercent = cpu
	}
	if cmd, err := p.CmdlineWithContext(ctx); err == nil {
		info.Cmdline = cmd
	}

	return info, nil
}

// Summary formats the process for a one-line status display
func (i Info) Summary() string {
	s := fmt.Sprintf("%s (pid %d)", i.Name, i.PID)
	if i.RSS > 0 {
		s += ", " + humanize.IBytes(i.RSS) + " resident"
	}
	if !i.Started.IsZero() {
		s += ", started " + humanize.Time(i.Started)
	}
	return s
}
