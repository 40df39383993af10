package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/axondata/go-srvdrv"
	"github.com/axondata/go-srvdrv/internal/procinfo"
)

func cmdList(ctx context.Context, a *app, out io.Writer) error {
	units, err := a.session.Visible(ctx)
	if err != nil {
		return err
	}

	if a.opts.long {
		fmt.Fprintf(out, "%-24s %-8s %-17s %-10s %7s  %s\n", "NAME", "KIND", "STATUS", "START", "PID", "DISPLAY NAME")
	} else {
		fmt.Fprintf(out, "%-24s %-8s %-17s %s\n", "NAME", "KIND", "STATUS", "DISPLAY NAME")
	}

	for _, u := range units {
		d := u.Snapshot()
		if a.opts.long {
			pid := "-"
			if d.PID > 0 {
				pid = fmt.Sprint(d.PID)
			}
			fmt.Fprintf(out, "%-24s %-8s %-17s %-10s %7s  %s\n", d.Name, d.Kind(), d.Status, d.StartMode, pid, d.DisplayName)
			continue
		}
		fmt.Fprintf(out, "%-24s %-8s %-17s %s\n", d.Name, d.Kind(), d.Status, d.DisplayName)
	}

	fmt.Fprintf(out, "%s shown\n", humanize.Comma(int64(len(units))))
	return nil
}

func cmdShow(ctx context.Context, a *app, name string, out io.Writer) error {
	u, err := a.session.SelectName(ctx, name)
	if err != nil {
		return err
	}
	if err := a.session.Refresh(ctx); err != nil {
		return err
	}

	d := u.Snapshot()
	fmt.Fprintf(out, "Name:          %s\n", d.Name)
	fmt.Fprintf(out, "Display name:  %s\n", d.DisplayName)
	if d.Description != "" {
		fmt.Fprintf(out, "Description:   %s\n", d.Description)
	}
	fmt.Fprintf(out, "Kind:          %s (type 0x%x)\n", d.Kind(), d.Type)
	fmt.Fprintf(out, "Status:        %s\n", d.Status)
	fmt.Fprintf(out, "Start mode:    %s\n", d.StartMode)
	fmt.Fprintf(out, "Image path:    %s\n", d.ImagePath)
	if dir, err := u.ImageDir(); err == nil {
		fmt.Fprintf(out, "Image folder:  %s\n", dir)
	}
	fmt.Fprintf(out, "Commands:      %s\n", enabledCommands(a.session.Commands()))
	fmt.Fprintf(out, "Refreshed:     %s\n", humanize.Time(u.RefreshedAt()))

	if d.PID > 0 {
		info, err := procinfo.Lookup(ctx, d.PID)
		if err != nil {
			fmt.Fprintf(out, "Process:       pid %d (%v)\n", d.PID, err)
		} else {
			fmt.Fprintf(out, "Process:       %s\n", info.Summary())
		}
	}
	return nil
}

func cmdLifecycle(ctx context.Context, a *app, cmd srvdrv.Command, name string, out io.Writer) error {
	if _, err := a.session.SelectName(ctx, name); err != nil {
		return err
	}
	// The gate works on the cached snapshot
	if err := a.session.Refresh(ctx); err != nil {
		return err
	}

	res, err := a.session.Invoke(ctx, cmd)
	if err != nil {
		return err
	}

	if res.OK() {
		fmt.Fprintf(out, "%s: %s (%s)\n", res.Unit, res.Status, res.Elapsed.Round(time.Millisecond))
		return nil
	}

	code := 1
	if res.Kind == srvdrv.ResultTimedOut {
		code = 2
	}
	return &exitError{code: code, msg: fmt.Sprintf("%s %s: %s", res.Op, res.Unit, res.Notice())}
}

func enabledCommands(c srvdrv.Commands) string {
	var names []string
	for _, cmd := range []srvdrv.Command{srvdrv.CmdStart, srvdrv.CmdStop, srvdrv.CmdPause, srvdrv.CmdContinue} {
		if c.Enabled(cmd) {
			names = append(names, cmd.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
