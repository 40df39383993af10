// Package srvdrv provides the core of a service and driver control panel:
// a lifecycle controller, a command gate, a filter engine and a session
// coordinator, all independent of any user interface.
//
// Units are obtained from a Catalog, which enumerates the OS once through a
// ServiceControl and caches the result:
//
//	ctl, err := srvdrv.NewSystemControl(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctl.Close()
//
//	catalog := srvdrv.NewCatalog(ctl)
//	session := srvdrv.NewSession(catalog, srvdrv.NewController())
//
//	// Select a unit and start it
//	if _, err := session.SelectName(ctx, "Spooler"); err != nil {
//	    log.Fatal(err)
//	}
//	res, err := session.Invoke(ctx, srvdrv.CmdStart)
//	fmt.Println(res.Kind, res.Status)
//
// # Transitions
//
// Controller.Transition validates the request against the unit's cached
// status and capabilities, issues the control request, then polls until
// the target status is observed or the budget elapses (10s for start and
// stop, 5s for pause and continue). The unit is refreshed afterwards on
// every path that reached the OS, so its snapshot reflects what the OS
// actually did even after a timeout or failure.
//
// # Gate and busy flag
//
// Gate derives the enabled commands from the selection and the session's
// busy flag. While any transition is in flight every command is disabled.
// Session.Begin claims the flag and Pending.Run or Pending.Abort releases it.
//
// # Dispatcher
//
// Dispatcher runs transitions on a background worker so interactive front
// ends stay responsive during the wait window:
//
//	d := srvdrv.NewDispatcher(ctx, session)
//	defer d.Stop(srvdrv.DefaultStopGrace)
//
//	results, err := d.Dispatch(srvdrv.CmdStop)
//	if err != nil {
//	    return err
//	}
//	res := <-results
//	if n := res.Notice(); n != "" {
//	    fmt.Println(n)
//	}
//
// # Backends
//
// On Windows the service control manager is used for both services and
// drivers. On Linux systemd is used for services over D-Bus, pause and
// continue freeze and thaw the unit's cgroup, and loaded kernel modules are
// listed as read-only drivers. MemoryControl is an in-memory simulator for
// tests and demos.
package srvdrv
