//go:build windows

package srvdrv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// Access rights requested for each purpose. Nothing asks for more than it
// needs, so read-only use works without elevation.
const (
	managerAccess = windows.SC_MANAGER_CONNECT | windows.SC_MANAGER_ENUMERATE_SERVICE
	queryAccess   = windows.SERVICE_QUERY_CONFIG | windows.SERVICE_QUERY_STATUS
)

// SCMControl controls services and drivers through the Windows service
// control manager.
type SCMControl struct {
	mu sync.RWMutex
	m  *mgr.Mgr
}

// NewSystemControl connects to the native service manager
func NewSystemControl(ctx context.Context) (ServiceControl, error) {
	return NewSCMControl(ctx)
}

// NewSCMControl connects to the local service control manager
func NewSCMControl(_ context.Context) (*SCMControl, error) {
	h, err := windows.OpenSCManager(nil, nil, managerAccess)
	if err != nil {
		return nil, &OpError{Op: OpEnumerate, Err: scmError(err)}
	}
	return &SCMControl{m: &mgr.Mgr{Handle: h}}, nil
}

func (c *SCMControl) manager(op Operation, name string) (*mgr.Mgr, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.m == nil {
		return nil, &OpError{Op: op, Name: name, Err: errors.New("service control manager is closed")}
	}
	return c.m, nil
}

// Enumerate lists every service or driver in any state
func (c *SCMControl) Enumerate(ctx context.Context, kind Kind) ([]Descriptor, error) {
	m, err := c.manager(OpEnumerate, "")
	if err != nil {
		return nil, err
	}

	typ := uint32(windows.SERVICE_WIN32)
	if kind == KindDriver {
		typ = windows.SERVICE_DRIVER
	}

	entries, err := enumServices(m.Handle, typ)
	if err != nil {
		return nil, &OpError{Op: OpEnumerate, Err: scmError(err)}
	}

	out := make([]Descriptor, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, &OpError{Op: OpEnumerate, Err: err}
		}

		name := windows.UTF16PtrToString(e.ServiceName)
		d, err := c.describe(m, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			// Keep what the enumeration itself reported
			st := e.ServiceStatusProcess
			d = Descriptor{
				Name:                name,
				DisplayName:         windows.UTF16PtrToString(e.DisplayName),
				Type:                st.ServiceType,
				Status:              scmStatus(st.CurrentState),
				CanStop:             st.ControlsAccepted&scmAcceptStop != 0,
				CanPauseAndContinue: st.ControlsAccepted&scmAcceptPauseAndContinue != 0,
				PID:                 int(st.ProcessId),
			}
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// enumServices wraps EnumServicesStatusEx, growing the buffer until the
// whole list fits.
func enumServices(h windows.Handle, typ uint32) ([]windows.ENUM_SERVICE_STATUS_PROCESS, error) {
	var buf []byte
	var needed, returned uint32

	for {
		var p *byte
		if len(buf) > 0 {
			p = &buf[0]
		}
		err := windows.EnumServicesStatusEx(h, windows.SC_ENUM_PROCESS_INFO, typ, windows.SERVICE_STATE_ALL,
			p, uint32(len(buf)), &needed, &returned, nil, nil)
		if err == nil {
			break
		}
		if !errors.Is(err, windows.ERROR_MORE_DATA) || needed <= uint32(len(buf)) {
			return nil, err
		}
		buf = make([]byte, needed)
	}

	if returned == 0 {
		return nil, nil
	}
	// The entries and their name pointers live in buf
	return unsafe.Slice((*windows.ENUM_SERVICE_STATUS_PROCESS)(unsafe.Pointer(&buf[0])), int(returned)), nil
}

// Query returns the configuration and status of one unit
func (c *SCMControl) Query(_ context.Context, name string) (Descriptor, error) {
	m, err := c.manager(OpQuery, name)
	if err != nil {
		return Descriptor{}, err
	}

	d, err := c.describe(m, name)
	if err != nil {
		return Descriptor{}, &OpError{Op: OpQuery, Name: name, Err: err}
	}
	return d, nil
}

func (c *SCMControl) describe(m *mgr.Mgr, name string) (Descriptor, error) {
	s, err := openService(m, name, queryAccess)
	if err != nil {
		return Descriptor{}, err
	}
	defer func() { _ = s.Close() }()

	cfg, err := s.Config()
	if err != nil {
		return Descriptor{}, scmError(err)
	}
	st, err := s.Query()
	if err != nil {
		return Descriptor{}, scmError(err)
	}

	d := Descriptor{
		Name:                name,
		DisplayName:         cfg.DisplayName,
		Description:         cfg.Description,
		ImagePath:           cfg.BinaryPathName,
		Type:                cfg.ServiceType,
		Status:              scmStatus(uint32(st.State)),
		StartMode:           scmStartMode(cfg.StartType),
		CanStop:             st.Accepts&svc.AcceptStop != 0,
		CanPauseAndContinue: st.Accepts&svc.AcceptPauseAndContinue != 0,
		PID:                 int(st.ProcessId),
	}
	if d.DisplayName == "" {
		d.DisplayName = name
	}
	return d, nil
}

// Start starts a service or driver
func (c *SCMControl) Start(_ context.Context, name string) error {
	return c.control(OpStart, name, windows.SERVICE_START, func(s *mgr.Service) error {
		return s.Start()
	})
}

// Stop sends the stop control
func (c *SCMControl) Stop(_ context.Context, name string) error {
	return c.control(OpStop, name, windows.SERVICE_STOP, func(s *mgr.Service) error {
		_, err := s.Control(svc.Stop)
		return err
	})
}

// Pause sends the pause control
func (c *SCMControl) Pause(_ context.Context, name string) error {
	return c.control(OpPause, name, windows.SERVICE_PAUSE_CONTINUE, func(s *mgr.Service) error {
		_, err := s.Control(svc.Pause)
		return err
	})
}

// Continue sends the continue control
func (c *SCMControl) Continue(_ context.Context, name string) error {
	return c.control(OpContinue, name, windows.SERVICE_PAUSE_CONTINUE, func(s *mgr.Service) error {
		_, err := s.Control(svc.Continue)
		return err
	})
}

func (c *SCMControl) control(op Operation, name string, access uint32, fn func(*mgr.Service) error) error {
	m, err := c.manager(op, name)
	if err != nil {
		return err
	}

	s, err := openService(m, name, access)
	if err != nil {
		return &OpError{Op: op, Name: name, Err: err}
	}
	defer func() { _ = s.Close() }()

	if err := fn(s); err != nil {
		return &OpError{Op: op, Name: name, Err: scmError(err)}
	}
	return nil
}

// Close disconnects from the service control manager
func (c *SCMControl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		return nil
	}
	err := c.m.Disconnect()
	c.m = nil
	return err
}

func openService(m *mgr.Mgr, name string, access uint32) (*mgr.Service, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("invalid unit name: %w", err)
	}
	h, err := windows.OpenService(m.Handle, p, access)
	if err != nil {
		return nil, scmError(err)
	}
	return &mgr.Service{Name: name, Handle: h}, nil
}

// scmError attaches the classifying sentinel to a Win32 error
func scmError(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return classified(scmClass(uint32(errno)), err)
	}
	return err
}
