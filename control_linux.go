//go:build linux

package srvdrv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DefaultModulesPath is where the Linux backend reads loaded kernel modules
const DefaultModulesPath = "/proc/modules"

// SystemdControl controls systemd services over D-Bus and reports loaded
// kernel modules as read-only drivers.
type SystemdControl struct {
	// ModulesPath is the kernel module table, DefaultModulesPath by default
	ModulesPath string

	mu   sync.RWMutex
	conn *dbus.Conn
}

// NewSystemControl connects to the native service manager
func NewSystemControl(ctx context.Context) (ServiceControl, error) {
	return NewSystemdControl(ctx)
}

// NewSystemdControl connects to the systemd system bus
func NewSystemdControl(ctx context.Context) (*SystemdControl, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, &OpError{Op: OpEnumerate, Err: fmt.Errorf("connect to systemd: %w", err)}
	}
	return &SystemdControl{
		ModulesPath: DefaultModulesPath,
		conn:        conn,
	}, nil
}

func (c *SystemdControl) connection(op Operation, name string) (*dbus.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil, &OpError{Op: op, Name: name, Err: errors.New("systemd connection is closed")}
	}
	return c.conn, nil
}

// Enumerate lists services, both loaded and installed-but-unloaded, or
// loaded kernel modules.
func (c *SystemdControl) Enumerate(ctx context.Context, kind Kind) ([]Descriptor, error) {
	if kind == KindDriver {
		return c.modules()
	}

	conn, err := c.connection(OpEnumerate, "")
	if err != nil {
		return nil, err
	}

	names := make(map[string]struct{})

	loaded, err := conn.ListUnitsByPatternsContext(ctx, nil, []string{"*" + serviceSuffix})
	if err != nil {
		return nil, &OpError{Op: OpEnumerate, Err: err}
	}
	for _, u := range loaded {
		if u.LoadState != "not-found" {
			names[u.Name] = struct{}{}
		}
	}

	files, err := conn.ListUnitFilesByPatternsContext(ctx, nil, []string{"*" + serviceSuffix})
	if err != nil {
		return nil, &OpError{Op: OpEnumerate, Err: err}
	}
	for _, f := range files {
		unit := baseName(f.Path)
		if !isTemplateUnit(unit) {
			names[unit] = struct{}{}
		}
	}

	out := make([]Descriptor, 0, len(names))
	for unit := range names {
		d, err := c.describe(ctx, conn, unit)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, &OpError{Op: OpEnumerate, Err: err}
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Query returns the current descriptor of a service or kernel module
func (c *SystemdControl) Query(ctx context.Context, name string) (Descriptor, error) {
	conn, err := c.connection(OpQuery, name)
	if err != nil {
		return Descriptor{}, err
	}

	d, err := c.describe(ctx, conn, unitFileName(name))
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Descriptor{}, &OpError{Op: OpQuery, Name: name, Err: err}
	}

	mods, merr := c.modules()
	if merr != nil {
		return Descriptor{}, &OpError{Op: OpQuery, Name: name, Err: merr}
	}
	for _, m := range mods {
		if m.Name == name {
			return m, nil
		}
	}
	return Descriptor{}, &OpError{Op: OpQuery, Name: name, Err: ErrNotFound}
}

func (c *SystemdControl) describe(ctx context.Context, conn *dbus.Conn, unit string) (Descriptor, error) {
	props, err := conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		if isNoSuchUnit(err) {
			return Descriptor{}, ErrNotFound
		}
		return Descriptor{}, err
	}

	svcProps, err := conn.GetUnitTypePropertiesContext(ctx, unit, "Service")
	if err != nil && !isNoSuchUnit(err) {
		return Descriptor{}, err
	}

	d, ok := systemdDescriptor(unit, props, svcProps)
	if !ok {
		return Descriptor{}, ErrNotFound
	}
	return d, nil
}

// Start starts a service
func (c *SystemdControl) Start(ctx context.Context, name string) error {
	return c.job(OpStart, name, func(conn *dbus.Conn, unit string) error {
		_, err := conn.StartUnitContext(ctx, unit, "replace", nil)
		return err
	})
}

// Stop stops a service
func (c *SystemdControl) Stop(ctx context.Context, name string) error {
	return c.job(OpStop, name, func(conn *dbus.Conn, unit string) error {
		_, err := conn.StopUnitContext(ctx, unit, "replace", nil)
		return err
	})
}

// Pause freezes a service's cgroup
func (c *SystemdControl) Pause(ctx context.Context, name string) error {
	return c.job(OpPause, name, func(conn *dbus.Conn, unit string) error {
		return conn.FreezeUnit(ctx, unit)
	})
}

// Continue thaws a frozen service
func (c *SystemdControl) Continue(ctx context.Context, name string) error {
	return c.job(OpContinue, name, func(conn *dbus.Conn, unit string) error {
		return conn.ThawUnit(ctx, unit)
	})
}

func (c *SystemdControl) job(op Operation, name string, fn func(*dbus.Conn, string) error) error {
	conn, err := c.connection(op, name)
	if err != nil {
		return err
	}

	if err := fn(conn, unitFileName(name)); err != nil {
		return &OpError{Op: op, Name: name, Err: systemdError(err)}
	}
	return nil
}

// Close closes the D-Bus connection
func (c *SystemdControl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}

func (c *SystemdControl) modules() ([]Descriptor, error) {
	f, err := os.Open(c.ModulesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &OpError{Op: OpEnumerate, Err: err}
	}
	defer func() { _ = f.Close() }()

	mods, err := parseProcModules(f)
	if err != nil {
		return nil, &OpError{Op: OpEnumerate, Err: err}
	}
	return mods, nil
}
