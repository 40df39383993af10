package srvdrv

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"
)

// systemd unit suffix handled by the Linux backend
const serviceSuffix = ".service"

// Unit type suffixes systemd accepts in a full unit name
var unitSuffixes = []string{
	serviceSuffix, ".socket", ".target", ".device", ".mount", ".automount",
	".swap", ".path", ".timer", ".slice", ".scope",
}

// unitFileName returns the systemd unit name for a unit name. Names may
// contain dots (snap.lxd.daemon), so only a known type suffix is kept.
func unitFileName(name string) string {
	for _, suffix := range unitSuffixes {
		if strings.HasSuffix(name, suffix) {
			return name
		}
	}
	return name + serviceSuffix
}

// unitShortName strips the .service suffix unless the rest would read as
// another unit type
func unitShortName(unit string) string {
	short := strings.TrimSuffix(unit, serviceSuffix)
	if short != unit && unitFileName(short) != unit {
		return unit
	}
	return short
}

// isTemplateUnit reports whether unit is a template such as getty@.service
func isTemplateUnit(unit string) bool {
	return strings.HasSuffix(unit, "@"+serviceSuffix)
}

// systemdStatus maps systemd's ActiveState and FreezerState to a Status.
// A frozen unit is reported as paused.
func systemdStatus(activeState, freezerState string) Status {
	switch freezerState {
	case "frozen":
		return StatusPaused
	case "freezing":
		return StatusPausePending
	case "thawing":
		return StatusContinuePending
	}

	switch activeState {
	case "active", "reloading", "refreshing":
		return StatusRunning
	case "activating":
		return StatusStartPending
	case "deactivating":
		return StatusStopPending
	case "inactive", "failed", "maintenance":
		return StatusStopped
	default:
		return StatusUnknown
	}
}

// systemdStartMode maps an UnitFileState to a StartMode
func systemdStartMode(unitFileState string) StartMode {
	switch unitFileState {
	case "enabled", "enabled-runtime", "linked", "linked-runtime", "alias":
		return StartModeAutomatic
	case "disabled", "static", "indirect", "generated", "transient":
		return StartModeManual
	case "masked", "masked-runtime":
		return StartModeDisabled
	default:
		return StartModeUnknown
	}
}

// isNoSuchUnit reports whether err is systemd's NoSuchUnit D-Bus error
func isNoSuchUnit(err error) bool {
	if err == nil {
		return false
	}
	// org.freedesktop.systemd1.NoSuchUnit
	return strings.Contains(err.Error(), "NoSuchUnit")
}

// systemdDescriptor builds a Descriptor from the generic unit properties
// and the Service-specific properties of one unit. It reports false when
// the unit is not installed.
func systemdDescriptor(unit string, props, svcProps map[string]interface{}) (Descriptor, bool) {
	if stringProp(props, "LoadState") == "not-found" {
		return Descriptor{}, false
	}

	d := Descriptor{
		Name:        unitShortName(unit),
		DisplayName: stringProp(props, "Description"),
		Type:        TypeOwnProcess,
		Status:      systemdStatus(stringProp(props, "ActiveState"), stringProp(props, "FreezerState")),
		StartMode:   systemdStartMode(stringProp(props, "UnitFileState")),
		CanStop:     boolProp(props, "CanStop"),
		// CanFreeze is missing before systemd 246
		CanPauseAndContinue: boolProp(props, "CanFreeze"),
		ImagePath:           execStartPath(svcProps["ExecStart"]),
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	if pid, ok := svcProps["MainPID"].(uint32); ok {
		d.PID = int(pid)
	}
	return d, true
}

// execStartPath returns the binary of the first ExecStart entry.
// ExecStart is a(sasbttttuii); the first field is the path.
func execStartPath(v interface{}) string {
	entries, ok := v.([][]interface{})
	if !ok || len(entries) == 0 || len(entries[0]) == 0 {
		return ""
	}
	p, _ := entries[0][0].(string)
	return p
}

func stringProp(props map[string]interface{}, key string) string {
	s, _ := props[key].(string)
	return s
}

func boolProp(props map[string]interface{}, key string) bool {
	b, _ := props[key].(bool)
	return b
}

// parseProcModules reads /proc/modules. Each line is
// "name size refcount deps state offset". Modules are reported as
// kernel drivers that cannot be controlled.
func parseProcModules(r io.Reader) ([]Descriptor, error) {
	var out []Descriptor

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			continue
		}

		st := StatusUnknown
		switch fields[4] {
		case "Live":
			st = StatusRunning
		case "Loading":
			st = StatusStartPending
		case "Unloading":
			st = StatusStopPending
		}

		out = append(out, Descriptor{
			Name:        fields[0],
			DisplayName: fields[0],
			Description: fmt.Sprintf("kernel module (%s bytes, used by %s)", fields[1], fields[2]),
			Type:        TypeKernelDriver,
			Status:      st,
			StartMode:   StartModeSystem,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// systemdError classifies a D-Bus error by its error name
func systemdError(err error) error {
	msg := err.Error()
	switch {
	case isNoSuchUnit(err):
		return classified(ErrNotFound, err)
	case contains(msg, "AccessDenied", "InteractiveAuthorizationRequired"):
		return classified(ErrAccessDenied, err)
	case contains(msg, "UnitMasked", "NotSupported", "JobTypeNotApplicable", "OnlyByDependency"):
		return classified(ErrInvalidState, err)
	case contains(msg, "TransactionIsDestructive", "TransactionJobsConflicting"):
		return classified(ErrDependency, err)
	case contains(msg, "Timeout", "NoReply"):
		return classified(ErrTimeout, err)
	default:
		return err
	}
}

// baseName returns the unit name of a unit file path
func baseName(p string) string {
	return path.Base(p)
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
