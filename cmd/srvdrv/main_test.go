package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/axondata/go-srvdrv"
	"github.com/axondata/go-srvdrv/internal/config"
)

// runDemo runs the command line against the demo system with no
// configuration file or dotenv file
func runDemo(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	base := []string{
		"--demo",
		"--config", filepath.Join(dir, "none.yaml"),
		"--env-file", filepath.Join(dir, "none.env"),
		"--log-level", "error",
	}
	var out bytes.Buffer
	err := run(append(base, args...), &out)
	return out.String(), err
}

func TestListAll(t *testing.T) {
	out, err := runDemo(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, d := range srvdrv.DemoUnits() {
		if !strings.Contains(out, d.Name) {
			t.Errorf("list output missing %s", d.Name)
		}
	}
	if !strings.Contains(out, "8 shown") {
		t.Errorf("list output missing count:\n%s", out)
	}
}

func TestListIsDefault(t *testing.T) {
	out, err := runDemo(t)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out, "NAME") {
		t.Errorf("default command did not list:\n%s", out)
	}
}

func TestListFiltered(t *testing.T) {
	out, err := runDemo(t, "--drivers=false", "--search", "NET", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Netlogon") {
		t.Errorf("Netlogon missing:\n%s", out)
	}
	if strings.Contains(out, "NetAdapter") {
		t.Errorf("driver listed with --drivers=false:\n%s", out)
	}
	if !strings.Contains(out, "1 shown") {
		t.Errorf("count wrong:\n%s", out)
	}
}

func TestListLong(t *testing.T) {
	out, err := runDemo(t, "list", "--long")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "START") || !strings.Contains(out, "2412") {
		t.Errorf("long listing missing start mode or pid:\n%s", out)
	}
}

func TestShow(t *testing.T) {
	out, err := runDemo(t, "show", "W32Time")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Windows Time", "Status:        running", "Commands:      stop, pause", "Image path:"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestShowUnknown(t *testing.T) {
	_, err := runDemo(t, "show", "NoSuchUnit")
	if !errors.Is(err, srvdrv.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLifecycle(t *testing.T) {
	out, err := runDemo(t, "start", "Netlogon")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.HasPrefix(out, "Netlogon: running") {
		t.Errorf("start output = %q", out)
	}

	out, err = runDemo(t, "pause", "W32Time")
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !strings.HasPrefix(out, "W32Time: paused") {
		t.Errorf("pause output = %q", out)
	}
}

func TestLifecycleDisabled(t *testing.T) {
	_, err := runDemo(t, "start", "RemoteRegistry")
	if !errors.Is(err, srvdrv.ErrCommandDisabled) {
		t.Errorf("err = %v, want ErrCommandDisabled", err)
	}

	_, err = runDemo(t, "stop", "Ntfs")
	if !errors.Is(err, srvdrv.ErrCommandDisabled) {
		t.Errorf("err = %v, want ErrCommandDisabled", err)
	}
}

func TestUsageErrors(t *testing.T) {
	if _, err := runDemo(t, "start"); err == nil {
		t.Error("start without a name succeeded")
	}
	if _, err := runDemo(t, "bogus"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("err = %v, want unknown command", err)
	}
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"version"}, &out); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), srvdrv.Version) {
		t.Errorf("version output = %q", out.String())
	}
}

func TestStateRestoresCriteria(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.yaml")
	st := config.StateFrom(srvdrv.Criteria{ShowServices: false, ShowDrivers: true, SearchText: "tcp"}, "Tcpip")
	if err := config.SaveState(statePath, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	t.Setenv(config.EnvStateFile, statePath)

	out, err := runDemo(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Tcpip") || !strings.Contains(out, "1 shown") {
		t.Errorf("saved criteria not applied:\n%s", out)
	}

	// Flags win over the saved state
	out, err = runDemo(t, "--search", "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "3 shown") {
		t.Errorf("flag did not override saved search:\n%s", out)
	}
}

func TestConfigFileApplies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srvdrv.yaml")
	if err := os.WriteFile(path, []byte("filter:\n  show_services: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := run([]string{"--demo", "--config", path, "--env-file", filepath.Join(dir, "none.env"), "list"}, &out)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out.String(), "Spooler") || !strings.Contains(out.String(), "3 shown") {
		t.Errorf("config filter not applied:\n%s", out.String())
	}
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srvdrv.yaml")
	if err := os.WriteFile(path, []byte("timeouts:\n  start_stop: forever\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := run([]string{"--demo", "--config", path, "--env-file", filepath.Join(dir, "none.env"), "list"}, &bytes.Buffer{})
	if err == nil {
		t.Error("invalid configuration accepted")
	}
}
