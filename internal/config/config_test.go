package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axondata/go-srvdrv"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// noEnv points Load at a .env file that does not exist
func noEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"), noEnv(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10*time.Second, cfg.StartStopTimeout)
	assert.Equal(t, 5*time.Second, cfg.PauseContinueTimeout)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "srvdrv.yaml")
	writeFile(t, path, `
timeouts:
  start_stop: 20s
  pause_continue: 8s
  poll_interval: 100ms
filter:
  show_drivers: false
  search: net
log:
  level: debug
  format: json
state_file: /tmp/srvdrv-state.yaml
`)

	cfg, err := Load(path, noEnv(t))
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.StartStopTimeout)
	assert.Equal(t, 8*time.Second, cfg.PauseContinueTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, srvdrv.DefaultRefreshTimeout, cfg.RefreshTimeout)
	assert.Equal(t, srvdrv.Criteria{ShowServices: true, ShowDrivers: false, SearchText: "net"}, cfg.Criteria)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/tmp/srvdrv-state.yaml", cfg.StateFile)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	writeFile(t, path, "")

	cfg, err := Load(path, noEnv(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "srvdrv.yaml")
	writeFile(t, path, "timeouts:\n  start_stop: 20s\n")

	t.Setenv(EnvStartStopTimeout, "3s")
	t.Setenv(EnvShowServices, "false")
	t.Setenv(EnvSearch, "spool")
	t.Setenv(EnvDemo, "true")

	cfg, err := Load(path, noEnv(t))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.StartStopTimeout)
	assert.False(t, cfg.Criteria.ShowServices)
	assert.True(t, cfg.Criteria.ShowDrivers)
	assert.Equal(t, "spool", cfg.Criteria.SearchText)
	assert.True(t, cfg.Demo)
}

func TestLoadDotenv(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	writeFile(t, envPath, "SRVDRV_REFRESH_TIMEOUT=750ms\n")
	t.Cleanup(func() { _ = os.Unsetenv(EnvRefreshTimeout) })

	cfg, err := Load("", envPath)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.RefreshTimeout)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "timeouts:\n  bogus: 1s\n"},
		{"bad duration", "timeouts:\n  start_stop: soon\n"},
		{"negative duration", "timeouts:\n  start_stop: -1s\n"},
		{"poll exceeds budget", "timeouts:\n  pause_continue: 1s\n  poll_interval: 2s\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad format", "log:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "srvdrv.yaml")
			writeFile(t, path, tt.content)

			_, err := Load(path, noEnv(t))
			assert.Error(t, err)
		})
	}
}

func TestLoadBadEnvBool(t *testing.T) {
	t.Setenv(EnvShowDrivers, "sometimes")
	_, err := Load("", noEnv(t))
	assert.ErrorContains(t, err, EnvShowDrivers)
}

func TestApplyReconfiguresController(t *testing.T) {
	cfg := Default()
	cfg.StartStopTimeout = 3 * time.Second
	cfg.PauseContinueTimeout = 2 * time.Second

	ctl := srvdrv.NewController(cfg.ControllerOptions(zerolog.Nop())...)
	assert.Equal(t, 3*time.Second, ctl.Budget(srvdrv.OpStart))

	cfg.StartStopTimeout = 7 * time.Second
	cfg.Apply(ctl)
	assert.Equal(t, 7*time.Second, ctl.Budget(srvdrv.OpStop))
	assert.Equal(t, 2*time.Second, ctl.Budget(srvdrv.OpPause))
}

func TestStateSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")

	want := StateFrom(srvdrv.Criteria{ShowServices: false, ShowDrivers: true, SearchText: "tcp"}, "Tcpip")
	require.NoError(t, SaveState(path, want))

	got, err := LoadState(path, srvdrv.DefaultCriteria())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, srvdrv.Criteria{ShowDrivers: true, SearchText: "tcp"}, got.Criteria())
}

func TestStateSaveReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	require.NoError(t, SaveState(path, StateFrom(srvdrv.DefaultCriteria(), "Spooler")))
	require.NoError(t, SaveState(path, StateFrom(srvdrv.DefaultCriteria(), "Tcpip")))

	got, err := LoadState(path, srvdrv.DefaultCriteria())
	require.NoError(t, err)
	assert.Equal(t, "Tcpip", got.Selected)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files left behind")
	assert.Equal(t, "state.yaml", entries[0].Name())
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	writeFile(t, path, "old")

	require.NoError(t, writeFileAtomic(path, []byte("new"), 0o600))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	err = writeFileAtomic(filepath.Join(t.TempDir(), "absent", "data"), []byte("x"), 0o600)
	assert.Error(t, err)
}

func TestLoadStateMissing(t *testing.T) {
	got, err := LoadState(filepath.Join(t.TempDir(), "state.yaml"), srvdrv.DefaultCriteria())
	require.NoError(t, err)
	assert.Equal(t, srvdrv.DefaultCriteria(), got.Criteria())
	assert.Empty(t, got.Selected)
}

func TestLoadStateCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	writeFile(t, path, "show_services: [oops\n")

	got, err := LoadState(path, srvdrv.DefaultCriteria())
	assert.Error(t, err)
	assert.Equal(t, srvdrv.DefaultCriteria(), got.Criteria())
}

func TestWatcherPublishesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srvdrv.yaml")
	envPath := filepath.Join(dir, "missing.env")
	writeFile(t, path, "timeouts:\n  start_stop: 10s\n")

	cfg, err := Load(path, envPath)
	require.NoError(t, err)

	w := NewWatcher(path, cfg, zerolog.Nop(), envPath)
	w.Debounce = 10 * time.Millisecond
	updates := w.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Rewrite until the watcher has picked the directory up
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		writeFile(t, path, "timeouts:\n  start_stop: 12s\n")
		select {
		case got := <-updates:
			assert.Equal(t, 12*time.Second, got.StartStopTimeout)
			assert.Equal(t, 12*time.Second, w.Current().StartStopTimeout)
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no reload published")
		}
	}
}

func TestWatcherRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srvdrv.yaml")
	envPath := filepath.Join(dir, "missing.env")
	writeFile(t, path, "")

	w := NewWatcher(path, Default(), zerolog.Nop(), envPath)
	writeFile(t, path, "timeouts:\n  start_stop: never\n")
	w.reload()
	assert.Equal(t, Default(), w.Current())
}
