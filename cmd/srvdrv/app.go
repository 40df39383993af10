package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/axondata/go-srvdrv"
	"github.com/axondata/go-srvdrv/internal/config"
	"github.com/axondata/go-srvdrv/internal/logging"
)

// Simulated transition delays in demo mode
const (
	demoStartDelay = 1500 * time.Millisecond
	demoStopDelay  = time.Second
	demoPauseDelay = 500 * time.Millisecond
)

// app wires configuration, logging, the backend and the session
type app struct {
	cfg        *config.Config
	opts       *options
	log        zerolog.Logger
	ctl        srvdrv.ServiceControl
	controller *srvdrv.Controller
	session    *srvdrv.Session
	state      config.State

	closers []func() error
}

func newApp(ctx context.Context, opts *options, interactive bool) (*app, error) {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return nil, err
	}
	if opts.demo {
		cfg.Demo = true
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logOpts := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}
	if interactive && cfg.LogFile == "" {
		// The terminal belongs to the control panel
		logOpts.Out = io.Discard
	}
	log, closeLog, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, opts: opts, log: log}
	if closeLog != nil {
		a.closers = append(a.closers, closeLog)
	}

	if cfg.Demo {
		mem := srvdrv.NewMemoryControl(srvdrv.DemoUnits()...)
		if interactive {
			mem.StartDelay = demoStartDelay
			mem.StopDelay = demoStopDelay
			mem.PauseDelay = demoPauseDelay
			mem.ContinueDelay = demoPauseDelay
		}
		a.ctl = mem
	} else {
		ctl, err := srvdrv.NewSystemControl(ctx)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to service manager: %w", err)
		}
		a.ctl = ctl
	}
	a.closers = append(a.closers, a.ctl.Close)

	a.controller = srvdrv.NewController(cfg.ControllerOptions(log)...)
	catalog := srvdrv.NewCatalog(a.ctl,
		srvdrv.WithEnumerateTimeout(cfg.EnumerateTimeout),
		srvdrv.WithCatalogLogger(log),
	)
	a.session = srvdrv.NewSession(catalog, a.controller, srvdrv.WithSessionLogger(log))

	criteria := cfg.Criteria
	if cfg.StateFile != "" {
		a.state, err = config.LoadState(cfg.StateFile, criteria)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.StateFile).Msg("ignoring saved state")
		}
		criteria = a.state.Criteria()
	}
	a.session.SetCriteria(opts.criteria(criteria))

	log.Debug().
		Bool("demo", cfg.Demo).
		Str("config", opts.configPath).
		Dur("start_stop_timeout", cfg.StartStopTimeout).
		Msg("srvdrv ready")
	return a, nil
}

// saveState records the criteria and selection when a state file is configured
func (a *app) saveState() {
	if a.cfg.StateFile == "" {
		return
	}
	var selected string
	if u := a.session.Selected(); u != nil {
		selected = u.Name()
	}
	st := config.StateFrom(a.session.Criteria(), selected)
	if err := config.SaveState(a.cfg.StateFile, st); err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.StateFile).Msg("saving state failed")
	}
}

// configExists reports whether the configuration file is present and can be watched
func (a *app) configExists() bool {
	_, err := os.Stat(a.opts.configPath)
	return !errors.Is(err, os.ErrNotExist)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
