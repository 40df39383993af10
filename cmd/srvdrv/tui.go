package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/axondata/go-srvdrv"
	"github.com/axondata/go-srvdrv/cmd/srvdrv/tui"
	"github.com/axondata/go-srvdrv/internal/config"
)

func cmdTUI(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.state.Selected != "" {
		if _, err := a.session.SelectName(ctx, a.state.Selected); err != nil {
			a.log.Debug().Err(err).Str("unit", a.state.Selected).Msg("saved selection not restored")
		}
	}

	if a.configExists() {
		a.watchConfig(ctx)
	}

	dispatcher := srvdrv.NewDispatcher(ctx, a.session)
	defer func() {
		if err := dispatcher.Stop(srvdrv.DefaultStopGrace); err != nil {
			a.log.Warn().Err(err).Msg("dispatcher stop")
		}
	}()

	model := tui.New(ctx, a.session, dispatcher)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()

	a.saveState()
	return err
}

// watchConfig applies timeout changes from the configuration file to the
// controller while the control panel runs
func (a *app) watchConfig(ctx context.Context) {
	w := config.NewWatcher(a.opts.configPath, a.cfg, a.log, a.opts.envFile)
	updates := w.Subscribe(1)

	go func() {
		if err := w.Run(ctx); err != nil {
			a.log.Warn().Err(err).Str("path", a.opts.configPath).Msg("config watcher stopped")
		}
	}()

	go func() {
		for cfg := range updates {
			cfg.Apply(a.controller)
			a.log.Info().
				Dur("start_stop_timeout", cfg.StartStopTimeout).
				Dur("pause_continue_timeout", cfg.PauseContinueTimeout).
				Msg("controller reconfigured")
		}
	}()
}
