package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Watcher defaults
const (
	DefaultDebounce = 250 * time.Millisecond
	// DefaultReloadEvery is the minimum spacing between two reloads
	DefaultReloadEvery = time.Second
)

// Watcher reloads the configuration file when it changes on disk and
// publishes every new, valid configuration to its subscribers.
type Watcher struct {
	// Debounce collapses bursts of events from editors saving in several steps
	Debounce time.Duration

	path     string
	envFiles []string
	log      zerolog.Logger
	limiter  *rate.Limiter

	mu  sync.RWMutex
	cur *Config

	subsMu sync.Mutex
	subs   []chan *Config
}

// NewWatcher creates a Watcher for path starting from cur
func NewWatcher(path string, cur *Config, log zerolog.Logger, envFiles ...string) *Watcher {
	return &Watcher{
		Debounce: DefaultDebounce,
		path:     path,
		envFiles: envFiles,
		log:      log,
		limiter:  rate.NewLimiter(rate.Every(DefaultReloadEvery), 1),
		cur:      cur,
	}
}

// Current returns the last published configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// Subscribe returns a channel receiving each new configuration.
// A slow subscriber only ever misses intermediate versions, never the latest.
func (w *Watcher) Subscribe(buffer int) <-chan *Config {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *Config, buffer)
	w.subsMu.Lock()
	w.subs = append(w.subs, ch)
	w.subsMu.Unlock()
	return ch
}

func (w *Watcher) publish(cfg *Config) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- cfg:
			continue
		default:
		}
		// Drop the oldest and retry once
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
			w.log.Debug().Int("queue_cap", cap(ch)).Msg("config update dropped")
		}
	}
}

// Run watches the directory holding the file until ctx is cancelled, then
// closes every subscriber channel.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.closeSubs()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	// Watch the directory; editors often replace the file by rename.
	dir, name := filepath.Dir(w.path), filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}
	w.log.Debug().Str("path", w.path).Msg("config watcher started")

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), name) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.Debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Str("path", w.path).Msg("config watch error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path, w.envFiles...)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config rejected")
		return
	}

	w.mu.Lock()
	unchanged := w.cur != nil && *w.cur == *cfg
	if !unchanged {
		w.cur = cfg
	}
	w.mu.Unlock()

	if unchanged {
		w.log.Debug().Str("path", w.path).Msg("config unchanged")
		return
	}

	w.log.Info().Str("path", w.path).Msg("config reloaded")
	w.publish(cfg)
}

func (w *Watcher) closeSubs() {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	for _, ch := range w.subs {
		close(ch)
	}
	w.subs = nil
}
