package srvdrv

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Catalog is the session's cached collection of units. The OS is
// enumerated once, lazily, on first access; afterwards units only change
// through their own Refresh.
type Catalog struct {
	// Timeout bounds the one-time enumeration
	Timeout time.Duration

	ctl ServiceControl
	log zerolog.Logger

	mu     sync.Mutex
	loaded bool
	units  []*Unit
	byName map[string]*Unit
}

// CatalogOption configures a Catalog
type CatalogOption func(*Catalog)

// WithEnumerateTimeout bounds the one-time enumeration
func WithEnumerateTimeout(d time.Duration) CatalogOption {
	return func(c *Catalog) {
		c.Timeout = d
	}
}

// WithCatalogLogger sets the logger used for enumeration events
func WithCatalogLogger(l zerolog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.log = l
	}
}

// NewCatalog creates an empty Catalog backed by ctl
func NewCatalog(ctl ServiceControl, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		Timeout: DefaultEnumerateTimeout,
		ctl:     ctl,
		log:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Control returns the ServiceControl backing the catalog
func (c *Catalog) Control() ServiceControl {
	return c.ctl
}

// Loaded reports whether the enumeration has completed
func (c *Catalog) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Units returns every unit ordered by name. The first successful call
// enumerates services and drivers; a failed enumeration is not cached and
// is retried by the next call.
func (c *Catalog) Units(ctx context.Context) ([]*Unit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		units, err := c.enumerate(ctx)
		if err != nil {
			return nil, err
		}
		c.units = units
		c.byName = make(map[string]*Unit, len(units))
		for _, u := range units {
			c.byName[u.Name()] = u
		}
		c.loaded = true
	}

	out := make([]*Unit, len(c.units))
	copy(out, c.units)
	return out, nil
}

// Lookup returns the unit with the given name
func (c *Catalog) Lookup(ctx context.Context, name string) (*Unit, error) {
	if _, err := c.Units(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.byName[name]
	if !ok {
		return nil, &OpError{Op: OpQuery, Name: name, Err: ErrNotFound}
	}
	return u, nil
}

// enumerate lists both kinds concurrently and merges them by name
func (c *Catalog) enumerate(ctx context.Context) ([]*Unit, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	start := time.Now()
	kinds := []Kind{KindService, KindDriver}

	var wg sync.WaitGroup
	var mu sync.Mutex
	merr := &MultiError{}
	var all []Descriptor

	for _, kind := range kinds {
		wg.Add(1)
		go func(k Kind) {
			defer wg.Done()

			descs, err := c.ctl.Enumerate(ctx, k)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				merr.Add(err)
				return
			}
			all = append(all, descs...)
		}(kind)
	}

	wg.Wait()

	if err := merr.Err(); err != nil {
		c.log.Error().Err(err).Msg("enumeration failed")
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].Type > all[j].Type
	})

	units := make([]*Unit, 0, len(all))
	var last string
	for i, d := range all {
		// A backend may report a unit under both kinds; keep the service.
		if i > 0 && d.Name == last {
			continue
		}
		last = d.Name
		units = append(units, NewUnit(c.ctl, d))
	}

	c.log.Debug().Int("units", len(units)).Dur("elapsed", time.Since(start)).Msg("enumerated units")
	return units, nil
}
