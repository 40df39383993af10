package srvdrv

import (
	"context"
	"iter"
	"strings"
	"sync"
)

// Criteria are the three independent inputs of the visibility predicate
type Criteria struct {
	// ShowServices includes units of KindService
	ShowServices bool
	// ShowDrivers includes units of KindDriver
	ShowDrivers bool
	// SearchText, when not empty, must be a case-insensitive substring of
	// the unit's name or display name
	SearchText string
}

// DefaultCriteria shows every unit
func DefaultCriteria() Criteria {
	return Criteria{ShowServices: true, ShowDrivers: true}
}

// Match evaluates the visibility predicate for one unit
func (c Criteria) Match(u *Unit) bool {
	return matches(c, strings.ToLower(c.SearchText), u)
}

func matches(c Criteria, needle string, u *Unit) bool {
	switch u.Kind() {
	case KindService:
		if !c.ShowServices {
			return false
		}
	case KindDriver:
		if !c.ShowDrivers {
			return false
		}
	}

	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.Name()), needle) ||
		strings.Contains(strings.ToLower(u.DisplayName()), needle)
}

// Filter projects the visible subset of a Catalog.
// It never re-enumerates the OS; it reads the cached snapshots only.
type Filter struct {
	catalog *Catalog

	mu       sync.RWMutex
	criteria Criteria
	// needle is SearchText case-folded once per change
	needle     string
	generation uint64
}

// NewFilter creates a Filter over catalog with DefaultCriteria
func NewFilter(catalog *Catalog) *Filter {
	return &Filter{
		catalog:  catalog,
		criteria: DefaultCriteria(),
	}
}

// Criteria returns the current criteria
func (f *Filter) Criteria() Criteria {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.criteria
}

// Generation increases every time the criteria change.
// Consumers compare it to decide whether their view is outdated.
func (f *Filter) Generation() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.generation
}

// SetCriteria replaces all criteria and reports whether anything changed
func (f *Filter) SetCriteria(c Criteria) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c == f.criteria {
		return false
	}
	f.criteria = c
	f.needle = strings.ToLower(c.SearchText)
	f.generation++
	return true
}

// SetShowServices toggles services and reports whether the value changed
func (f *Filter) SetShowServices(show bool) bool {
	c := f.Criteria()
	c.ShowServices = show
	return f.SetCriteria(c)
}

// SetShowDrivers toggles drivers and reports whether the value changed
func (f *Filter) SetShowDrivers(show bool) bool {
	c := f.Criteria()
	c.ShowDrivers = show
	return f.SetCriteria(c)
}

// SetSearchText sets the search text and reports whether the value changed
func (f *Filter) SetSearchText(text string) bool {
	c := f.Criteria()
	c.SearchText = text
	return f.SetCriteria(c)
}

// Matches reports whether u is visible under the current criteria
func (f *Filter) Matches(u *Unit) bool {
	f.mu.RLock()
	c, needle := f.criteria, f.needle
	f.mu.RUnlock()
	return matches(c, needle, u)
}

// Seq lazily yields the units that are visible under the criteria current
// at the time Seq is called, preserving input order.
func (f *Filter) Seq(units []*Unit) iter.Seq[*Unit] {
	f.mu.RLock()
	c, needle := f.criteria, f.needle
	f.mu.RUnlock()

	return func(yield func(*Unit) bool) {
		for _, u := range units {
			if !matches(c, needle, u) {
				continue
			}
			if !yield(u) {
				return
			}
		}
	}
}

// Visible returns the visible units in catalog order.
// The first call may trigger the catalog's one-time enumeration.
func (f *Filter) Visible(ctx context.Context) ([]*Unit, error) {
	units, err := f.catalog.Units(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]*Unit, 0, len(units))
	for u := range f.Seq(units) {
		visible = append(visible, u)
	}
	return visible, nil
}
