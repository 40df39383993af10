package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	yaml "go.yaml.in/yaml/v3"

	"github.com/axondata/go-srvdrv"
)

// State is what the control panel remembers between runs
type State struct {
	ShowServices bool   `yaml:"show_services"`
	ShowDrivers  bool   `yaml:"show_drivers"`
	Search       string `yaml:"search,omitempty"`
	Selected     string `yaml:"selected,omitempty"`
}

// StateFrom captures criteria and the selected unit name
func StateFrom(c srvdrv.Criteria, selected string) State {
	return State{
		ShowServices: c.ShowServices,
		ShowDrivers:  c.ShowDrivers,
		Search:       c.SearchText,
		Selected:     selected,
	}
}

// Criteria returns the filter criteria held by s
func (s State) Criteria() srvdrv.Criteria {
	return srvdrv.Criteria{
		ShowServices: s.ShowServices,
		ShowDrivers:  s.ShowDrivers,
		SearchText:   s.Search,
	}
}

// LoadState reads path. A missing file yields a State with def criteria.
func LoadState(path string, def srvdrv.Criteria) (State, error) {
	st := StateFrom(def, "")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, err
	}

	if err := yaml.Unmarshal(data, &st); err != nil {
		return StateFrom(def, ""), fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

// SaveState atomically replaces path with s
func SaveState(path string, s State) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o644)
}
