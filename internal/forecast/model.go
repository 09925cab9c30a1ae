// Package forecast resolves forecast model names and runs the external
// model runner that writes a gridded output file.
package forecast

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/forecast-collector/internal/domain"
)

// Model holds the runner parameters for one named forecast model.
type Model struct {
	Name string

	// RunnerModel is the model identifier understood by the runner.
	RunnerModel string

	// Args are extra runner arguments specific to this model.
	Args []string

	// SurfaceVariables and PressureVariables list the short names the model
	// writes; PressureLevels are in hPa.
	SurfaceVariables  []string
	PressureVariables []string
	PressureLevels    []int
}

var fourcastnetLevels = []int{1000, 850, 500, 250, 50}

var models = map[string]Model{
	"fourcastnet0": {
		Name:              "fourcastnet0",
		RunnerModel:       "fourcastnet",
		Args:              []string{"--model-version", "0"},
		SurfaceVariables:  []string{"10u", "10v", "2t", "sp", "msl", "tcwv", "100u", "100v"},
		PressureVariables: []string{"u", "v", "z", "t", "r"},
		PressureLevels:    fourcastnetLevels,
	},
	"fourcastnet1": {
		Name:              "fourcastnet1",
		RunnerModel:       "fourcastnet",
		Args:              []string{"--model-version", "0.1"},
		SurfaceVariables:  []string{"10u", "10v", "2t", "sp", "msl", "tcwv", "100u", "100v"},
		PressureVariables: []string{"u", "v", "z", "t", "r"},
		PressureLevels:    fourcastnetLevels,
	},
	"fourcastnet2": {
		Name:              "fourcastnet2",
		RunnerModel:       "fourcastnetv2-small",
		SurfaceVariables:  []string{"10u", "10v", "100u", "100v", "2t", "sp", "msl", "tcwv"},
		PressureVariables: []string{"u", "v", "z", "t", "r"},
		PressureLevels:    []int{1000, 925, 850, 700, 600, 500, 400, 300, 250, 200, 150, 100, 50},
	},
}

// Lookup returns the registered model called name.
func Lookup(name string) (Model, error) {
	m, ok := models[name]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q (known: %v)", domain.ErrUnknownModel, name, Names())
	}
	return m, nil
}

// Names lists the registered model names in sorted order.
func Names() []string {
	names := make([]string, 0, len(models))
	for n := range models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
