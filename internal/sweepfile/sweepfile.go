// Package sweepfile loads CARBS parameter definitions from YAML for the CLI.
package sweepfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Metta-AI/wandb-carbs/pkg/carbs"
)

// Definition is a parsed sweep file.
type Definition struct {
	Name   string
	Params []carbs.Param
	// Pow2 lists parameter names searched as exponents of two.
	Pow2 []string
}

type fileSpec struct {
	Name       string      `yaml:"name"`
	Parameters []paramSpec `yaml:"parameters"`
}

type paramSpec struct {
	Name         string   `yaml:"name"`
	Space        string   `yaml:"space"`
	Min          float64  `yaml:"min"`
	Max          float64  `yaml:"max"`
	Scale        float64  `yaml:"scale"`
	Base         float64  `yaml:"base"`
	Integer      bool     `yaml:"integer"`
	SearchCenter *float64 `yaml:"search_center"`
	Pow2         bool     `yaml:"pow2"`
}

// Load reads and parses a sweep file from disk.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sweep file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse converts a YAML sweep document into parameter definitions.
func Parse(data []byte) (*Definition, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse sweep file: %w", err)
	}
	if len(spec.Parameters) == 0 {
		return nil, fmt.Errorf("sweep file defines no parameters")
	}

	def := &Definition{Name: spec.Name}
	for _, p := range spec.Parameters {
		space, err := spaceFor(p)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}

		center := defaultCenter(space)
		if p.SearchCenter != nil {
			center = *p.SearchCenter
		}

		def.Params = append(def.Params, carbs.Param{
			Name:         p.Name,
			Space:        space,
			SearchCenter: center,
		})
		if p.Pow2 {
			def.Pow2 = append(def.Pow2, p.Name)
		}
	}
	return def, nil
}

func spaceFor(p paramSpec) (carbs.Space, error) {
	switch p.Space {
	case "linear", "":
		return carbs.LinearSpace{Min: p.Min, Max: p.Max, Scale: p.Scale, Integer: p.Integer}, nil
	case "log":
		return carbs.LogSpace{Min: p.Min, Max: p.Max, Scale: p.Scale, Base: p.Base, Integer: p.Integer}, nil
	case "logit":
		// Logit spaces are fixed to (0, 1); bounds in the file usually mean
		// the author wanted a linear space.
		if p.Min != 0 || p.Max != 0 || p.Integer {
			return nil, fmt.Errorf("logit space does not take min, max or integer")
		}
		return carbs.LogitSpace{Scale: p.Scale}, nil
	default:
		return nil, fmt.Errorf("unknown space %q (want linear, log or logit)", p.Space)
	}
}

func defaultCenter(space carbs.Space) float64 {
	min, max := space.Bounds()
	if _, ok := space.(carbs.LogSpace); ok {
		// Geometric midpoint keeps the default centered on the log axis.
		b := space.ToBasic(min) + (space.ToBasic(max)-space.ToBasic(min))/2
		return space.FromBasic(b)
	}
	return min + (max-min)/2
}
