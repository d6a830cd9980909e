package carbs

import (
	"fmt"
	"math"
)

// logitEps keeps logit transforms away from the poles at 0 and 1.
const logitEps = 1e-9

// Space maps a parameter between its natural representation and the "basic"
// representation the engine searches in. Candidate perturbation happens in
// basic space; bounds and integer rounding apply in natural space.
type Space interface {
	ToBasic(v float64) float64
	FromBasic(b float64) float64
	Round(v float64) float64
	Bounds() (min, max float64)
	SearchScale() float64
	IsInteger() bool
	Validate() error
}

// LinearSpace searches a bounded interval directly. Basic space is the
// interval normalized to [0, 1].
type LinearSpace struct {
	Min, Max float64
	// Scale widens or narrows candidate perturbation for this dimension.
	// Zero means the engine default of 1.
	Scale   float64
	Integer bool
}

func (s LinearSpace) ToBasic(v float64) float64 {
	if s.Max == s.Min {
		return 0
	}
	return (v - s.Min) / (s.Max - s.Min)
}

func (s LinearSpace) FromBasic(b float64) float64 {
	return clamp(s.Min+b*(s.Max-s.Min), s.Min, s.Max)
}

func (s LinearSpace) Round(v float64) float64 {
	if s.Integer {
		return math.Round(v)
	}
	return v
}

func (s LinearSpace) Bounds() (float64, float64) { return s.Min, s.Max }

func (s LinearSpace) SearchScale() float64 { return defaultScale(s.Scale) }

func (s LinearSpace) IsInteger() bool { return s.Integer }

func (s LinearSpace) Validate() error {
	if s.Min >= s.Max {
		return fmt.Errorf("linear space requires min < max, got [%v, %v]", s.Min, s.Max)
	}
	return nil
}

// LogSpace searches a strictly positive interval on a logarithmic axis.
// Basic space is log_Base(v), so one basic unit is one decade for Base 10.
type LogSpace struct {
	Min, Max float64
	Scale    float64
	// Base of the logarithm; zero means 10.
	Base    float64
	Integer bool
}

func (s LogSpace) base() float64 {
	if s.Base <= 0 {
		return 10
	}
	return s.Base
}

func (s LogSpace) ToBasic(v float64) float64 {
	if v <= 0 {
		v = s.Min
	}
	return math.Log(v) / math.Log(s.base())
}

func (s LogSpace) FromBasic(b float64) float64 {
	return clamp(math.Pow(s.base(), b), s.Min, s.Max)
}

func (s LogSpace) Round(v float64) float64 {
	if s.Integer {
		return math.Round(v)
	}
	return v
}

func (s LogSpace) Bounds() (float64, float64) { return s.Min, s.Max }

func (s LogSpace) SearchScale() float64 { return defaultScale(s.Scale) }

func (s LogSpace) IsInteger() bool { return s.Integer }

func (s LogSpace) Validate() error {
	if s.Min <= 0 {
		return fmt.Errorf("log space requires min > 0, got %v", s.Min)
	}
	if s.Min >= s.Max {
		return fmt.Errorf("log space requires min < max, got [%v, %v]", s.Min, s.Max)
	}
	return nil
}

// LogitSpace searches the open unit interval through the logit transform,
// which spreads out values near 0 and 1. Used for rates and probabilities.
type LogitSpace struct {
	Scale float64
}

func (s LogitSpace) ToBasic(v float64) float64 {
	v = clamp(v, logitEps, 1-logitEps)
	return math.Log(v / (1 - v))
}

func (s LogitSpace) FromBasic(b float64) float64 {
	return 1 / (1 + math.Exp(-b))
}

func (s LogitSpace) Round(v float64) float64 { return v }

func (s LogitSpace) Bounds() (float64, float64) { return 0, 1 }

func (s LogitSpace) SearchScale() float64 { return defaultScale(s.Scale) }

func (s LogitSpace) IsInteger() bool { return false }

func (s LogitSpace) Validate() error { return nil }

// Param is one dimension of the search space. SearchCenter is where the
// engine starts suggesting before any observations exist.
type Param struct {
	Name         string
	Space        Space
	SearchCenter float64
}

func (p Param) validate() error {
	if p.Name == "" {
		return fmt.Errorf("param name must not be empty")
	}
	if p.Space == nil {
		return fmt.Errorf("param %q has no space", p.Name)
	}
	if err := p.Space.Validate(); err != nil {
		return fmt.Errorf("param %q: %w", p.Name, err)
	}
	min, max := p.Space.Bounds()
	if p.SearchCenter < min || p.SearchCenter > max {
		return fmt.Errorf("param %q search center %v outside [%v, %v]", p.Name, p.SearchCenter, min, max)
	}
	return nil
}

func defaultScale(scale float64) float64 {
	if scale <= 0 {
		return 1
	}
	return scale
}
