package sweeper

import "math"

// WithPow2Params marks parameters that the engine searches as exponents but
// that are exposed externally as powers of two (batch sizes, buffer sizes).
// A suggestion of x for such a parameter is published as 2^x, and sibling
// run configs are mapped back through a truncating log2 when loading, so a
// hand-edited value between powers of two resolves to the lower exponent.
func WithPow2Params(names ...string) Option {
	return func(s *Sweeper) {
		for _, name := range names {
			s.pow2[name] = struct{}{}
		}
	}
}

// externalValues converts an engine-space assignment to the externally
// visible one.
func (s *Sweeper) externalValues(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for name, v := range values {
		if _, ok := s.pow2[name]; ok {
			out[name] = math.Exp2(v)
		} else {
			out[name] = v
		}
	}
	return out
}

// internalValue converts one externally visible config value back to engine
// space.
func (s *Sweeper) internalValue(name string, v float64) float64 {
	if _, ok := s.pow2[name]; ok && v > 0 {
		return math.Floor(math.Log2(v))
	}
	return v
}
