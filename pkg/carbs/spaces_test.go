package carbs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearSpace(t *testing.T) {
	s := LinearSpace{Min: 10, Max: 20}

	t.Run("basic transform", func(t *testing.T) {
		assert.InDelta(t, 0.0, s.ToBasic(10), 1e-9)
		assert.InDelta(t, 0.5, s.ToBasic(15), 1e-9)
		assert.InDelta(t, 1.0, s.ToBasic(20), 1e-9)
		assert.InDelta(t, 15.0, s.FromBasic(0.5), 1e-9)
	})

	t.Run("clamps out of range", func(t *testing.T) {
		assert.Equal(t, 10.0, s.FromBasic(-1))
		assert.Equal(t, 20.0, s.FromBasic(2))
	})

	t.Run("rounding", func(t *testing.T) {
		intSpace := LinearSpace{Min: 0, Max: 100, Integer: true}
		assert.Equal(t, 42.0, intSpace.Round(41.7))
		assert.Equal(t, 41.7, s.Round(41.7))
	})

	t.Run("validation", func(t *testing.T) {
		assert.Error(t, LinearSpace{Min: 5, Max: 5}.Validate())
		assert.Error(t, LinearSpace{Min: 6, Max: 5}.Validate())
		assert.NoError(t, s.Validate())
	})
}

func TestLogSpace(t *testing.T) {
	s := LogSpace{Min: 1e-5, Max: 1e-1}

	t.Run("base 10 by default", func(t *testing.T) {
		assert.InDelta(t, -3.0, s.ToBasic(1e-3), 1e-9)
		assert.InDelta(t, 1e-3, s.FromBasic(-3), 1e-12)
	})

	t.Run("custom base", func(t *testing.T) {
		b2 := LogSpace{Min: 1, Max: 1024, Base: 2}
		assert.InDelta(t, 8.0, b2.ToBasic(256), 1e-9)
		assert.InDelta(t, 256.0, b2.FromBasic(8), 1e-9)
	})

	t.Run("clamps to bounds", func(t *testing.T) {
		assert.Equal(t, 1e-1, s.FromBasic(2))
		assert.Equal(t, 1e-5, s.FromBasic(-10))
	})

	t.Run("validation", func(t *testing.T) {
		assert.Error(t, LogSpace{Min: 0, Max: 1}.Validate())
		assert.Error(t, LogSpace{Min: -1, Max: 1}.Validate())
		assert.Error(t, LogSpace{Min: 1, Max: 1}.Validate())
		assert.NoError(t, s.Validate())
	})
}

func TestLogitSpace(t *testing.T) {
	s := LogitSpace{}

	t.Run("midpoint maps to zero", func(t *testing.T) {
		assert.InDelta(t, 0.0, s.ToBasic(0.5), 1e-9)
		assert.InDelta(t, 0.5, s.FromBasic(0), 1e-9)
	})

	t.Run("round trip", func(t *testing.T) {
		for _, v := range []float64{0.01, 0.3, 0.5, 0.9, 0.99} {
			assert.InDelta(t, v, s.FromBasic(s.ToBasic(v)), 1e-9)
		}
	})

	t.Run("stays inside the unit interval", func(t *testing.T) {
		assert.Greater(t, s.FromBasic(-100), 0.0)
		assert.Less(t, s.FromBasic(100), 1.0)
	})

	t.Run("bounds", func(t *testing.T) {
		min, max := s.Bounds()
		assert.Equal(t, 0.0, min)
		assert.Equal(t, 1.0, max)
	})

	t.Run("extreme inputs stay finite", func(t *testing.T) {
		assert.False(t, math.IsInf(s.ToBasic(0), 0))
		assert.False(t, math.IsInf(s.ToBasic(1), 0))
	})
}

func TestParamValidate(t *testing.T) {
	tests := []struct {
		name    string
		param   Param
		wantErr bool
	}{
		{
			name:  "valid",
			param: Param{Name: "lr", Space: LogSpace{Min: 1e-5, Max: 1e-1}, SearchCenter: 1e-3},
		},
		{
			name:    "empty name",
			param:   Param{Space: LinearSpace{Min: 0, Max: 1}},
			wantErr: true,
		},
		{
			name:    "nil space",
			param:   Param{Name: "lr"},
			wantErr: true,
		},
		{
			name:    "center below bounds",
			param:   Param{Name: "lr", Space: LinearSpace{Min: 0, Max: 1}, SearchCenter: -0.5},
			wantErr: true,
		},
		{
			name:    "center above bounds",
			param:   Param{Name: "lr", Space: LinearSpace{Min: 0, Max: 1}, SearchCenter: 1.5},
			wantErr: true,
		},
		{
			name:    "invalid space",
			param:   Param{Name: "lr", Space: LogSpace{Min: 0, Max: 1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.param.validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
