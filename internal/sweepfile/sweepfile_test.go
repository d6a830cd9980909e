package sweepfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Metta-AI/wandb-carbs/pkg/carbs"
)

const sampleSweepFile = `
name: my-sweep
parameters:
  - name: lr
    space: log
    min: 1.0e-5
    max: 1.0e-1
    search_center: 1.0e-3
  - name: dropout
    space: logit
    search_center: 0.3
  - name: layers
    min: 1
    max: 10
    integer: true
  - name: batch_size
    space: linear
    min: 0
    max: 8
    integer: true
    search_center: 4
    pow2: true
`

func TestParse(t *testing.T) {
	def, err := Parse([]byte(sampleSweepFile))
	require.NoError(t, err)

	assert.Equal(t, "my-sweep", def.Name)
	require.Len(t, def.Params, 4)

	lr := def.Params[0]
	assert.Equal(t, "lr", lr.Name)
	assert.IsType(t, carbs.LogSpace{}, lr.Space)
	assert.Equal(t, 1e-3, lr.SearchCenter)

	dropout := def.Params[1]
	assert.IsType(t, carbs.LogitSpace{}, dropout.Space)
	assert.Equal(t, 0.3, dropout.SearchCenter)

	layers := def.Params[2]
	space, ok := layers.Space.(carbs.LinearSpace)
	require.True(t, ok, "space defaults to linear")
	assert.True(t, space.Integer)
	assert.Equal(t, 5.5, layers.SearchCenter, "center defaults to the midpoint")

	assert.Equal(t, []string{"batch_size"}, def.Pow2)
}

func TestParseDefaultCenters(t *testing.T) {
	def, err := Parse([]byte(`
parameters:
  - name: lr
    space: log
    min: 1.0e-5
    max: 1.0e-1
`))
	require.NoError(t, err)
	assert.InDelta(t, 1e-3, def.Params[0].SearchCenter, 1e-12, "log spaces default to the geometric midpoint")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "not yaml", in: `{{{{`},
		{name: "no parameters", in: `name: empty`},
		{name: "unknown space", in: "parameters:\n  - name: x\n    space: cubic\n"},
		{name: "logit with bounds", in: "parameters:\n  - name: x\n    space: logit\n    min: 0.1\n    max: 0.9\n"},
		{name: "logit with integer", in: "parameters:\n  - name: x\n    space: logit\n    integer: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSweepFile), 0o644))

	def, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, def.Params, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
