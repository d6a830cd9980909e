package carbs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUCB(t *testing.T) {
	params := AcquisitionParams{Beta: 2}

	assert.Equal(t, 1.0, UCB(1, 0, params))
	assert.Greater(t, UCB(1, 1, params), UCB(1, 0.25, params), "more uncertainty scores higher")
}

func TestExpectedImprovement(t *testing.T) {
	params := AcquisitionParams{Xi: 0, BestSoFar: 1}

	t.Run("no uncertainty and no improvement", func(t *testing.T) {
		assert.Equal(t, 0.0, ExpectedImprovement(0.5, 0, params))
	})

	t.Run("no uncertainty with improvement", func(t *testing.T) {
		assert.InDelta(t, 0.5, ExpectedImprovement(1.5, 0, params), 1e-9)
	})

	t.Run("uncertainty adds value", func(t *testing.T) {
		certain := ExpectedImprovement(1.0, 0, params)
		uncertain := ExpectedImprovement(1.0, 1, params)
		assert.Greater(t, uncertain, certain)
	})

	t.Run("never negative", func(t *testing.T) {
		assert.GreaterOrEqual(t, ExpectedImprovement(-10, 0.5, params), 0.0)
	})
}

func TestProbabilityOfImprovement(t *testing.T) {
	params := AcquisitionParams{Xi: 0, BestSoFar: 0}

	t.Run("bounded", func(t *testing.T) {
		for _, mean := range []float64{-5, 0, 5} {
			p := ProbabilityOfImprovement(mean, 1, params)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
	})

	t.Run("monotone in mean", func(t *testing.T) {
		assert.Greater(t,
			ProbabilityOfImprovement(1, 1, params),
			ProbabilityOfImprovement(-1, 1, params),
		)
	})

	t.Run("degenerate variance", func(t *testing.T) {
		assert.Equal(t, 1.0, ProbabilityOfImprovement(1, 0, params))
		assert.Equal(t, 0.0, ProbabilityOfImprovement(-1, 0, params))
	})
}
