package carbs

import (
	"math"
	"sync"
)

// gaussianProcess is a lightweight RBF-kernel surrogate. Predictions are a
// kernel-weighted average of observed values, and variance shrinks toward
// zero near observed points. Safe for concurrent use.
type gaussianProcess struct {
	mu    sync.RWMutex
	x     [][]float64
	y     []float64
	sigma float64
	prior float64
}

func newGaussianProcess(sigma float64) *gaussianProcess {
	if sigma <= 0 {
		sigma = 1
	}
	return &gaussianProcess{sigma: sigma}
}

// rbfKernel computes exp(-||x1-x2||^2 / (2*sigma^2)). Both inputs must have
// the same dimension.
func rbfKernel(x1, x2 []float64, sigma float64) float64 {
	var sum float64
	for i := range x1 {
		diff := x1[i] - x2[i]
		sum += diff * diff
	}
	return math.Exp(-sum / (2 * sigma * sigma))
}

// Update records an observation. The input slice is copied.
func (gp *gaussianProcess) Update(x []float64, y float64) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	point := make([]float64, len(x))
	copy(point, x)
	gp.x = append(gp.x, point)
	gp.y = append(gp.y, y)

	var sum float64
	for _, v := range gp.y {
		sum += v
	}
	gp.prior = sum / float64(len(gp.y))
}

// Predict returns the expected value and uncertainty at x. With no
// observations the prior is returned with full variance.
func (gp *gaussianProcess) Predict(x []float64) (mean, variance float64) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	if len(gp.x) == 0 {
		return gp.prior, 1
	}

	var weighted, total, nearest float64
	for i := range gp.x {
		k := rbfKernel(x, gp.x[i], gp.sigma)
		weighted += k * gp.y[i]
		total += k
		if k > nearest {
			nearest = k
		}
	}

	// Far from all observations the prediction decays to the prior.
	const ridge = 1e-6
	mean = (weighted + ridge*gp.prior) / (total + ridge)
	variance = 1 - nearest
	return mean, variance
}

func (gp *gaussianProcess) Len() int {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	return len(gp.x)
}
