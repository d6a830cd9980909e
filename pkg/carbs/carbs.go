// Package carbs implements a cost-aware Bayesian search over bounded
// parameter spaces. The engine keeps Gaussian-process surrogates of the
// objective, the cost, and the failure rate of observed trials, and suggests
// new candidates around the Pareto front of (objective, cost).
package carbs

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Direction selects whether larger or smaller objective values are better.
type Direction int

const (
	Maximize Direction = iota
	Minimize
)

// ObservationInParam is one completed trial in natural parameter space.
type ObservationInParam struct {
	Input     map[string]float64
	Output    float64
	Cost      float64
	IsFailure bool
}

// Suggestion is a candidate parameter assignment in natural space.
type Suggestion struct {
	Values map[string]float64
}

// Params configures the engine.
type Params struct {
	BetterDirection Direction
	// NumCandidates is how many perturbed points are scored per Suggest
	// call. Zero means 100.
	NumCandidates int
	// SearchRadius is the standard deviation, in basic-space units scaled
	// by each space's SearchScale, of candidate perturbation. Zero means 0.3.
	SearchRadius float64
	Acquisition  AcquisitionFunc
	// Beta and Xi are forwarded to the acquisition function.
	Beta float64
	Xi   float64
	// Seed for the candidate sampler. Zero means the current time.
	Seed int64
}

// DefaultParams returns the engine configuration used when callers have no
// opinion: maximize, expected improvement, moderate local search.
func DefaultParams() Params {
	return Params{
		BetterDirection: Maximize,
		NumCandidates:   100,
		SearchRadius:    0.3,
		Acquisition:     ExpectedImprovement,
		Beta:            2.0,
		Xi:              0.01,
	}
}

type observation struct {
	input  map[string]float64
	basic  []float64
	output float64 // sign-normalized, higher is better
	cost   float64
	failed bool
}

// CARBS is the optimization engine. Safe for concurrent use.
type CARBS struct {
	mu     sync.Mutex
	cfg    Params
	params []Param
	rng    *rand.Rand

	objectiveGP *gaussianProcess
	costGP      *gaussianProcess
	failureGP   *gaussianProcess
	obs         []observation
	numFailures int
}

// New validates the parameter definitions and builds an engine.
func New(cfg Params, params []Param) (*CARBS, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("at least one param is required")
	}
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("duplicate param %q", p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	if cfg.NumCandidates <= 0 {
		cfg.NumCandidates = 100
	}
	if cfg.SearchRadius <= 0 {
		cfg.SearchRadius = 0.3
	}
	if cfg.Acquisition == nil {
		cfg.Acquisition = ExpectedImprovement
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	owned := make([]Param, len(params))
	copy(owned, params)

	return &CARBS{
		cfg:         cfg,
		params:      owned,
		rng:         rand.New(rand.NewSource(seed)),
		objectiveGP: newGaussianProcess(cfg.SearchRadius * 2),
		costGP:      newGaussianProcess(cfg.SearchRadius * 2),
		failureGP:   newGaussianProcess(cfg.SearchRadius * 2),
	}, nil
}

// Params returns a copy of the parameter definitions.
func (c *CARBS) Params() []Param {
	out := make([]Param, len(c.params))
	copy(out, c.params)
	return out
}

// SetSeed reseeds the candidate sampler.
func (c *CARBS) SetSeed(seed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rng = rand.New(rand.NewSource(seed))
}

// Observe records a completed trial. Failed trials update only the failure
// model; successful ones also update the objective and cost surrogates.
func (c *CARBS) Observe(obs ObservationInParam) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observe(obs)
}

// InitializeFromObservations replays prior trials, typically loaded from an
// experiment tracker when resuming a sweep.
func (c *CARBS) InitializeFromObservations(observations []ObservationInParam) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range observations {
		if err := c.observe(o); err != nil {
			return err
		}
	}
	return nil
}

func (c *CARBS) observe(o ObservationInParam) error {
	basic, err := c.toBasic(o.Input)
	if err != nil {
		return err
	}

	stored := observation{
		input:  copyValues(o.Input),
		basic:  basic,
		output: c.normalize(o.Output),
		cost:   math.Max(o.Cost, 0),
		failed: o.IsFailure,
	}
	c.obs = append(c.obs, stored)

	if o.IsFailure {
		c.numFailures++
		c.failureGP.Update(basic, 1)
		return nil
	}
	c.failureGP.Update(basic, 0)
	c.objectiveGP.Update(basic, stored.output)
	c.costGP.Update(basic, math.Log1p(stored.cost))
	return nil
}

// Suggest proposes the next trial. Candidates are sampled around the Pareto
// front (or the search centers when nothing has been observed), scored with
// the acquisition function, discounted by the predicted failure rate, and
// penalized by the predicted cost.
func (c *CARBS) Suggest() (*Suggestion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	centers := c.paretoBasics()
	if len(centers) == 0 {
		centers = [][]float64{c.searchCenterBasic()}
	}

	acqParams := AcquisitionParams{
		Beta:      c.cfg.Beta,
		Xi:        c.cfg.Xi,
		BestSoFar: c.bestOutput(),
	}

	var best map[string]float64
	bestScore := math.Inf(-1)

	for i := 0; i < c.cfg.NumCandidates; i++ {
		origin := centers[c.rng.Intn(len(centers))]
		values, basic := c.perturb(origin)

		mean, variance := c.objectiveGP.Predict(basic)
		score := c.cfg.Acquisition(mean, variance, acqParams)

		pFail, _ := c.failureGP.Predict(basic)
		score *= 1 - clamp(pFail, 0, 1)

		logCost, _ := c.costGP.Predict(basic)
		predCost := math.Max(math.Expm1(logCost), 0)
		if score > 0 {
			score /= 1 + predCost
		} else {
			score *= 1 + predCost
		}

		if score > bestScore {
			bestScore = score
			best = values
		}
	}

	if best == nil {
		return nil, fmt.Errorf("no candidate produced a finite score")
	}
	return &Suggestion{Values: best}, nil
}

// ParetoFront returns the non-dominated successful observations, ordered by
// ascending cost. An observation dominates another when it is at least as
// good on both objective and cost and strictly better on one.
func (c *CARBS) ParetoFront() []ObservationInParam {
	c.mu.Lock()
	defer c.mu.Unlock()

	front := c.paretoObservations()
	out := make([]ObservationInParam, 0, len(front))
	for _, o := range front {
		out = append(out, ObservationInParam{
			Input:  copyValues(o.input),
			Output: c.normalize(o.output), // undo the sign normalization
			Cost:   o.cost,
		})
	}
	return out
}

// NumObservations counts successful trials recorded so far.
func (c *CARBS) NumObservations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.obs) - c.numFailures
}

// NumFailures counts failed trials recorded so far.
func (c *CARBS) NumFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numFailures
}

func (c *CARBS) normalize(output float64) float64 {
	if c.cfg.BetterDirection == Minimize {
		return -output
	}
	return output
}

func (c *CARBS) toBasic(input map[string]float64) ([]float64, error) {
	basic := make([]float64, len(c.params))
	for i, p := range c.params {
		v, ok := input[p.Name]
		if !ok {
			return nil, fmt.Errorf("observation missing parameter %q", p.Name)
		}
		basic[i] = p.Space.ToBasic(v)
	}
	return basic, nil
}

func (c *CARBS) searchCenterBasic() []float64 {
	basic := make([]float64, len(c.params))
	for i, p := range c.params {
		basic[i] = p.Space.ToBasic(p.SearchCenter)
	}
	return basic
}

// perturb samples one candidate around origin in basic space and returns
// both its natural values (clamped, rounded) and its re-derived basic point.
func (c *CARBS) perturb(origin []float64) (map[string]float64, []float64) {
	values := make(map[string]float64, len(c.params))
	basic := make([]float64, len(c.params))
	for i, p := range c.params {
		b := origin[i] + c.rng.NormFloat64()*c.cfg.SearchRadius*p.Space.SearchScale()
		v := p.Space.Round(p.Space.FromBasic(b))
		min, max := p.Space.Bounds()
		v = clamp(v, min, max)
		values[p.Name] = v
		basic[i] = p.Space.ToBasic(v)
	}
	return values, basic
}

func (c *CARBS) bestOutput() float64 {
	best := 0.0
	found := false
	for _, o := range c.obs {
		if o.failed {
			continue
		}
		if !found || o.output > best {
			best = o.output
			found = true
		}
	}
	return best
}

func (c *CARBS) paretoObservations() []observation {
	var front []observation
	for i, a := range c.obs {
		if a.failed {
			continue
		}
		dominated := false
		for j, b := range c.obs {
			if i == j || b.failed {
				continue
			}
			if b.output >= a.output && b.cost <= a.cost && (b.output > a.output || b.cost < a.cost) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, a)
		}
	}
	sort.Slice(front, func(i, j int) bool { return front[i].cost < front[j].cost })
	return front
}

func (c *CARBS) paretoBasics() [][]float64 {
	front := c.paretoObservations()
	out := make([][]float64, 0, len(front))
	for _, o := range front {
		out = append(out, o.basic)
	}
	return out
}
