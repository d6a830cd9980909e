// Package sweeper binds a CARBS engine to a WandB sweep. Each sweeper
// instance owns one WandB run: on construction it replays the sweep's
// finished sibling runs into the engine, takes one suggestion, and publishes
// it to the run's config; the caller trains with the suggested parameters
// and reports the outcome back through RecordObservation or RecordFailure.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Metta-AI/wandb-carbs/pkg/carbs"
	"github.com/Metta-AI/wandb-carbs/pkg/codec"
	"github.com/Metta-AI/wandb-carbs/pkg/model"
	"github.com/Metta-AI/wandb-carbs/pkg/wandb"
)

// RunClient is the slice of the WandB API the sweeper needs. *wandb.Client
// satisfies it; tests substitute fakes.
type RunClient interface {
	Run(ctx context.Context, entity, project, runID string) (*model.Run, error)
	Runs(ctx context.Context, entity, project string, filters wandb.RunFilters) ([]*model.Run, error)
	UpdateRunSummary(ctx context.Context, entity, project, runID string, summary map[string]any) error
	UpdateRunConfig(ctx context.Context, entity, project, runID string, config map[string]any) error
}

// RunRef identifies the WandB run a sweeper instance owns.
type RunRef struct {
	Entity  string
	Project string
	RunID   string
}

type Option func(*Sweeper)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sweeper) {
		s.log = logger
	}
}

// WithSeed fixes the engine seed instead of deriving it from the clock.
func WithSeed(seed int64) Option {
	return func(s *Sweeper) {
		s.seed = seed
	}
}

// Sweeper drives one run of a CARBS-backed WandB sweep.
type Sweeper struct {
	mu     sync.Mutex
	engine *carbs.CARBS
	client RunClient
	ref    RunRef
	run    *model.Run
	log    zerolog.Logger
	seed   int64
	pow2   map[string]struct{}

	suggestion      map[string]float64 // internal (engine) representation
	numObservations int
	numFailures     int
}

// New builds a sweeper bound to the given run. The run must not already
// carry a carbs state; if it does a *model.StateConflictError is returned.
func New(ctx context.Context, engine *carbs.CARBS, client RunClient, ref RunRef, opts ...Option) (*Sweeper, error) {
	s := &Sweeper{
		engine: engine,
		client: client,
		ref:    ref,
		log:    zerolog.Nop(),
		pow2:   map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}

	run, err := client.Run(ctx, ref.Entity, ref.Project, ref.RunID)
	if err != nil {
		return nil, err
	}
	if state := run.SummaryString(model.SummaryKeyState); state != "" {
		return nil, &model.StateConflictError{Run: run.Name, State: state}
	}
	s.run = run

	if err := s.updateSummary(ctx, map[string]any{model.SummaryKeyState: model.StateRunning}); err != nil {
		return nil, err
	}

	if err := s.loadRuns(ctx); err != nil {
		return nil, err
	}

	if s.seed == 0 {
		s.seed = time.Now().Unix()
	}
	engine.SetSeed(s.seed)

	suggestion, err := engine.Suggest()
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	s.suggestion = suggestion.Values

	external := s.externalValues(s.suggestion)
	if err := s.updateConfig(ctx, codec.EncodeRunConfig(external)); err != nil {
		return nil, err
	}
	s.log.Info().Msgf("published suggestion %v to run %s", external, run.Name)

	return s, nil
}

// Suggest returns a copy of the suggestion held for this run, in external
// representation (power-of-two params expanded).
func (s *Sweeper) Suggest() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.externalValues(s.suggestion)
}

type recordConfig struct {
	allowUpdate bool
}

type RecordOption func(*recordConfig)

// AllowUpdate permits recording even when the run is no longer in the
// running state, overwriting the previous outcome.
func AllowUpdate() RecordOption {
	return func(c *recordConfig) {
		c.allowUpdate = true
	}
}

// RecordObservation marks the run successful and stores the objective and
// cost in its summary for future sweep members to load.
func (s *Sweeper) RecordObservation(ctx context.Context, objective, cost float64, opts ...RecordOption) error {
	var cfg recordConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.allowUpdate {
		if state := s.run.SummaryString(model.SummaryKeyState); state != model.StateRunning {
			return fmt.Errorf("run %s has state %q: %w", s.run.Name, state, model.ErrNotRunning)
		}
	}

	if err := s.updateSummary(ctx, map[string]any{
		model.SummaryKeyObjective: objective,
		model.SummaryKeyCost:      cost,
		model.SummaryKeyState:     model.StateSuccess,
	}); err != nil {
		return err
	}
	s.log.Info().Msgf("recorded observation (%v, %v) for run %s", objective, cost, s.run.Name)
	return nil
}

// RecordFailure marks the run failed. Failed runs still inform the engine's
// failure model when future sweep members load them.
func (s *Sweeper) RecordFailure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updateSummary(ctx, map[string]any{model.SummaryKeyState: model.StateFailure}); err != nil {
		return err
	}
	s.log.Info().Msgf("recorded failure for run %s", s.run.Name)
	return nil
}

// NumObservations reports how many successful sibling runs were loaded.
func (s *Sweeper) NumObservations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numObservations
}

// NumFailures reports how many failed sibling runs were loaded.
func (s *Sweeper) NumFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numFailures
}

// loadRuns replays every finished sibling of the sweep into the engine.
// Runs still in the running state are skipped.
func (s *Sweeper) loadRuns(ctx context.Context) error {
	s.log.Info().Msgf("loading previous runs from sweep %s", s.run.SweepID)

	filters := wandb.RunFilters{
		SweepID:            s.run.SweepID,
		ExcludeRunID:       s.run.Name,
		RequireSummaryKeys: []string{model.SummaryKeyState},
	}
	siblings, err := s.client.Runs(ctx, s.ref.Entity, s.ref.Project, filters)
	if err != nil {
		return fmt.Errorf("failed to load sweep runs: %w", err)
	}

	var observations []carbs.ObservationInParam
	for _, sibling := range siblings {
		if sibling.SummaryString(model.SummaryKeyState) == model.StateRunning {
			continue
		}
		obs := s.observationFromRun(sibling)
		if obs.IsFailure {
			s.numFailures++
		} else {
			s.numObservations++
		}
		observations = append(observations, obs)
	}

	if err := s.engine.InitializeFromObservations(observations); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	s.log.Info().Msgf("initialized engine with %d observations and %d failures", s.numObservations, s.numFailures)
	return nil
}

func (s *Sweeper) observationFromRun(run *model.Run) carbs.ObservationInParam {
	return carbs.ObservationInParam{
		Input:     s.suggestionFromRun(run),
		Output:    codec.SummaryNumber(run.Summary, model.SummaryKeyObjective, 0),
		Cost:      codec.SummaryNumber(run.Summary, model.SummaryKeyCost, 0),
		IsFailure: run.SummaryString(model.SummaryKeyState) == model.StateFailure,
	}
}

// suggestionFromRun recovers the engine-space parameter assignment of a
// sibling run from its config, falling back to each parameter's search
// center when the config lacks it.
func (s *Sweeper) suggestionFromRun(run *model.Run) map[string]float64 {
	config := codec.DecodeRunConfig(run.Config)

	values := make(map[string]float64, len(s.engine.Params()))
	for _, p := range s.engine.Params() {
		v, ok := config[p.Name]
		if !ok {
			// Search centers are already in engine space; only config
			// values need the pow2 transform undone.
			values[p.Name] = p.SearchCenter
			continue
		}
		values[p.Name] = s.internalValue(p.Name, v)
	}
	return values
}

// updateConfig merges delta into the run config and pushes the full merged
// document. upsertBucket replaces the config wholesale, so entries that were
// already on the run (agent-assigned params, user config) must be carried.
func (s *Sweeper) updateConfig(ctx context.Context, delta map[string]any) error {
	merged := make(map[string]any, len(s.run.Config)+len(delta))
	for k, v := range s.run.Config {
		merged[k] = v
	}
	for k, v := range delta {
		merged[k] = v
	}

	if err := s.client.UpdateRunConfig(ctx, s.ref.Entity, s.ref.Project, s.ref.RunID, merged); err != nil {
		return fmt.Errorf("failed to update run config: %w", err)
	}
	s.run.Config = merged
	return nil
}

// updateSummary merges delta into the run summary and pushes the full merged
// document, keeping the local copy authoritative.
func (s *Sweeper) updateSummary(ctx context.Context, delta map[string]any) error {
	merged := make(map[string]any, len(s.run.Summary)+len(delta))
	for k, v := range s.run.Summary {
		merged[k] = v
	}
	for k, v := range delta {
		merged[k] = v
	}

	if err := s.client.UpdateRunSummary(ctx, s.ref.Entity, s.ref.Project, s.ref.RunID, merged); err != nil {
		return fmt.Errorf("failed to update run summary: %w", err)
	}
	s.run.Summary = merged
	return nil
}
