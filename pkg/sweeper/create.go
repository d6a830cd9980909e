package sweeper

import (
	"context"

	"github.com/Metta-AI/wandb-carbs/pkg/carbs"
	"github.com/Metta-AI/wandb-carbs/pkg/model"
)

// SweepClient creates sweeps. *wandb.Client satisfies it.
type SweepClient interface {
	UpsertSweep(ctx context.Context, entity, project string, cfg *model.SweepConfig) (string, error)
}

// CreateSweep registers a WandB sweep whose parameter grid mirrors the CARBS
// search space and returns the sweep ID. The sweep metric is nominal: the
// engine, not the WandB scheduler, picks parameters, but the backend
// requires a bayes method and a metric to accept the sweep.
func CreateSweep(ctx context.Context, client SweepClient, name, entity, project string, params []carbs.Param) (string, error) {
	return client.UpsertSweep(ctx, entity, project, SweepConfigFromParams(name, params))
}

// SweepConfigFromParams derives the WandB sweep definition from CARBS
// parameter spaces.
func SweepConfigFromParams(name string, params []carbs.Param) *model.SweepConfig {
	parameters := make(map[string]model.SweepParameter, len(params))
	for _, p := range params {
		min, max := p.Space.Bounds()
		parameters[p.Name] = model.SweepParameter{
			Min:          min,
			Max:          max,
			Distribution: distributionFor(p.Space),
		}
	}
	return &model.SweepConfig{
		Name:   name,
		Method: "bayes",
		Metric: model.SweepMetric{
			Name: "eval_metric",
			Goal: "maximize",
		},
		Parameters: parameters,
	}
}

func distributionFor(space carbs.Space) string {
	switch s := space.(type) {
	case carbs.LogSpace:
		return "log_uniform_values"
	case carbs.LogitSpace:
		return "uniform"
	case carbs.LinearSpace:
		if s.Integer {
			return "int_uniform"
		}
		return "uniform"
	default:
		return "uniform"
	}
}
