package wandb

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Metta-AI/wandb-carbs/pkg/model"
)

const upsertSweepMutation = `mutation UpsertSweep($entity: String, $project: String, $config: String!) {
  upsertSweep(input: {entityName: $entity, projectName: $project, config: $config}) {
    sweep {
      id
      name
    }
  }
}`

// UpsertSweep creates a sweep and returns its ID. The backend takes the
// sweep definition as a YAML document.
func (c *Client) UpsertSweep(ctx context.Context, entity, project string, cfg *model.SweepConfig) (string, error) {
	configYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode sweep config: %w", err)
	}

	var resp struct {
		UpsertSweep *struct {
			Sweep *struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"sweep"`
		} `json:"upsertSweep"`
	}
	vars := map[string]any{"entity": entity, "project": project, "config": string(configYAML)}
	if err := c.do(ctx, upsertSweepMutation, vars, &resp); err != nil {
		return "", fmt.Errorf("failed to create sweep in %s/%s: %w", entity, project, err)
	}
	if resp.UpsertSweep == nil || resp.UpsertSweep.Sweep == nil {
		return "", fmt.Errorf("sweep creation in %s/%s returned no sweep", entity, project)
	}
	return resp.UpsertSweep.Sweep.Name, nil
}
