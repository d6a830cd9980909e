package wandb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Metta-AI/wandb-carbs/pkg/codec"
	"github.com/Metta-AI/wandb-carbs/pkg/model"
)

const runFragment = `
  id
  name
  displayName
  state
  createdAt
  sweepName
  config
  summaryMetrics`

const runQuery = `query Run($entity: String!, $project: String!, $name: String!) {
  project(name: $project, entityName: $entity) {
    run(name: $name) {` + runFragment + `
    }
  }
}`

const runsQuery = `query Runs($entity: String!, $project: String!, $filters: JSONString, $order: String, $cursor: String, $limit: Int) {
  project(name: $project, entityName: $entity) {
    runs(filters: $filters, order: $order, after: $cursor, first: $limit) {
      edges {
        node {` + runFragment + `
        }
        cursor
      }
      pageInfo {
        endCursor
        hasNextPage
      }
    }
  }
}`

const runsPageSize = 50

// RunFilters selects sweep sibling runs. It compiles to the MongoDB-style
// filter document the WandB runs endpoint accepts.
type RunFilters struct {
	// SweepID restricts results to one sweep.
	SweepID string
	// ExcludeRunID drops one run (the caller's own) from the results.
	ExcludeRunID string
	// RequireSummaryKeys keeps only runs whose summary has all given keys.
	RequireSummaryKeys []string
}

func (f RunFilters) toJSON() (string, error) {
	filter := map[string]any{}
	if f.SweepID != "" {
		filter["sweep"] = f.SweepID
	}
	if f.ExcludeRunID != "" {
		filter["name"] = map[string]any{"$ne": f.ExcludeRunID}
	}
	for _, key := range f.RequireSummaryKeys {
		filter["summary_metrics."+key] = map[string]any{"$exists": true}
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("failed to encode run filters: %w", err)
	}
	return string(data), nil
}

type runNode struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DisplayName    string `json:"displayName"`
	State          string `json:"state"`
	CreatedAt      string `json:"createdAt"`
	SweepName      string `json:"sweepName"`
	Config         string `json:"config"`
	SummaryMetrics string `json:"summaryMetrics"`
}

func (n *runNode) toModel(entity, project string) (*model.Run, error) {
	config, err := codec.ParseJSONObject(n.Config)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad config: %w", n.Name, err)
	}
	summary, err := codec.ParseJSONObject(n.SummaryMetrics)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad summary: %w", n.Name, err)
	}
	return &model.Run{
		ID:          n.ID,
		Name:        n.Name,
		DisplayName: n.DisplayName,
		Entity:      entity,
		Project:     project,
		SweepID:     n.SweepName,
		State:       n.State,
		CreatedAt:   parseTime(n.CreatedAt),
		Config:      config,
		Summary:     summary,
	}, nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Run fetches one run with its config and summary.
func (c *Client) Run(ctx context.Context, entity, project, runID string) (*model.Run, error) {
	var resp struct {
		Project *struct {
			Run *runNode `json:"run"`
		} `json:"project"`
	}
	vars := map[string]any{"entity": entity, "project": project, "name": runID}
	if err := c.do(ctx, runQuery, vars, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch run %s/%s/%s: %w", entity, project, runID, err)
	}
	if resp.Project == nil || resp.Project.Run == nil {
		return nil, fmt.Errorf("%s/%s/%s: %w", entity, project, runID, model.ErrRunNotFound)
	}
	return resp.Project.Run.toModel(entity, project)
}

// Runs queries matching runs ordered by ascending creation time, following
// pagination until the result set is exhausted.
func (c *Client) Runs(ctx context.Context, entity, project string, filters RunFilters) ([]*model.Run, error) {
	filterJSON, err := filters.toJSON()
	if err != nil {
		return nil, err
	}

	var runs []*model.Run
	cursor := ""
	for {
		var resp struct {
			Project *struct {
				Runs struct {
					Edges []struct {
						Node runNode `json:"node"`
					} `json:"edges"`
					PageInfo struct {
						EndCursor   string `json:"endCursor"`
						HasNextPage bool   `json:"hasNextPage"`
					} `json:"pageInfo"`
				} `json:"runs"`
			} `json:"project"`
		}

		vars := map[string]any{
			"entity":  entity,
			"project": project,
			"filters": filterJSON,
			"order":   "+created_at",
			"limit":   runsPageSize,
		}
		if cursor != "" {
			vars["cursor"] = cursor
		}
		if err := c.do(ctx, runsQuery, vars, &resp); err != nil {
			return nil, fmt.Errorf("failed to query runs in %s/%s: %w", entity, project, err)
		}
		if resp.Project == nil {
			return nil, fmt.Errorf("project %s/%s not found", entity, project)
		}

		for _, edge := range resp.Project.Runs.Edges {
			run, err := edge.Node.toModel(entity, project)
			if err != nil {
				return nil, err
			}
			runs = append(runs, run)
		}

		if !resp.Project.Runs.PageInfo.HasNextPage {
			return runs, nil
		}
		cursor = resp.Project.Runs.PageInfo.EndCursor
	}
}

const upsertRunMutation = `mutation UpsertBucket($entity: String, $project: String, $name: String, $config: JSONString, $summaryMetrics: JSONString) {
  upsertBucket(input: {entityName: $entity, projectName: $project, name: $name, config: $config, summaryMetrics: $summaryMetrics}) {
    bucket {
      id
      name
    }
  }
}`

// UpdateRunSummary replaces the run's summary metrics. Callers are expected
// to send the full merged summary.
func (c *Client) UpdateRunSummary(ctx context.Context, entity, project, runID string, summary map[string]any) error {
	return c.upsertRun(ctx, entity, project, runID, nil, summary)
}

// UpdateRunConfig replaces the run's config. Values must already be wrapped
// in the backend's {"value": v} envelope (see pkg/codec).
func (c *Client) UpdateRunConfig(ctx context.Context, entity, project, runID string, config map[string]any) error {
	return c.upsertRun(ctx, entity, project, runID, config, nil)
}

func (c *Client) upsertRun(ctx context.Context, entity, project, runID string, config, summary map[string]any) error {
	vars := map[string]any{"entity": entity, "project": project, "name": runID}
	if config != nil {
		data, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		vars["config"] = string(data)
	}
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		vars["summaryMetrics"] = string(data)
	}

	var resp struct {
		UpsertBucket *struct {
			Bucket *struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"bucket"`
		} `json:"upsertBucket"`
	}
	if err := c.do(ctx, upsertRunMutation, vars, &resp); err != nil {
		return fmt.Errorf("failed to update run %s/%s/%s: %w", entity, project, runID, err)
	}
	if resp.UpsertBucket == nil || resp.UpsertBucket.Bucket == nil {
		return fmt.Errorf("%s/%s/%s: %w", entity, project, runID, model.ErrRunNotFound)
	}
	return nil
}
