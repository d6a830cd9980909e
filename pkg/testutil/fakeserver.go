// Package testutil provides test doubles for the WandB backend: an
// in-process fake GraphQL server for unit tests and a dockertest bootstrap
// that launches a real local WandB server for opt-in integration runs.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FakeRun is a run stored by the fake server.
type FakeRun struct {
	Name        string
	DisplayName string
	Sweep       string
	State       string
	CreatedAt   time.Time
	Config      map[string]any
	Summary     map[string]any
}

// FakeWandB implements the GraphQL subset the wandb client uses, backed by
// in-memory run and sweep storage.
type FakeWandB struct {
	mu     sync.Mutex
	srv    *httptest.Server
	runs   map[string]*FakeRun
	sweeps map[string]string // sweep ID -> config YAML
	clock  time.Time
}

func NewFakeWandB() *FakeWandB {
	f := &FakeWandB{
		runs:   map[string]*FakeRun{},
		sweeps: map[string]string{},
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", f.handleGraphQL)
	f.srv = httptest.NewServer(mux)
	return f
}

func (f *FakeWandB) URL() string { return f.srv.URL }

func (f *FakeWandB) Close() { f.srv.Close() }

// NewRunID mints a short run identifier in the backend's style.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// CreateRun seeds a run. Creation timestamps are strictly increasing in
// insertion order.
func (f *FakeWandB) CreateRun(name, sweep string) *FakeRun {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clock = f.clock.Add(time.Minute)
	run := &FakeRun{
		Name:        name,
		DisplayName: "run-" + name,
		Sweep:       sweep,
		State:       "running",
		CreatedAt:   f.clock,
		Config:      map[string]any{},
		Summary:     map[string]any{},
	}
	f.runs[name] = run
	return run
}

// RunSummary returns a copy of the stored summary for a run.
func (f *FakeWandB) RunSummary(name string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[name]
	if !ok {
		return nil
	}
	return copyMap(run.Summary)
}

// RunConfig returns a copy of the stored config for a run.
func (f *FakeWandB) RunConfig(name string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[name]
	if !ok {
		return nil
	}
	return copyMap(run.Config)
}

// SetRunSummary replaces the stored summary of a run.
func (f *FakeWandB) SetRunSummary(name string, summary map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if run, ok := f.runs[name]; ok {
		run.Summary = copyMap(summary)
	}
}

// SetRunConfig replaces the stored config of a run.
func (f *FakeWandB) SetRunConfig(name string, config map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if run, ok := f.runs[name]; ok {
		run.Config = copyMap(config)
	}
}

// SweepConfig returns the stored YAML config of a sweep.
func (f *FakeWandB) SweepConfig(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps[id]
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (f *FakeWandB) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, "bad request body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.Contains(req.Query, "query Runs("):
		f.handleRuns(w, req)
	case strings.Contains(req.Query, "query Run("):
		f.handleRun(w, req)
	case strings.Contains(req.Query, "upsertSweep("):
		f.handleUpsertSweep(w, req)
	case strings.Contains(req.Query, "upsertBucket("):
		f.handleUpsertBucket(w, req)
	default:
		writeErrors(w, "unsupported operation")
	}
}

func (f *FakeWandB) handleRun(w http.ResponseWriter, req gqlRequest) {
	name, _ := req.Variables["name"].(string)
	run, ok := f.runs[name]
	if !ok {
		writeData(w, map[string]any{"project": map[string]any{"run": nil}})
		return
	}
	writeData(w, map[string]any{"project": map[string]any{"run": runNodeJSON(run)}})
}

func (f *FakeWandB) handleRuns(w http.ResponseWriter, req gqlRequest) {
	filterJSON, _ := req.Variables["filters"].(string)
	var filters map[string]any
	if filterJSON != "" {
		if err := json.Unmarshal([]byte(filterJSON), &filters); err != nil {
			writeErrors(w, "bad filters: "+err.Error())
			return
		}
	}

	var matched []*FakeRun
	for _, run := range f.runs {
		if matchesFilters(run, filters) {
			matched = append(matched, run)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	edges := make([]map[string]any, 0, len(matched))
	for i, run := range matched {
		edges = append(edges, map[string]any{
			"node":   runNodeJSON(run),
			"cursor": fmt.Sprintf("cursor-%d", i),
		})
	}
	writeData(w, map[string]any{"project": map[string]any{"runs": map[string]any{
		"edges": edges,
		"pageInfo": map[string]any{
			"endCursor":   "",
			"hasNextPage": false,
		},
	}}})
}

func (f *FakeWandB) handleUpsertSweep(w http.ResponseWriter, req gqlRequest) {
	config, _ := req.Variables["config"].(string)
	id := NewRunID()
	f.sweeps[id] = config
	writeData(w, map[string]any{"upsertSweep": map[string]any{"sweep": map[string]any{
		"id":   "gql-" + id,
		"name": id,
	}}})
}

func (f *FakeWandB) handleUpsertBucket(w http.ResponseWriter, req gqlRequest) {
	name, _ := req.Variables["name"].(string)
	run, ok := f.runs[name]
	if !ok {
		run = &FakeRun{
			Name:      name,
			CreatedAt: f.clock,
			Config:    map[string]any{},
			Summary:   map[string]any{},
		}
		f.runs[name] = run
	}

	if configJSON, ok := req.Variables["config"].(string); ok && configJSON != "" {
		var config map[string]any
		if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
			writeErrors(w, "bad config: "+err.Error())
			return
		}
		run.Config = config
	}
	if summaryJSON, ok := req.Variables["summaryMetrics"].(string); ok && summaryJSON != "" {
		var summary map[string]any
		if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
			writeErrors(w, "bad summary: "+err.Error())
			return
		}
		run.Summary = summary
	}

	writeData(w, map[string]any{"upsertBucket": map[string]any{"bucket": map[string]any{
		"id":   "gql-" + run.Name,
		"name": run.Name,
	}}})
}

// matchesFilters evaluates the MongoDB-style filter subset the client
// produces: sweep equality, name $ne, and summary_metrics.<key> $exists.
func matchesFilters(run *FakeRun, filters map[string]any) bool {
	for key, cond := range filters {
		switch {
		case key == "sweep":
			if run.Sweep != cond {
				return false
			}
		case key == "name":
			if ne, ok := cond.(map[string]any); ok {
				if run.Name == ne["$ne"] {
					return false
				}
			}
		case strings.HasPrefix(key, "summary_metrics."):
			summaryKey := strings.TrimPrefix(key, "summary_metrics.")
			if exists, ok := cond.(map[string]any); ok {
				_, present := run.Summary[summaryKey]
				if want, _ := exists["$exists"].(bool); want != present {
					return false
				}
			}
		}
	}
	return true
}

func runNodeJSON(run *FakeRun) map[string]any {
	configJSON, _ := json.Marshal(run.Config)
	summaryJSON, _ := json.Marshal(run.Summary)
	return map[string]any{
		"id":             "gql-" + run.Name,
		"name":           run.Name,
		"displayName":    run.DisplayName,
		"state":          run.State,
		"createdAt":      run.CreatedAt.Format(time.RFC3339),
		"sweepName":      run.Sweep,
		"config":         string(configJSON),
		"summaryMetrics": string(summaryJSON),
	}
}

func writeData(w http.ResponseWriter, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeErrors(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]any{{"message": message}},
	})
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
