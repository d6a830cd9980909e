package wandb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Metta-AI/wandb-carbs/pkg/model"
)

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func decodeRequest(t *testing.T, r *http.Request) capturedRequest {
	t.Helper()
	var req capturedRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func writeData(t *testing.T, w http.ResponseWriter, data string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(`{"data": ` + data + `}`))
	require.NoError(t, err)
}

const runNodeJSON = `{
	"id": "gql-abc123",
	"name": "abc123",
	"displayName": "royal-sweep-1",
	"state": "running",
	"createdAt": "2024-03-01T10:00:00",
	"sweepName": "sweep-xyz",
	"config": "{\"lr\": {\"value\": 0.001}}",
	"summaryMetrics": "{\"carbs.state\": \"success\", \"carbs.objective\": 0.9}"
}`

func newTestClient(url string) *Client {
	return NewClient(NewConfig(
		WithBaseURL(url),
		WithAPIKey("secret-key"),
		WithTimeout(5*time.Second),
	))
}

func TestClientSendsBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		writeData(t, w, `{"project": {"run": `+runNodeJSON+`}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Run(context.Background(), "ent", "proj", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "api", gotUser)
	assert.Equal(t, "secret-key", gotPass)
}

func TestRunDecodesConfigAndSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, "abc123", req.Variables["name"])
		writeData(t, w, `{"project": {"run": `+runNodeJSON+`}}`)
	}))
	defer server.Close()

	run, err := newTestClient(server.URL).Run(context.Background(), "ent", "proj", "abc123")
	require.NoError(t, err)

	assert.Equal(t, "abc123", run.Name)
	assert.Equal(t, "sweep-xyz", run.SweepID)
	assert.Equal(t, "ent", run.Entity)
	assert.Equal(t, "proj", run.Project)
	assert.Equal(t, 2024, run.CreatedAt.Year())

	lr, ok := run.Config["lr"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("0.001"), lr["value"])
	assert.Equal(t, "success", run.Summary["carbs.state"])
}

func TestRunNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(t, w, `{"project": {"run": null}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Run(context.Background(), "ent", "proj", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrRunNotFound))
}

func TestRunsSendsMongoFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, "+created_at", req.Variables["order"])

		filterJSON, ok := req.Variables["filters"].(string)
		require.True(t, ok)
		var filter map[string]any
		require.NoError(t, json.Unmarshal([]byte(filterJSON), &filter))
		assert.Equal(t, "sweep-xyz", filter["sweep"])
		assert.Equal(t, map[string]any{"$ne": "me"}, filter["name"])
		assert.Equal(t, map[string]any{"$exists": true}, filter["summary_metrics.carbs.state"])

		writeData(t, w, `{"project": {"runs": {"edges": [{"node": `+runNodeJSON+`}], "pageInfo": {"endCursor": "", "hasNextPage": false}}}}`)
	}))
	defer server.Close()

	runs, err := newTestClient(server.URL).Runs(context.Background(), "ent", "proj", RunFilters{
		SweepID:            "sweep-xyz",
		ExcludeRunID:       "me",
		RequireSummaryKeys: []string{"carbs.state"},
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "abc123", runs[0].Name)
}

func TestRunsFollowsPagination(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		if atomic.AddInt32(&calls, 1) == 1 {
			assert.Nil(t, req.Variables["cursor"])
			writeData(t, w, `{"project": {"runs": {"edges": [{"node": `+runNodeJSON+`}], "pageInfo": {"endCursor": "cur-1", "hasNextPage": true}}}}`)
			return
		}
		assert.Equal(t, "cur-1", req.Variables["cursor"])
		writeData(t, w, `{"project": {"runs": {"edges": [{"node": `+runNodeJSON+`}], "pageInfo": {"endCursor": "", "hasNextPage": false}}}}`)
	}))
	defer server.Close()

	runs, err := newTestClient(server.URL).Runs(context.Background(), "ent", "proj", RunFilters{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "internal", http.StatusInternalServerError)
			return
		}
		writeData(t, w, `{"project": {"run": `+runNodeJSON+`}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Run(context.Background(), "ent", "proj", "abc123")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGraphQLErrorIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors": [{"message": "permission denied"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Run(context.Background(), "ent", "proj", "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "graphql errors are not retried")
}

func TestUpdateRunSummarySendsJSONString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		summaryJSON, ok := req.Variables["summaryMetrics"].(string)
		require.True(t, ok)
		var summary map[string]any
		require.NoError(t, json.Unmarshal([]byte(summaryJSON), &summary))
		assert.Equal(t, "running", summary["carbs.state"])
		assert.Nil(t, req.Variables["config"])

		writeData(t, w, `{"upsertBucket": {"bucket": {"id": "gql-abc123", "name": "abc123"}}}`)
	}))
	defer server.Close()

	err := newTestClient(server.URL).UpdateRunSummary(context.Background(), "ent", "proj", "abc123",
		map[string]any{"carbs.state": "running"})
	require.NoError(t, err)
}

func TestUpsertSweepSendsYAML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		configYAML, ok := req.Variables["config"].(string)
		require.True(t, ok)
		assert.Contains(t, configYAML, "method: bayes")
		assert.Contains(t, configYAML, "goal: maximize")

		writeData(t, w, `{"upsertSweep": {"sweep": {"id": "gql-sweep", "name": "sweep-xyz"}}}`)
	}))
	defer server.Close()

	cfg := &model.SweepConfig{
		Method: "bayes",
		Metric: model.SweepMetric{Name: "eval_metric", Goal: "maximize"},
	}
	sweepID, err := newTestClient(server.URL).UpsertSweep(context.Background(), "ent", "proj", cfg)
	require.NoError(t, err)
	assert.Equal(t, "sweep-xyz", sweepID)
}
