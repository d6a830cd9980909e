package model

import "time"

// Run states written under the SummaryKeyState summary key. A run acquires
// exactly one lifecycle: unset -> running -> success or failure.
const (
	StateRunning = "running"
	StateSuccess = "success"
	StateFailure = "failure"
)

// Summary keys the sweeper maintains on each run.
const (
	SummaryKeyState     = "carbs.state"
	SummaryKeyObjective = "carbs.objective"
	SummaryKeyCost      = "carbs.cost"
)

// Run is a WandB run with its config and summary decoded from the API.
type Run struct {
	ID          string
	Name        string
	DisplayName string
	Entity      string
	Project     string
	SweepID     string
	State       string
	CreatedAt   time.Time
	Config      map[string]any
	Summary     map[string]any
}

// SummaryString returns the string value stored under key, or "" when the
// key is absent or not a string.
func (r *Run) SummaryString(key string) string {
	if r.Summary == nil {
		return ""
	}
	s, _ := r.Summary[key].(string)
	return s
}
