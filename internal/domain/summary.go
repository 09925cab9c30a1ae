package domain

import "time"

// Run outcomes reported in RunSummary.Status.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// RunSummary describes one completed command run for downstream consumers.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Command    string    `json:"command"`
	Model      string    `json:"model,omitempty"`
	BaseDate   string    `json:"base_date,omitempty"`
	GridFile   string    `json:"grid_file,omitempty"`
	Messages   int       `json:"messages"`
	Records    int64     `json:"records"`
	Deleted    int64     `json:"deleted,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
