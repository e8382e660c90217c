package api

import (
	"encoding/json"

	"github.com/forPelevin/adcut/internal/store"
)

type HealthResponse struct {
	Status      string        `json:"status"`
	Version     string        `json:"version"`
	UptimeS     int64         `json:"uptime_s"`
	Engine      *EngineHealth `json:"engine,omitempty"`
	ActiveJobID string        `json:"active_job_id,omitempty"`
}

type EngineHealth struct {
	State   string `json:"state"`
	Version string `json:"version,omitempty"`
}

// SubmitJobRequest describes one render. Mode picks which of the other
// fields matter, mirroring the CLI commands. Plan and Ops carry inline
// JSON for clients without access to the server's filesystem; media
// paths inside them should be absolute.
type SubmitJobRequest struct {
	Mode       string          `json:"mode"`
	Input      string          `json:"input,omitempty"`
	Plan       json.RawMessage `json:"plan,omitempty"`
	PlanPath   string          `json:"plan_path,omitempty"`
	Ops        json.RawMessage `json:"ops,omitempty"`
	OpsPath    string          `json:"ops_path,omitempty"`
	Gap        float64         `json:"gap,omitempty"`
	StartWord  string          `json:"start_word,omitempty"`
	EndWord    string          `json:"end_word,omitempty"`
	Transition float64         `json:"transition,omitempty"`
	Output     string          `json:"output,omitempty"`
}

type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

type JobsResponse struct {
	Jobs []*store.Job `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
