package job

import (
	"encoding/json"
	"time"
)

// Job is one ingestion run that died, kept around for inspection and manual
// retry. State names the pipeline stage the run failed in; Payload is the
// original ingestion request.
type Job struct {
	ID        string          `json:"id"`
	SourceID  string          `json:"source_id"`
	State     string          `json:"state"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
