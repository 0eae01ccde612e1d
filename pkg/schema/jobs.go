package schema

// JobRequest asks a worker to convert a set of documents. Zero settings fall
// back to the worker's defaults.
type JobRequest struct {
	ID        string   `json:"id"`
	Inputs    []string `json:"inputs"`
	OutputDir string   `json:"output_dir,omitempty"`
	Format    string   `json:"format,omitempty"`
	Quality   int      `json:"quality,omitempty"`
	DPI       float64  `json:"dpi,omitempty"`
}

type FailureType string

const (
	FailureTypeValidation FailureType = "validation" // request can never succeed as sent
	FailureTypePermanent  FailureType = "permanent"
	FailureTypeRetryable  FailureType = "retryable"
)

type DocumentFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// JobResult is published once per JobRequest.
type JobResult struct {
	ID               string            `json:"id"`
	RunID            string            `json:"run_id,omitempty"`
	Summary          *BatchSummary     `json:"summary,omitempty"`
	Failures         []DocumentFailure `json:"failures,omitempty"`
	Error            string            `json:"error,omitempty"`
	FailureType      FailureType       `json:"failure_type,omitempty"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	HappenedAt       int64             `json:"happened_at"`
}
