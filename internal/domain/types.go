package domain

import "time"

// JobStatus tracks one input file through a conversion run.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// RunStatus tracks the lifecycle of a whole batch run.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
)

// ConversionJob is one input-file-to-output-file unit. The input path is its identity.
type ConversionJob struct {
	InputPath  string    `json:"inputPath"`
	Status     JobStatus `json:"status"`
	OutputPath string    `json:"outputPath,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Run stores the current run identity, lifecycle status and progress.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Progress  int       `json:"progress"`
	OutputDir string    `json:"outputDir,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	DecoderPath string `json:"decoderPath"`
	OutputDir   string `json:"outputDir"`
}
