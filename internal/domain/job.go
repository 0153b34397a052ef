package domain

import "time"

// Status is the lifecycle state of a job. Transitions are monotonic:
// QUEUED -> PROCESSING -> SUCCEEDED | FAILED. Terminal states never change.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// JobType selects the processing backend for a job.
type JobType string

const (
	TypeAudio JobType = "AUDIO"
	TypeTask  JobType = "TASK"
)

// GeoLocation is an optional coordinate pair attached to task submissions.
type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Job is the engine's record of a submitted unit of work. The job record
// outlives its result: results are removed on first read, job records only
// by retention sweeps.
type Job struct {
	JobID           string    `json:"jobId"`
	SubmitterUserID string    `json:"submitterUserId"`
	Type            JobType   `json:"type"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// ErrorMessage carries the failure reason for FAILED jobs.
	ErrorMessage string `json:"errorMessage,omitempty"`

	// Task metadata, retained on the record and folded into the task result.
	Geo   *GeoLocation `json:"geo,omitempty"`
	Name  string       `json:"name,omitempty"`
	Group string       `json:"group,omitempty"`
	Data  string       `json:"data,omitempty"`
}
