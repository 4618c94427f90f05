// Package ingest drives bulk ingest jobs against the Data Cloud ingestion API.
package ingest

// JobState is the remote job lifecycle vocabulary as reported on the wire.
type JobState string

// Job states the driver sends or recognizes.
const (
	StateUploadComplete JobState = "UploadComplete"
	StateJobComplete    JobState = "JobComplete"
	StateFailed         JobState = "Failed"
	StateAborted        JobState = "Aborted"
)

// Terminal reports whether no further polling is meaningful.
func (s JobState) Terminal() bool {
	switch s {
	case StateJobComplete, StateFailed, StateAborted:
		return true
	}
	return false
}

// FileResult is the outcome of processing one CSV batch file.
type FileResult struct {
	// Path is the local CSV file the job carried.
	Path string
	// JobID is the remote job id, empty if creation failed.
	JobID string
	// State is the last observed remote state, empty if never polled.
	State JobState
	// Err is the step failure that aborted processing, if any.
	Err error
}

// Succeeded reports whether the file reached JobComplete without errors.
func (r FileResult) Succeeded() bool {
	return r.Err == nil && r.State == StateJobComplete
}
