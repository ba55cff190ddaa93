package constants

// JobStatus is the canonical status for rows in extract_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued   JobStatus = "QUEUED"   // accepted, not started
	JobStatusRunning  JobStatus = "RUNNING"  // extraction in progress
	JobStatusRendered JobStatus = "RENDERED" // document produced (possibly from partial data)
	JobStatusFailed   JobStatus = "FAILED"   // render failed, nothing produced
)
