package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeProcessFile runs one uploaded statement through the pipeline.
	JobTypeProcessFile JobType = "process_file"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ErrJobNotFound is returned by JobStore lookups for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// ProcessFileJob is an uploaded statement waiting to be processed.
// The file travels either inline in Content or as an ArchiveURI.
type ProcessFileJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	UserID   string `json:"user_id"`
	Filename string `json:"filename"`

	Content    []byte `json:"content,omitempty"`
	ArchiveURI string `json:"archive_uri,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Result is set once the job completed.
	Result *JobResult `json:"result,omitempty"`
}

// JobResult is the outcome of a completed job.
type JobResult struct {
	Success               bool   `json:"success"`
	Message               string `json:"message"`
	TransactionsProcessed int    `json:"transactions_processed"`
	NeedsReview           int    `json:"needs_review"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ProcessFileJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ProcessFileJob) GetType() JobType {
	return JobTypeProcessFile
}

// GetStatus implements the Job interface.
func (j *ProcessFileJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher publishes jobs to a queue. PublishProcessFile assigns the job ID
// and initial status on job and must not hand job itself to a worker.
type Publisher interface {
	PublishProcessFile(ctx context.Context, job *ProcessFileJob) error
	Close() error
}

// Consumer consumes jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs. The handler is called for each job and
	// should return an error if the job failed and may be retried.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job.
type JobHandler func(ctx context.Context, job *ProcessFileJob) error

// JobStore stores and retrieves job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *ProcessFileJob) error
	GetJob(ctx context.Context, jobID string) (*ProcessFileJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessFileJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs. Results are
// ordered newest first.
type JobFilter struct {
	UserID string
	Status JobStatus
	Limit  int
	Offset int
}

// Prepare fills the defaults of a job about to be published.
func Prepare(job *ProcessFileJob, newID func() string, now time.Time) {
	if job.JobID == "" {
		job.JobID = newID()
	}
	if job.Status == "" {
		job.Status = JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
}

// Finish records the handler outcome on job. It reports whether the job
// should be retried.
func Finish(job *ProcessFileJob, err error, now time.Time) (retry bool) {
	job.CompletedAt = &now
	if err == nil {
		job.Status = JobStatusCompleted
		job.Error = ""
		return false
	}

	job.Error = err.Error()
	if job.RetryCount < job.MaxRetries {
		job.RetryCount++
		job.Status = JobStatusRetrying
		return true
	}
	job.Status = JobStatusFailed
	return false
}
