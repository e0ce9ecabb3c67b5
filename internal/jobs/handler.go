package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-companion/internal/archive"
	"github.com/dvloznov/budget-companion/internal/logger"
	"github.com/dvloznov/budget-companion/internal/pipeline"
)

// UploadProcessor runs one file through the pipeline.
type UploadProcessor interface {
	ProcessUpload(ctx context.Context, userID, filename, content string) (*pipeline.Summary, error)
}

// NewProcessFileHandler returns the JobHandler that processes uploads. Files
// referenced by ArchiveURI are loaded from files; files may be nil when
// every job carries its content inline.
func NewProcessFileHandler(proc UploadProcessor, files archive.Store) JobHandler {
	return func(ctx context.Context, job *ProcessFileJob) error {
		log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
			"job_id":   job.JobID,
			"filename": job.Filename,
		})
		ctx = logger.WithContext(ctx, log)

		content := job.Content
		if job.ArchiveURI != "" {
			if files == nil {
				return fmt.Errorf("ProcessFileHandler: job %s references %s but no archive is configured", job.JobID, job.ArchiveURI)
			}
			data, err := files.Get(ctx, job.ArchiveURI)
			if err != nil {
				return fmt.Errorf("ProcessFileHandler: loading %s: %w", job.ArchiveURI, err)
			}
			content = data
		}

		summary, err := proc.ProcessUpload(ctx, job.UserID, job.Filename, string(content))
		if err != nil {
			return err
		}

		job.Result = &JobResult{
			Success:               summary.Success,
			Message:               summary.Message,
			TransactionsProcessed: summary.TransactionsProcessed,
			NeedsReview:           summary.NeedsReview,
		}
		log.Info().Int("transactions", summary.TransactionsProcessed).Msg("Job processed")
		return nil
	}
}
