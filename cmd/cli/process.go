package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budget-companion/internal/archive"
	"github.com/dvloznov/budget-companion/internal/backend"
	"github.com/dvloznov/budget-companion/internal/jobs"
)

func newProcessCmd(a *app) *cobra.Command {
	var gcsURI string

	cmd := &cobra.Command{
		Use:   "process [file]",
		Short: "Extract, categorize and store the transactions of a statement",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (gcsURI == "") {
				return fmt.Errorf("give either a file path or --gcs-uri")
			}

			ctx, cancel := a.newContext()
			defer cancel()

			var filename string
			var data []byte
			if gcsURI != "" {
				bucket, _, err := archive.ParseGCSURI(gcsURI)
				if err != nil {
					return err
				}
				gcs, err := archive.NewGCSStore(ctx, bucket, "")
				if err != nil {
					return err
				}
				defer gcs.Close()

				if data, err = gcs.Get(ctx, gcsURI); err != nil {
					return err
				}
				filename = archive.FilenameFromURI(gcsURI)
			} else {
				var err error
				if data, err = os.ReadFile(args[0]); err != nil {
					return fmt.Errorf("reading %s: %w", args[0], err)
				}
				filename = filepath.Base(args[0])
			}

			repo, err := backend.OpenRepository(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			proc, err := backend.NewProcessor(ctx, a.cfg, repo)
			if err != nil {
				return err
			}

			summary, err := proc.ProcessUpload(ctx, a.cfg.UserID, filename, string(data))
			if err != nil {
				return err
			}
			return a.printJSON(summary)
		},
	}

	cmd.Flags().StringVar(&gcsURI, "gcs-uri", "", "process an archived statement, e.g. gs://bucket/uploads/file.csv")
	return cmd
}

func newEnqueueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <file>",
		Short: "Queue a statement for the worker through RabbitMQ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.UseAMQP() {
				return fmt.Errorf("AMQP_URL is required to enqueue jobs")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			ctx, cancel := a.newContext()
			defer cancel()

			files, closeFiles, err := backend.OpenArchive(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer closeFiles()

			queue, err := backend.NewJobs(a.cfg)
			if err != nil {
				return err
			}
			defer queue.Publisher.Close()

			job := &jobs.ProcessFileJob{
				UserID:     a.cfg.UserID,
				Filename:   filepath.Base(args[0]),
				MaxRetries: a.cfg.JobMaxRetries,
			}
			if files != nil {
				if job.ArchiveURI, err = files.Put(ctx, job.Filename, data); err != nil {
					return err
				}
			} else {
				job.Content = data
			}

			if err := queue.Publisher.PublishProcessFile(ctx, job); err != nil {
				return err
			}
			return a.printJSON(map[string]string{"job_id": job.JobID, "status": string(job.Status)})
		},
	}
}

func newArchiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <file>",
		Short: "Upload a statement to the GCS archive and print its URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.GCSBucket == "" {
				return fmt.Errorf("GCS_BUCKET is required to archive files")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			ctx, cancel := a.newContext()
			defer cancel()

			files, closeFiles, err := backend.OpenArchive(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer closeFiles()

			uri, err := files.Put(ctx, filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, uri)
			return nil
		},
	}
}
