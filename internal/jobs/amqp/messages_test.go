package amqp

import (
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-companion/internal/jobs"
)

func TestNewPublishing(t *testing.T) {
	now := time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC)
	job := &jobs.ProcessFileJob{
		JobID:      "job-1",
		UserID:     "001",
		Filename:   "statement.csv",
		ArchiveURI: "gs://bucket/uploads/2025/07/02/x-statement.csv",
		Status:     jobs.JobStatusPending,
		CreatedAt:  now,
		MaxRetries: 2,
	}

	msg, err := newPublishing(job, now)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
	assert.Equal(t, "job-1", msg.MessageId)
	assert.Equal(t, "process_file", msg.Type)
	assert.Equal(t, now, msg.Timestamp)

	decoded, err := decodeJob(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, job.JobID, decoded.JobID)
	assert.Equal(t, job.ArchiveURI, decoded.ArchiveURI)
	assert.Equal(t, job.MaxRetries, decoded.MaxRetries)
	assert.True(t, job.CreatedAt.Equal(decoded.CreatedAt))
	assert.Nil(t, decoded.Content)
}

func TestDecodeJob_Invalid(t *testing.T) {
	_, err := decodeJob([]byte("not json"))
	assert.Error(t, err)

	_, err = decodeJob([]byte(`{"filename":"a.csv"}`))
	assert.ErrorContains(t, err, "missing job_id")
}
