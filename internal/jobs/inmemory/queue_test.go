package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-companion/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ProcessFileJob {
	t.Helper()
	var job *jobs.ProcessFileJob
	require.Eventually(t, func() bool {
		var err error
		job, err = store.GetJob(context.Background(), jobID)
		return err == nil && job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 2, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got atomic.Value
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessFileJob) error {
		got.Store(string(job.Content))
		job.Result = &jobs.JobResult{Success: true, TransactionsProcessed: 3}
		return nil
	}))

	job := &jobs.ProcessFileJob{UserID: "001", Filename: "bank.csv", Content: []byte("a,b")}
	require.NoError(t, q.PublishProcessFile(ctx, job))
	assert.NotEmpty(t, job.JobID)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, "a,b", got.Load())
	assert.Equal(t, 3, done.Result.TransactionsProcessed)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Nil(t, done.Content)

	require.NoError(t, q.Stop(context.Background()))
}

func TestQueue_NoRetryByDefault(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, 1, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessFileJob) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("store unavailable")
	}))

	job := &jobs.ProcessFileJob{Filename: "x.csv"}
	require.NoError(t, q.PublishProcessFile(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, "store unavailable", failed.Error)
	assert.Equal(t, 0, failed.RetryCount)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueue_RetriesUpToMax(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, 1, store)
	q.backoff = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessFileJob) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	job := &jobs.ProcessFileJob{Filename: "x.csv", MaxRetries: 2}
	require.NoError(t, q.PublishProcessFile(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, done.RetryCount)
	assert.Equal(t, "", done.Error)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Stop(context.Background()))

	err := q.PublishProcessFile(context.Background(), &jobs.ProcessFileJob{})
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), jobs.ErrQueueClosed)
}

func TestQueue_WorkersDoNotShareCallerJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(0, 4, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessFileJob) error {
		job.Result = &jobs.JobResult{Success: true}
		return nil
	}))

	published := make([]*jobs.ProcessFileJob, 0, 50)
	for i := 0; i < 50; i++ {
		job := &jobs.ProcessFileJob{Filename: "bank.csv", Content: []byte("a,b")}
		require.NoError(t, q.PublishProcessFile(ctx, job))
		assert.Equal(t, jobs.JobStatusPending, job.Status)
		published = append(published, job)
	}

	for _, job := range published {
		waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
		assert.Equal(t, jobs.JobStatusPending, job.Status)
		assert.Nil(t, job.Result)
		assert.Nil(t, job.StartedAt)
	}

	require.NoError(t, q.Stop(context.Background()))
}
