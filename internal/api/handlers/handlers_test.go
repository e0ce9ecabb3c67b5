package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-companion/internal/archive"
	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/jobs"
	"github.com/dvloznov/budget-companion/internal/jobs/inmemory"
	"github.com/dvloznov/budget-companion/internal/pipeline"
	"github.com/dvloznov/budget-companion/internal/store"
)

type MockUploadProcessor struct {
	ProcessUploadFunc func(ctx context.Context, userID, filename, content string) (*pipeline.Summary, error)
}

func (m *MockUploadProcessor) ProcessUpload(ctx context.Context, userID, filename, content string) (*pipeline.Summary, error) {
	return m.ProcessUploadFunc(ctx, userID, filename, content)
}

type MockPublisher struct {
	PublishProcessFileFunc func(ctx context.Context, job *jobs.ProcessFileJob) error
}

func (m *MockPublisher) PublishProcessFile(ctx context.Context, job *jobs.ProcessFileJob) error {
	return m.PublishProcessFileFunc(ctx, job)
}

func (m *MockPublisher) Close() error { return nil }

type MockTransactionRepository struct {
	InsertTransactionsFunc func(ctx context.Context, txs []*domain.PersistableTransaction) error
	ListTransactionsFunc   func(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error)
}

func (m *MockTransactionRepository) InsertTransactions(ctx context.Context, txs []*domain.PersistableTransaction) error {
	return m.InsertTransactionsFunc(ctx, txs)
}

func (m *MockTransactionRepository) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error) {
	return m.ListTransactionsFunc(ctx, filter)
}

type MockCategoryRepository struct {
	ListCategoriesFunc func(ctx context.Context, userID string) ([]domain.Category, error)
}

func (m *MockCategoryRepository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	return m.ListCategoriesFunc(ctx, userID)
}

func newUploadRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRootAndHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Root(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"message":"Smart Budget Companion API","status":"running"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["time"])
}

func TestUpload_Success(t *testing.T) {
	var gotUser, gotName, gotContent string
	proc := &MockUploadProcessor{
		ProcessUploadFunc: func(ctx context.Context, userID, filename, content string) (*pipeline.Summary, error) {
			gotUser, gotName, gotContent = userID, filename, content
			return &pipeline.Summary{
				Success:               true,
				Message:               "Successfully processed 1 transactions",
				TransactionsProcessed: 1,
				Transactions: []pipeline.PreviewItem{
					{Description: "WHOLE FOODS", Amount: -45.2, Category: "Groceries", Confidence: 0.92},
				},
			}, nil
		},
	}
	h := NewUploadHandler(proc, nil, nil, "001", 0)

	rec := httptest.NewRecorder()
	h.Upload(rec, newUploadRequest(t, "/api/upload", "file", "bank.csv", []byte("Date,Amount\n07/02/2025,-45.20")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "001", gotUser)
	assert.Equal(t, "bank.csv", gotName)
	assert.Contains(t, gotContent, "-45.20")
	assert.JSONEq(t, `{
		"success": true,
		"message": "Successfully processed 1 transactions",
		"transactions_processed": 1,
		"needs_review": 0,
		"transactions": [{"description":"WHOLE FOODS","amount":-45.2,"category":"Groceries","confidence":0.92,"needs_review":false}]
	}`, rec.Body.String())
}

func TestUpload_NoTransactions(t *testing.T) {
	proc := &MockUploadProcessor{
		ProcessUploadFunc: func(ctx context.Context, userID, filename, content string) (*pipeline.Summary, error) {
			return &pipeline.Summary{Message: pipeline.NoTransactionsMessage}, nil
		},
	}
	h := NewUploadHandler(proc, nil, nil, "001", 0)

	rec := httptest.NewRecorder()
	h.Upload(rec, newUploadRequest(t, "/api/upload", "file", "empty.txt", []byte("nothing here")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"No transactions found in the file","transactions_processed":0,"needs_review":0}`, rec.Body.String())
}

func TestUpload_ProcessingError(t *testing.T) {
	proc := &MockUploadProcessor{
		ProcessUploadFunc: func(ctx context.Context, userID, filename, content string) (*pipeline.Summary, error) {
			return nil, fmt.Errorf("%w: saving transactions: disk full", pipeline.ErrProcessingFailed)
		},
	}
	h := NewUploadHandler(proc, nil, nil, "001", 0)

	rec := httptest.NewRecorder()
	h.Upload(rec, newUploadRequest(t, "/api/upload", "file", "bank.csv", []byte("x")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Error processing file: processing failed: saving transactions: disk full"}`, rec.Body.String())
}

func TestUpload_BadRequests(t *testing.T) {
	proc := &MockUploadProcessor{
		ProcessUploadFunc: func(ctx context.Context, userID, filename, content string) (*pipeline.Summary, error) {
			t.Fatal("processor must not be called")
			return nil, nil
		},
	}
	h := NewUploadHandler(proc, nil, nil, "001", 0)

	rec := httptest.NewRecorder()
	h.Upload(rec, newUploadRequest(t, "/api/upload", "document", "bank.csv", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Upload(rec, newUploadRequest(t, "/api/upload", "file", "bank.pdf", []byte{0xff, 0xfe, 0x00, 0x80}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "UTF-8")
}

func TestUploadAsync_InlineContent(t *testing.T) {
	jobStore := inmemory.NewStore()
	var published *jobs.ProcessFileJob
	pub := &MockPublisher{
		PublishProcessFileFunc: func(ctx context.Context, job *jobs.ProcessFileJob) error {
			jobs.Prepare(job, func() string { return "job-1" }, time.Now())
			published = job
			return jobStore.SaveJob(ctx, job)
		},
	}
	h := NewUploadHandler(nil, pub, nil, "001", 2)

	rec := httptest.NewRecorder()
	h.UploadAsync(rec, newUploadRequest(t, "/api/upload/async", "file", "bank.csv", []byte("a,b")))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"job_id":"job-1","status":"pending"}`, rec.Body.String())
	require.NotNil(t, published)
	assert.Equal(t, []byte("a,b"), published.Content)
	assert.Empty(t, published.ArchiveURI)
	assert.Equal(t, 2, published.MaxRetries)
	assert.Equal(t, "001", published.UserID)
}

func TestUploadAsync_ReportsPendingWhileWorkersRun(t *testing.T) {
	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(0, 1, jobStore)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job *jobs.ProcessFileJob) error {
		job.Result = &jobs.JobResult{Success: true}
		return nil
	}))
	h := NewUploadHandler(nil, queue, nil, "001", 0)

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.UploadAsync(rec, newUploadRequest(t, "/api/upload/async", "file", "bank.csv", []byte("a,b")))

		require.Equal(t, http.StatusAccepted, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "pending", body["status"])
		assert.NotEmpty(t, body["job_id"])
	}

	require.NoError(t, queue.Stop(context.Background()))
}

func TestUploadAsync_ArchivesWhenConfigured(t *testing.T) {
	files := archive.NewMemoryStore()
	var published *jobs.ProcessFileJob
	pub := &MockPublisher{
		PublishProcessFileFunc: func(ctx context.Context, job *jobs.ProcessFileJob) error {
			job.JobID = "job-2"
			job.Status = jobs.JobStatusPending
			published = job
			return nil
		},
	}
	h := NewUploadHandler(nil, pub, files, "001", 0)

	rec := httptest.NewRecorder()
	h.UploadAsync(rec, newUploadRequest(t, "/api/upload/async", "file", "bank.csv", []byte("a,b")))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, published)
	assert.Nil(t, published.Content)
	require.True(t, strings.HasPrefix(published.ArchiveURI, "mem://"))

	data, err := files.Get(context.Background(), published.ArchiveURI)
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b"), data)
}

func TestUploadAsync_Errors(t *testing.T) {
	rec := httptest.NewRecorder()
	NewUploadHandler(nil, nil, nil, "001", 0).UploadAsync(rec, newUploadRequest(t, "/api/upload/async", "file", "a.csv", []byte("x")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	pub := &MockPublisher{
		PublishProcessFileFunc: func(ctx context.Context, job *jobs.ProcessFileJob) error {
			return jobs.ErrQueueClosed
		},
	}
	rec = httptest.NewRecorder()
	NewUploadHandler(nil, pub, nil, "001", 0).UploadAsync(rec, newUploadRequest(t, "/api/upload/async", "file", "a.csv", []byte("x")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func sampleRecords() []store.TransactionRecord {
	groceries := "Groceries"
	id := int64(1)
	return []store.TransactionRecord{
		{
			ID:              "tx-1",
			Date:            time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC),
			Amount:          -45.2,
			Description:     "WHOLE FOODS",
			CategoryID:      &id,
			CategoryName:    &groceries,
			ConfidenceScore: 0.92,
			FileSource:      "bank.csv",
		},
		{
			ID:              "tx-2",
			Date:            time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			Amount:          -3.5,
			Description:     "MISC",
			ConfidenceScore: 0.4,
			NeedsReview:     true,
			FileSource:      "bank.csv",
		},
	}
}

func TestListTransactions(t *testing.T) {
	var gotFilter store.TransactionFilter
	repo := &MockTransactionRepository{
		ListTransactionsFunc: func(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error) {
			gotFilter = filter
			return sampleRecords(), nil
		},
	}
	h := NewTransactionsHandler(repo, "001")

	rec := httptest.NewRecorder()
	h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?limit=5&needs_review=false", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "001", gotFilter.UserID)
	assert.Equal(t, 5, gotFilter.Limit)
	require.NotNil(t, gotFilter.NeedsReview)
	assert.False(t, *gotFilter.NeedsReview)

	assert.JSONEq(t, `{
		"total": 2,
		"transactions": [
			{"id":"tx-1","date":"2025-07-03T00:00:00","amount":-45.2,"description":"WHOLE FOODS","category":"Groceries","category_id":1,"confidence_score":0.92,"needs_review":false,"file_source":"bank.csv"},
			{"id":"tx-2","date":"2025-07-01T00:00:00","amount":-3.5,"description":"MISC","category":"Uncategorized","category_id":null,"confidence_score":0.4,"needs_review":true,"file_source":"bank.csv"}
		]
	}`, rec.Body.String())
}

func TestListTransactions_DefaultsAndErrors(t *testing.T) {
	var gotFilter store.TransactionFilter
	repo := &MockTransactionRepository{
		ListTransactionsFunc: func(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error) {
			gotFilter = filter
			return nil, nil
		},
	}
	h := NewTransactionsHandler(repo, "001")

	rec := httptest.NewRecorder()
	h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, gotFilter.NeedsReview)
	assert.Equal(t, store.DefaultListLimit, gotFilter.EffectiveLimit())
	assert.JSONEq(t, `{"transactions":[],"total":0}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?needs_review=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	failing := NewTransactionsHandler(&MockTransactionRepository{
		ListTransactionsFunc: func(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error) {
			return nil, errors.New("db down")
		},
	}, "001")
	rec = httptest.NewRecorder()
	failing.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReviewQueue(t *testing.T) {
	repo := &MockTransactionRepository{
		ListTransactionsFunc: func(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error) {
			require.NotNil(t, filter.NeedsReview)
			assert.True(t, *filter.NeedsReview)
			assert.Equal(t, store.ReviewQueueLimit, filter.Limit)
			return sampleRecords()[1:], nil
		},
	}
	h := NewTransactionsHandler(repo, "001")

	rec := httptest.NewRecorder()
	h.ReviewQueue(rec, httptest.NewRequest(http.MethodGet, "/api/review-queue", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"count": 1,
		"transactions": [{"id":"tx-2","date":"2025-07-01T00:00:00","amount":-3.5,"description":"MISC","category":"Uncategorized","confidence_score":0.4}]
	}`, rec.Body.String())
}

func TestListCategories(t *testing.T) {
	repo := &MockCategoryRepository{
		ListCategoriesFunc: func(ctx context.Context, userID string) ([]domain.Category, error) {
			assert.Equal(t, "001", userID)
			return []domain.Category{{ID: 1, Name: "Groceries", Color: "#10B981"}}, nil
		},
	}

	rec := httptest.NewRecorder()
	NewCategoriesHandler(repo, "001").ListCategories(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"categories":[{"id":1,"name":"Groceries","color":"#10B981","budget_limit":0,"is_custom":false}]}`, rec.Body.String())
}

func TestJobsHandler(t *testing.T) {
	jobStore := inmemory.NewStore()
	require.NoError(t, jobStore.SaveJob(context.Background(), &jobs.ProcessFileJob{
		JobID:     "job-1",
		UserID:    "001",
		Filename:  "bank.csv",
		Status:    jobs.JobStatusCompleted,
		CreatedAt: time.Now(),
	}))
	h := NewJobsHandler(jobStore)

	rec := httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil), "job-1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "job-1", body["job_id"])
	assert.Equal(t, "completed", body["status"])

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil), "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=failed", nil))
	assert.JSONEq(t, `{"jobs":[],"count":0}`, rec.Body.String())
}
