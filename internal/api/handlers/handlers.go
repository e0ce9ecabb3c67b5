package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/budget-companion/internal/api/middleware"
	"github.com/dvloznov/budget-companion/internal/archive"
	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/jobs"
	"github.com/dvloznov/budget-companion/internal/logger"
	"github.com/dvloznov/budget-companion/internal/pipeline"
	"github.com/dvloznov/budget-companion/internal/store"
)

const (
	// MaxUploadBytes bounds the size of an uploaded statement.
	MaxUploadBytes = 10 << 20

	uploadField = "file"
)

// Root handles GET /
func Root(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Smart Budget Companion API",
		"status":  "running",
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// UploadProcessor runs one file through the pipeline.
type UploadProcessor interface {
	ProcessUpload(ctx context.Context, userID, filename, content string) (*pipeline.Summary, error)
}

// UploadHandler handles statement uploads.
type UploadHandler struct {
	proc       UploadProcessor
	publisher  jobs.Publisher
	files      archive.Store
	userID     string
	maxRetries int
}

// NewUploadHandler creates a new upload handler. publisher and files may be
// nil: without a publisher the async endpoint is unavailable, without an
// archive queued files travel inline.
func NewUploadHandler(proc UploadProcessor, publisher jobs.Publisher, files archive.Store, userID string, maxRetries int) *UploadHandler {
	return &UploadHandler{
		proc:       proc,
		publisher:  publisher,
		files:      files,
		userID:     userID,
		maxRetries: maxRetries,
	}
}

// Upload handles POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}

	summary, err := h.proc.ProcessUpload(r.Context(), h.userID, filename, string(data))
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("filename", filename).Msg("Failed to process upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Error processing file: "+err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// UploadAsync handles POST /api/upload/async
func (h *UploadHandler) UploadAsync(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Job queue is not configured")
		return
	}

	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)

	job := &jobs.ProcessFileJob{
		UserID:     h.userID,
		Filename:   filename,
		MaxRetries: h.maxRetries,
	}

	if h.files != nil {
		uri, err := h.files.Put(ctx, filename, data)
		if err != nil {
			log.Error().Err(err).Str("filename", filename).Msg("Failed to archive upload")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to store file")
			return
		}
		job.ArchiveURI = uri
	} else {
		job.Content = data
	}

	if err := h.publisher.PublishProcessFile(ctx, job); err != nil {
		log.Error().Err(err).Str("filename", filename).Msg("Failed to enqueue upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue file")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("filename", filename).Msg("Upload enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// readUpload reads the multipart "file" field. It writes the error response
// and returns false when the upload is unusable.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A file must be uploaded in the \"file\" field")
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return "", nil, false
	}

	if !utf8.Valid(data) {
		middleware.WriteError(w, http.StatusBadRequest, "File must be UTF-8 encoded text")
		return "", nil, false
	}

	return filepath.Base(header.Filename), data, true
}

// TransactionItem is one transaction in listing responses.
type TransactionItem struct {
	ID              string  `json:"id"`
	Date            string  `json:"date"`
	Amount          float64 `json:"amount"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	CategoryID      *int64  `json:"category_id"`
	ConfidenceScore float64 `json:"confidence_score"`
	NeedsReview     bool    `json:"needs_review"`
	FileSource      string  `json:"file_source"`
}

// ReviewItem is one transaction in the review queue.
type ReviewItem struct {
	ID              string  `json:"id"`
	Date            string  `json:"date"`
	Amount          float64 `json:"amount"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	repo   store.TransactionRepository
	userID string
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo store.TransactionRepository, userID string) *TransactionsHandler {
	return &TransactionsHandler{
		repo:   repo,
		userID: userID,
	}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := store.TransactionFilter{UserID: h.userID}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	if reviewStr := query.Get("needs_review"); reviewStr != "" {
		needsReview, err := strconv.ParseBool(reviewStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid needs_review")
			return
		}
		filter.NeedsReview = &needsReview
	}

	records, err := h.repo.ListTransactions(ctx, filter)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	items := make([]TransactionItem, 0, len(records))
	for _, rec := range records {
		items = append(items, TransactionItem{
			ID:              rec.ID,
			Date:            domain.FormatDate(rec.Date),
			Amount:          rec.Amount,
			Description:     rec.Description,
			Category:        rec.CategoryLabel(),
			CategoryID:      rec.CategoryID,
			ConfidenceScore: rec.ConfidenceScore,
			NeedsReview:     rec.NeedsReview,
			FileSource:      rec.FileSource,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": items,
		"total":        len(items),
	})
}

// ReviewQueue handles GET /api/review-queue
func (h *TransactionsHandler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	needsReview := true
	records, err := h.repo.ListTransactions(ctx, store.TransactionFilter{
		UserID:      h.userID,
		NeedsReview: &needsReview,
		Limit:       store.ReviewQueueLimit,
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to query review queue")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query review queue")
		return
	}

	items := make([]ReviewItem, 0, len(records))
	for _, rec := range records {
		items = append(items, ReviewItem{
			ID:              rec.ID,
			Date:            domain.FormatDate(rec.Date),
			Amount:          rec.Amount,
			Description:     rec.Description,
			Category:        rec.CategoryLabel(),
			ConfidenceScore: rec.ConfidenceScore,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": items,
		"count":        len(items),
	})
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	repo   store.CategoryRepository
	userID string
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(repo store.CategoryRepository, userID string) *CategoriesHandler {
	return &CategoriesHandler{
		repo:   repo,
		userID: userID,
	}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.repo.ListCategories(ctx, h.userID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ProcessFileJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
