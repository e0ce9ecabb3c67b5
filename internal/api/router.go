// Package api exposes the upload pipeline and stored data over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-companion/internal/api/handlers"
	"github.com/dvloznov/budget-companion/internal/api/middleware"
)

// Handlers groups the endpoint handlers mounted by NewRouter. Jobs may be
// nil when no job store is available.
type Handlers struct {
	Upload       *handlers.UploadHandler
	Transactions *handlers.TransactionsHandler
	Categories   *handlers.CategoriesHandler
	Jobs         *handlers.JobsHandler
}

// NewRouter builds the HTTP handler with the middleware chain applied.
func NewRouter(log zerolog.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", handlers.Root)
	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", h.Upload.Upload)
		r.Post("/upload/async", h.Upload.UploadAsync)

		r.Get("/transactions", h.Transactions.ListTransactions)
		r.Get("/review-queue", h.Transactions.ReviewQueue)
		r.Get("/categories", h.Categories.ListCategories)

		if h.Jobs != nil {
			r.Get("/jobs", h.Jobs.ListJobs)
			r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
				h.Jobs.GetJob(w, r, chi.URLParam(r, "id"))
			})
		}
	})

	return r
}
