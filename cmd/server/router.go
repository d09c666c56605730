package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fennwick/docshelf/internal/api"
	apiMiddleware "github.com/fennwick/docshelf/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(app.userStore, app.jwtService, app.passwordVerifier)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	documentHandler := api.NewDocumentHandler(app.ingestService, app.documentService, app.jobService)
	jobHandler := api.NewJobHandler(app.jobService)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Document submission and library endpoints
			r.Post("/documents/text", documentHandler.ImportText)
			r.Post("/documents/file", documentHandler.UploadFile)
			r.Post("/documents/url", documentHandler.SubmitURL)
			r.Get("/documents", documentHandler.ListDocuments)
			r.Get("/documents/{id}", documentHandler.GetDocument)
			r.Get("/documents/{id}/processing", documentHandler.GetProcessingStatus)
			r.Delete("/documents/{id}", documentHandler.DeleteDocument)

			// Job status and control endpoints
			r.Get("/jobs", jobHandler.ListJobs)
			r.Get("/jobs/stats", jobHandler.GetJobStats)
			r.Get("/jobs/{id}", jobHandler.GetJob)
			r.Post("/jobs/{id}/retry", jobHandler.RetryJob)
			r.Post("/jobs/{id}/cancel", jobHandler.CancelJob)
			r.Delete("/jobs/{id}", jobHandler.DeleteJob)
		})
	})

	// Health check endpoint
	r.Get("/health", app.healthHandler)

	return r
}
