package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennwick/docshelf/internal/api"
	"github.com/fennwick/docshelf/internal/api/shared"
	"github.com/fennwick/docshelf/internal/config"
	"github.com/fennwick/docshelf/internal/converter"
	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/mocks"
	"github.com/fennwick/docshelf/internal/service"
)

type docAPIFixture struct {
	router http.Handler
	docs   *mocks.MemDocumentStore
	jobs   *mocks.MemJobStore
	userID uuid.UUID
}

func newDocAPIFixture(t *testing.T) *docAPIFixture {
	t.Helper()

	docs := mocks.NewMemDocumentStore()
	jobs := mocks.NewMemJobStore()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ingestService, err := service.NewIngestService(docs, jobs, nil, &stubEnqueuer{}, converter.NewRegistry(), config.IngestConfig{
		UploadDir:       t.TempDir(),
		MaxUploadSizeMB: 1,
	}, logger)
	require.NoError(t, err)

	documentService, err := service.NewDocumentService(docs, logger)
	require.NoError(t, err)

	jobService, err := service.NewJobService(jobs, &stubEnqueuer{}, logger)
	require.NoError(t, err)

	handler := api.NewDocumentHandler(ingestService, documentService, jobService)
	userID := uuid.New()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), shared.UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Post("/api/documents/text", handler.ImportText)
	r.Post("/api/documents/file", handler.UploadFile)
	r.Post("/api/documents/url", handler.SubmitURL)
	r.Get("/api/documents", handler.ListDocuments)
	r.Get("/api/documents/{id}", handler.GetDocument)
	r.Get("/api/documents/{id}/processing", handler.GetProcessingStatus)
	r.Delete("/api/documents/{id}", handler.DeleteDocument)

	return &docAPIFixture{router: r, docs: docs, jobs: jobs, userID: userID}
}

func (f *docAPIFixture) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestImportTextEndpoint(t *testing.T) {
	t.Parallel()

	f := newDocAPIFixture(t)

	t.Run("returns a ready document synchronously", func(t *testing.T) {
		rec := f.postJSON(t, "/api/documents/text", api.ImportTextRequest{
			Text: "# Title\ncontent here",
			Tags: []string{"inbox"},
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp api.DocumentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(domain.DocumentStatusReady), resp.Status)
		assert.Equal(t, "Title", resp.Title)
	})

	t.Run("empty text is a bad request", func(t *testing.T) {
		rec := f.postJSON(t, "/api/documents/text", api.ImportTextRequest{Text: "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUploadFileEndpoint(t *testing.T) {
	t.Parallel()

	f := newDocAPIFixture(t)

	upload := func(t *testing.T, filename, content string) *httptest.ResponseRecorder {
		t.Helper()

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/documents/file", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("accepted for background processing", func(t *testing.T) {
		rec := upload(t, "report.md", "# Quarterly Report")
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp api.DocumentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(domain.DocumentStatusProcessing), resp.Status)

		docID, err := uuid.Parse(resp.ID)
		require.NoError(t, err)
		job, err := f.jobs.GetByDocumentID(context.Background(), docID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusPending, job.Status)
	})

	t.Run("unsupported extension is a bad request", func(t *testing.T) {
		rec := upload(t, "photo.jpg", "binary-ish")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSubmitURLEndpoint(t *testing.T) {
	t.Parallel()

	f := newDocAPIFixture(t)

	t.Run("accepted for background processing", func(t *testing.T) {
		rec := f.postJSON(t, "/api/documents/url", api.SubmitURLRequest{
			URL: "https://example.com/article",
		})
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp api.DocumentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(domain.DocumentStatusProcessing), resp.Status)
	})

	t.Run("malformed URL is a bad request", func(t *testing.T) {
		rec := f.postJSON(t, "/api/documents/url", api.SubmitURLRequest{URL: "::not a url::"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetProcessingStatusEndpoint(t *testing.T) {
	t.Parallel()

	f := newDocAPIFixture(t)

	rec := f.postJSON(t, "/api/documents/url", api.SubmitURLRequest{URL: "https://example.com/a"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var doc api.DocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	t.Run("returns the pending job", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID+"/processing", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var job api.JobResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.Equal(t, string(domain.JobStatusPending), job.Status)
		assert.Equal(t, doc.ID, job.DocumentID)
	})

	t.Run("text import has no job", func(t *testing.T) {
		rec := f.postJSON(t, "/api/documents/text", api.ImportTextRequest{Text: "plain note"})
		require.Equal(t, http.StatusCreated, rec.Code)
		var textDoc api.DocumentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &textDoc))

		statusRec := httptest.NewRecorder()
		f.router.ServeHTTP(statusRec, httptest.NewRequest(http.MethodGet, "/api/documents/"+textDoc.ID+"/processing", nil))
		assert.Equal(t, http.StatusNotFound, statusRec.Code)
	})
}

func TestGetAndDeleteDocumentEndpoints(t *testing.T) {
	t.Parallel()

	f := newDocAPIFixture(t)

	rec := f.postJSON(t, "/api/documents/text", api.ImportTextRequest{Text: "keep me"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var doc api.DocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	t.Run("get owned document", func(t *testing.T) {
		getRec := httptest.NewRecorder()
		f.router.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID, nil))
		assert.Equal(t, http.StatusOK, getRec.Code)
	})

	t.Run("foreign document reads as not found", func(t *testing.T) {
		other, err := domain.NewDocument(uuid.New(), "Theirs", domain.DocTypeNote, domain.DocumentStatusReady)
		require.NoError(t, err)
		require.NoError(t, f.docs.Create(context.Background(), other))

		getRec := httptest.NewRecorder()
		f.router.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/api/documents/"+other.ID.String(), nil))
		assert.Equal(t, http.StatusNotFound, getRec.Code)
	})

	t.Run("delete then gone", func(t *testing.T) {
		delRec := httptest.NewRecorder()
		f.router.ServeHTTP(delRec, httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID, nil))
		require.Equal(t, http.StatusNoContent, delRec.Code)

		getRec := httptest.NewRecorder()
		f.router.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID, nil))
		assert.Equal(t, http.StatusNotFound, getRec.Code)
	})
}
