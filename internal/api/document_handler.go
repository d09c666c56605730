package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fennwick/docshelf/internal/api/shared"
	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/service"
)

// multipartMemoryLimit is the in-memory buffer for multipart parsing;
// larger uploads spill to temp files.
const multipartMemoryLimit = 8 << 20 // 8 MiB

// DocumentHandler handles document submission and library HTTP requests.
type DocumentHandler struct {
	ingestService   service.IngestService
	documentService service.DocumentService
	jobService      service.JobService
	validator       *validator.Validate
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(
	ingestService service.IngestService,
	documentService service.DocumentService,
	jobService service.JobService,
) *DocumentHandler {
	return &DocumentHandler{
		ingestService:   ingestService,
		documentService: documentService,
		jobService:      jobService,
		validator:       validator.New(),
	}
}

// ImportText handles POST /api/documents/text requests. Text import is
// synchronous: the response document is already ready.
func (h *DocumentHandler) ImportText(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req ImportTextRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	doc, err := h.ingestService.SubmitText(r.Context(), userID, req.Text, service.SubmitOptions{
		Title:      req.Title,
		Tags:       req.Tags,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, documentToResponse(doc))
}

// UploadFile handles POST /api/documents/file requests. The upload is
// accepted immediately; conversion runs in the background.
func (h *DocumentHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	opts, ok := submitOptionsFromForm(w, r)
	if !ok {
		return
	}

	doc, err := h.ingestService.SubmitFile(r.Context(), userID, header.Filename, file, opts)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, documentToResponse(doc))
}

// SubmitURL handles POST /api/documents/url requests. The URL is only
// validated syntactically here; the download happens in the worker.
func (h *DocumentHandler) SubmitURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req SubmitURLRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	doc, err := h.ingestService.SubmitURL(r.Context(), userID, req.URL, service.SubmitOptions{
		Title:      req.Title,
		Tags:       req.Tags,
		CategoryID: req.CategoryID,
		Method:     req.Method,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, documentToResponse(doc))
}

// ListDocuments handles GET /api/documents requests.
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, offset := getPagination(r)
	docs, err := h.documentService.ListDocuments(r.Context(), userID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	responses := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, documentToResponse(doc))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetDocument handles GET /api/documents/{id} requests.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	docID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.lookupOwnedDocument(w, r, userID, docID)
	if err != nil {
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, documentToResponse(doc))
}

// GetProcessingStatus handles GET /api/documents/{id}/processing requests,
// returning the document's most relevant job for polling clients.
func (h *DocumentHandler) GetProcessingStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	docID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.lookupOwnedDocument(w, r, userID, docID); err != nil {
		return
	}

	job, err := h.jobService.GetDocumentProcessingStatus(r.Context(), docID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			HandleAPIError(w, r, err, "No processing job is associated with this document")
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// DeleteDocument handles DELETE /api/documents/{id} requests.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	docID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.lookupOwnedDocument(w, r, userID, docID); err != nil {
		return
	}

	if err := h.documentService.DeleteDocument(r.Context(), docID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusNoContent, nil)
}

// lookupOwnedDocument fetches a document and enforces ownership, writing
// the error response itself on failure. A foreign document reads as not
// found so existence is not leaked across users.
func (h *DocumentHandler) lookupOwnedDocument(
	w http.ResponseWriter,
	r *http.Request,
	userID, docID uuid.UUID,
) (*domain.Document, error) {
	doc, err := h.documentService.GetDocument(r.Context(), docID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return nil, err
	}
	if doc.UserID != userID {
		HandleAPIError(w, r, service.ErrDocumentNotFound, "")
		return nil, service.ErrDocumentNotFound
	}
	return doc, nil
}

// submitOptionsFromForm builds SubmitOptions from multipart form fields,
// writing a 400 response on malformed values.
func submitOptionsFromForm(w http.ResponseWriter, r *http.Request) (service.SubmitOptions, bool) {
	opts := service.SubmitOptions{
		Title:  r.FormValue("title"),
		Method: r.FormValue("method"),
	}

	if raw := strings.TrimSpace(r.FormValue("tags")); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				opts.Tags = append(opts.Tags, tag)
			}
		}
	}

	if raw := r.FormValue("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "category_id has invalid format")
			return opts, false
		}
		opts.CategoryID = &id
	}

	return opts, true
}
