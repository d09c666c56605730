package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fennwick/docshelf/internal/config"
	"github.com/fennwick/docshelf/internal/converter"
	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/store"
	"github.com/google/uuid"
)

// supportedExtensions whitelists file submissions. Formats the built-in
// basic strategy cannot decode are still accepted here; their jobs fail
// with a readable error unless a richer strategy is registered.
var supportedExtensions = map[string]domain.DocType{
	".txt":      domain.DocTypeText,
	".text":     domain.DocTypeText,
	".md":       domain.DocTypeMarkdown,
	".markdown": domain.DocTypeMarkdown,
	".pdf":      domain.DocTypePDF,
}

// SubmitOptions carries the optional metadata of a submission.
type SubmitOptions struct {
	// Title overrides the derived title when non-empty.
	Title string

	// Tags are attached to both the document and its job.
	Tags []string

	// CategoryID files the document under a category.
	CategoryID *uuid.UUID

	// Method selects the conversion strategy; empty means the default.
	Method string
}

// JobEnqueuer is the port into the worker runner consumed by services.
type JobEnqueuer interface {
	// Enqueue offers a job ID to the worker pool. A full queue is not
	// fatal: the job stays pending and the monitor sweep re-offers it.
	Enqueue(jobID uuid.UUID) error

	// CancelRunning cuts the context of an in-flight job, if this process
	// is currently working on it. Returns whether a worker was signalled.
	CancelRunning(jobID uuid.UUID) bool
}

// IngestService validates submissions and creates documents plus their
// background conversion jobs. Submission never blocks on network or
// conversion I/O: for sources needing background work the document is
// returned immediately with status=processing.
type IngestService interface {
	// SubmitText imports raw text synchronously: the document is created
	// ready, and no job exists (fast path).
	SubmitText(ctx context.Context, userID uuid.UUID, text string, opts SubmitOptions) (*domain.Document, error)

	// SubmitFile spools the uploaded bytes and creates a processing
	// document with a companion pending job.
	SubmitFile(ctx context.Context, userID uuid.UUID, filename string, file io.Reader, opts SubmitOptions) (*domain.Document, error)

	// SubmitURL validates the URL syntactically and creates a processing
	// document with a companion pending job; the download happens inside
	// the worker.
	SubmitURL(ctx context.Context, userID uuid.UUID, rawURL string, opts SubmitOptions) (*domain.Document, error)
}

// ingestServiceImpl implements the IngestService interface.
type ingestServiceImpl struct {
	docStore store.DocumentStore
	jobStore store.JobStore
	db       *sql.DB
	enqueuer JobEnqueuer
	registry *converter.Registry
	cfg      config.IngestConfig
	logger   *slog.Logger
}

// NewIngestService creates a new IngestService. db may be nil in tests,
// in which case document+job creation is not transactional.
func NewIngestService(
	docStore store.DocumentStore,
	jobStore store.JobStore,
	db *sql.DB,
	enqueuer JobEnqueuer,
	registry *converter.Registry,
	cfg config.IngestConfig,
	logger *slog.Logger,
) (IngestService, error) {
	if docStore == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "docStore cannot be nil"}
	}
	if jobStore == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "jobStore cannot be nil"}
	}
	if enqueuer == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "enqueuer cannot be nil"}
	}
	if registry == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "registry cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ingestServiceImpl{
		docStore: docStore,
		jobStore: jobStore,
		db:       db,
		enqueuer: enqueuer,
		registry: registry,
		cfg:      cfg,
		logger:   logger.With("component", "ingest_service"),
	}, nil
}

// SubmitText implements IngestService.SubmitText
func (s *ingestServiceImpl) SubmitText(
	ctx context.Context,
	userID uuid.UUID,
	text string,
	opts SubmitOptions,
) (*domain.Document, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, validationError("text cannot be empty")
	}

	title := opts.Title
	if title == "" {
		title = firstLineTitle(trimmed)
	}

	doc, err := domain.NewDocument(userID, title, domain.DocTypeNote, domain.DocumentStatusReady)
	if err != nil {
		return nil, &ServiceError{Operation: "submit_text", Message: "failed to build document", Err: err}
	}
	doc.Content = trimmed
	applyOptions(doc, opts)

	if err := s.docStore.Create(ctx, doc); err != nil {
		return nil, &ServiceError{Operation: "submit_text", Message: "failed to save document", Err: err}
	}

	s.logger.Info("text imported",
		"document_id", doc.ID,
		"user_id", userID)
	return doc, nil
}

// SubmitFile implements IngestService.SubmitFile
func (s *ingestServiceImpl) SubmitFile(
	ctx context.Context,
	userID uuid.UUID,
	filename string,
	file io.Reader,
	opts SubmitOptions,
) (*domain.Document, error) {
	if file == nil {
		return nil, validationError("file cannot be empty")
	}
	if filename == "" {
		return nil, validationError("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	docType, ok := supportedExtensions[ext]
	if !ok {
		return nil, validationError("unsupported file extension %q", ext)
	}

	if err := s.checkMethod(opts.Method); err != nil {
		return nil, err
	}

	sourcePath, err := s.spool(file, ext)
	if err != nil {
		return nil, err
	}

	title := opts.Title
	if title == "" {
		base := filepath.Base(filename)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	doc, job, err := s.createDocumentAndJob(
		ctx, userID, title, docType, domain.SourceTypeFile, sourcePath, filename, opts,
	)
	if err != nil {
		// The spooled bytes are orphaned without a job pointing at them.
		_ = os.Remove(sourcePath)
		return nil, err
	}

	s.offer(job)
	return doc, nil
}

// SubmitURL implements IngestService.SubmitURL
func (s *ingestServiceImpl) SubmitURL(
	ctx context.Context,
	userID uuid.UUID,
	rawURL string,
	opts SubmitOptions,
) (*domain.Document, error) {
	parsed, err := url.ParseRequestURI(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, validationError("malformed URL: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, validationError("unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, validationError("URL has no host")
	}

	if err := s.checkMethod(opts.Method); err != nil {
		return nil, err
	}

	docType := domain.DocTypeWeb
	if t, ok := supportedExtensions[strings.ToLower(filepath.Ext(parsed.Path))]; ok {
		docType = t
	}

	title := opts.Title
	if title == "" {
		title = parsed.Host + parsed.Path
	}

	doc, job, err := s.createDocumentAndJob(
		ctx, userID, title, docType, domain.SourceTypeURL, parsed.String(), "", opts,
	)
	if err != nil {
		return nil, err
	}

	s.offer(job)
	return doc, nil
}

// createDocumentAndJob persists the optimistic document and its pending
// job atomically when a database handle is available. Exactly one job is
// created per background-requiring submission.
func (s *ingestServiceImpl) createDocumentAndJob(
	ctx context.Context,
	userID uuid.UUID,
	title string,
	docType domain.DocType,
	sourceType domain.SourceType,
	sourcePath string,
	originalFilename string,
	opts SubmitOptions,
) (*domain.Document, *domain.ProcessingJob, error) {
	doc, err := domain.NewDocument(userID, title, docType, domain.DocumentStatusProcessing)
	if err != nil {
		return nil, nil, &ServiceError{Operation: "submit", Message: "failed to build document", Err: err}
	}
	doc.FileName = originalFilename
	applyOptions(doc, opts)

	job, err := domain.NewProcessingJob(userID, doc.ID, sourceType, sourcePath)
	if err != nil {
		return nil, nil, &ServiceError{Operation: "submit", Message: "failed to build job", Err: err}
	}
	job.OriginalFilename = originalFilename
	job.Method = opts.Method
	job.Title = title
	job.Tags = doc.Tags
	job.CategoryID = opts.CategoryID

	createBoth := func(docs store.DocumentStore, jobs store.JobStore) error {
		if err := docs.Create(ctx, doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		if err := jobs.Create(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		return nil
	}

	if s.db != nil {
		err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			return createBoth(s.docStore.WithTx(tx), s.jobStore.WithTx(tx))
		})
	} else {
		err = createBoth(s.docStore, s.jobStore)
	}
	if err != nil {
		return nil, nil, &ServiceError{Operation: "submit", Message: "failed to persist submission", Err: err}
	}

	s.logger.Info("submission accepted",
		"document_id", doc.ID,
		"job_id", job.ID,
		"source_type", sourceType,
		"user_id", userID)
	return doc, job, nil
}

// offer hands the job to the worker pool. A full queue only delays the
// job: it stays pending and the monitor sweep re-offers it later.
func (s *ingestServiceImpl) offer(job *domain.ProcessingJob) {
	if err := s.enqueuer.Enqueue(job.ID); err != nil {
		s.logger.Warn("job queue full, deferring to monitor sweep",
			"job_id", job.ID,
			"error", err)
	}
}

// spool writes uploaded bytes into the upload directory, enforcing the
// configured size cap.
func (s *ingestServiceImpl) spool(file io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o750); err != nil {
		return "", &ServiceError{Operation: "submit_file", Message: "failed to create upload dir", Err: err}
	}

	tmp, err := os.CreateTemp(s.cfg.UploadDir, "upload-*"+ext)
	if err != nil {
		return "", &ServiceError{Operation: "submit_file", Message: "failed to create spool file", Err: err}
	}

	maxBytes := int64(s.cfg.MaxUploadSizeMB) << 20
	written, err := io.Copy(tmp, io.LimitReader(file, maxBytes+1))
	closeErr := tmp.Close()

	switch {
	case err != nil:
		_ = os.Remove(tmp.Name())
		return "", validationError("file is not readable: %v", err)
	case closeErr != nil:
		_ = os.Remove(tmp.Name())
		return "", &ServiceError{Operation: "submit_file", Message: "failed to close spool file", Err: closeErr}
	case written == 0:
		_ = os.Remove(tmp.Name())
		return "", validationError("file is empty")
	case written > maxBytes:
		_ = os.Remove(tmp.Name())
		return "", validationError("file exceeds the %d MB limit", s.cfg.MaxUploadSizeMB)
	}

	return tmp.Name(), nil
}

// checkMethod rejects submissions naming a conversion strategy that is
// not registered, before any state is created.
func (s *ingestServiceImpl) checkMethod(method string) error {
	if method != "" && !s.registry.Known(method) {
		return validationError("unknown conversion method %q", method)
	}
	return nil
}

// applyOptions copies shared submission metadata onto the document.
func applyOptions(doc *domain.Document, opts SubmitOptions) {
	if len(opts.Tags) > 0 {
		doc.Tags = append([]string{}, opts.Tags...)
	}
	doc.CategoryID = opts.CategoryID
}

// firstLineTitle derives a title from the first line of imported text.
func firstLineTitle(text string) string {
	first, _, _ := strings.Cut(text, "\n")
	first = strings.TrimSpace(strings.TrimLeft(first, "# "))
	const maxTitleLen = 80
	runes := []rune(first)
	if len(runes) > maxTitleLen {
		first = string(runes[:maxTitleLen])
	}
	if first == "" {
		first = "Untitled note"
	}
	return first
}
