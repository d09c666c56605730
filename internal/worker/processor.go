package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fennwick/docshelf/internal/converter"
	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/store"
)

const (
	// maxErrorMessageLength bounds the error text persisted on a failed
	// job so one pathological conversion cannot bloat a row.
	maxErrorMessageLength = 500

	// maxFetchBytes caps how much of a URL body the worker will download.
	maxFetchBytes = 32 << 20 // 32 MiB

	// fetchProgress is reported after a URL source has been downloaded,
	// before conversion begins.
	fetchProgress = 10
)

// Processor executes one claimed conversion job end to end: it resolves the
// source bytes, runs the selected strategy, and finalizes both the job and
// its document.
type Processor struct {
	jobs         store.JobStore
	docs         store.DocumentStore
	registry     *converter.Registry
	client       *http.Client
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewProcessor creates a Processor. A nil client falls back to a default
// HTTP client; fetchTimeout bounds URL downloads and defaults to 30 seconds.
func NewProcessor(
	jobs store.JobStore,
	docs store.DocumentStore,
	registry *converter.Registry,
	client *http.Client,
	fetchTimeout time.Duration,
	logger *slog.Logger,
) *Processor {
	if client == nil {
		client = &http.Client{}
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Processor{
		jobs:         jobs,
		docs:         docs,
		registry:     registry,
		client:       client,
		fetchTimeout: fetchTimeout,
		logger:       logger.With("component", "worker_processor"),
	}
}

// Process runs an already-claimed job to a terminal state. ctx is the
// per-job context; cancelling it aborts in-flight I/O. Store writes use a
// detached context so finalization survives both job cancellation and
// shutdown.
func (p *Processor) Process(ctx context.Context, job *domain.ProcessingJob) {
	logger := p.logger.With("job_id", job.ID, "document_id", job.DocumentID)
	storeCtx := context.WithoutCancel(ctx)

	conv, err := p.registry.Resolve(job.Method)
	if err != nil {
		p.fail(storeCtx, job, err, logger)
		return
	}

	// Conversion gets its own cancellable context so a user cancellation
	// observed at a progress checkpoint can cut it mid-flight.
	convCtx, cancelConv := context.WithCancel(ctx)
	defer cancelConv()

	src, err := p.resolveSource(convCtx, job)
	if err != nil {
		p.fail(storeCtx, job, err, logger)
		return
	}
	if job.SourceType == domain.SourceTypeURL {
		p.reportProgress(storeCtx, job, fetchProgress, cancelConv, logger)
	}

	opts := converter.Options{Method: job.Method, TitleHint: job.Title}
	progress := func(percent int) {
		p.reportProgress(storeCtx, job, percent, cancelConv, logger)
	}

	result, err := conv.Convert(convCtx, src, opts, progress)
	if err != nil {
		p.fail(storeCtx, job, err, logger)
		return
	}

	if err := p.docs.UpdateContent(storeCtx, job.DocumentID, result.Text, domain.DocumentStatusReady); err != nil {
		p.fail(storeCtx, job, fmt.Errorf("failed to store extracted content: %w", err), logger)
		return
	}

	if err := p.jobs.MarkCompleted(storeCtx, job.ID, job.DocumentID); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Cancelled between the last checkpoint and completion; the
			// job is already failed and stays that way.
			logger.Info("job was cancelled before completion could be recorded")
			return
		}
		logger.Error("failed to mark job completed", "error", err)
		return
	}

	logger.Info("job completed", "title", result.Title)
}

// reportProgress persists a progress checkpoint. A rejected update means
// the job left processing state underneath us (user cancellation), so the
// running conversion is cut.
func (p *Processor) reportProgress(
	ctx context.Context,
	job *domain.ProcessingJob,
	percent int,
	cancelConv context.CancelFunc,
	logger *slog.Logger,
) {
	err := p.jobs.UpdateProgress(ctx, job.ID, percent)
	if err == nil {
		return
	}
	if errors.Is(err, store.ErrProgressNotAllowed) || errors.Is(err, store.ErrJobNotFound) {
		logger.Info("job no longer processing, cancelling conversion", "progress", percent)
		cancelConv()
		return
	}
	// A transient write failure is not worth aborting the conversion over.
	logger.Warn("failed to record progress", "progress", percent, "error", err)
}

// fail records a terminal failure on the job and flips the target document
// to error state. Races with user cancellation are tolerated: if the job is
// already failed, the outcome is the same.
func (p *Processor) fail(
	ctx context.Context,
	job *domain.ProcessingJob,
	cause error,
	logger *slog.Logger,
) {
	msg := truncateError(cause)
	logger.Warn("job failed", "error", cause)

	if err := p.jobs.MarkFailed(ctx, job.ID, msg); err != nil {
		if !errors.Is(err, store.ErrInvalidTransition) {
			logger.Error("failed to mark job failed", "error", err)
		}
	}

	if err := p.docs.UpdateStatus(ctx, job.DocumentID, domain.DocumentStatusError); err != nil &&
		!errors.Is(err, store.ErrDocumentNotFound) {
		logger.Error("failed to mark document errored", "error", err)
	}
}

// resolveSource builds the converter input for the job's source type.
// File and data sources were spooled to disk at submission time; URL
// sources are fetched here, inside the job's cancellable context.
func (p *Processor) resolveSource(ctx context.Context, job *domain.ProcessingJob) (converter.Source, error) {
	src := converter.Source{
		Type:     job.SourceType,
		Filename: job.OriginalFilename,
	}

	switch job.SourceType {
	case domain.SourceTypeFile, domain.SourceTypeData:
		src.Path = job.SourcePath
		return src, nil

	case domain.SourceTypeURL:
		src.URL = job.SourcePath
		data, err := p.fetch(ctx, job.SourcePath)
		if err != nil {
			return src, err
		}
		src.Data = data
		return src, nil

	default:
		return src, fmt.Errorf("unsupported source type %q", job.SourceType)
	}
}

// fetch downloads a URL body with a size cap and the configured timeout.
func (p *Processor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s returned status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", rawURL, err)
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("body of %s exceeds %d byte limit", rawURL, maxFetchBytes)
	}

	return data, nil
}

// truncateError renders an error for persistence, bounded in length.
func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxErrorMessageLength {
		return msg[:maxErrorMessageLength-3] + "..."
	}
	return msg
}
