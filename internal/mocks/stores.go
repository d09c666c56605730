package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/store"
	"github.com/google/uuid"
)

// MemJobStore is an in-memory store.JobStore. All operations hold one
// mutex, so the status checks and writes inside Claim and the other
// transitions are atomic exactly like the conditional updates in the
// Postgres implementation.
type MemJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.ProcessingJob
}

// NewMemJobStore creates an empty in-memory job store.
func NewMemJobStore() *MemJobStore {
	return &MemJobStore{jobs: make(map[uuid.UUID]*domain.ProcessingJob)}
}

var _ store.JobStore = (*MemJobStore)(nil)

// WithTx implements store.JobStore.WithTx; the in-memory store has no
// transactions, so it returns itself.
func (s *MemJobStore) WithTx(tx *sql.Tx) store.JobStore { return s }

// Create implements store.JobStore.Create
func (s *MemJobStore) Create(ctx context.Context, job *domain.ProcessingJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrDuplicate
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

// GetByID implements store.JobStore.GetByID
func (s *MemJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return copyJob(job), nil
}

// Claim implements store.JobStore.Claim
func (s *MemJobStore) Claim(ctx context.Context, id uuid.UUID) (*domain.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}

	switch job.Status {
	case domain.JobStatusPending:
		now := time.Now().UTC()
		job.Status = domain.JobStatusProcessing
		job.StartedAt = &now
		job.Progress = 0
		return copyJob(job), nil
	case domain.JobStatusProcessing:
		return nil, store.ErrJobClaimed
	default:
		return nil, fmt.Errorf("%w: cannot claim %s job", store.ErrInvalidTransition, job.Status)
	}
}

// UpdateProgress implements store.JobStore.UpdateProgress
func (s *MemJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return store.ErrProgressNotAllowed
	}
	if percent > job.Progress {
		job.Progress = percent
	}
	return nil
}

// MarkCompleted implements store.JobStore.MarkCompleted
func (s *MemJobStore) MarkCompleted(
	ctx context.Context,
	id uuid.UUID,
	resultDocumentID uuid.UUID,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return fmt.Errorf("%w: cannot complete %s job", store.ErrInvalidTransition, job.Status)
	}

	now := time.Now().UTC()
	resultID := resultDocumentID
	job.Status = domain.JobStatusCompleted
	job.CompletedAt = &now
	job.Progress = 100
	job.ResultDocumentID = &resultID
	job.ErrorMessage = ""
	return nil
}

// MarkFailed implements store.JobStore.MarkFailed
func (s *MemJobStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return fmt.Errorf("%w: cannot fail %s job", store.ErrInvalidTransition, job.Status)
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	job.CompletedAt = &now
	job.ErrorMessage = errorMessage
	return nil
}

// Cancel implements store.JobStore.Cancel
func (s *MemJobStore) Cancel(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.Status != domain.JobStatusPending && job.Status != domain.JobStatusProcessing {
		return fmt.Errorf("%w: cannot cancel %s job", store.ErrInvalidTransition, job.Status)
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	job.CompletedAt = &now
	job.ErrorMessage = errorMessage
	return nil
}

// Retry implements store.JobStore.Retry
func (s *MemJobStore) Retry(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.Status != domain.JobStatusFailed {
		return fmt.Errorf("%w: cannot retry %s job", store.ErrInvalidTransition, job.Status)
	}

	job.Status = domain.JobStatusPending
	job.Progress = 0
	job.ErrorMessage = ""
	job.StartedAt = nil
	job.CompletedAt = nil
	job.ResultDocumentID = nil
	return nil
}

// Delete implements store.JobStore.Delete
func (s *MemJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return store.ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

// List implements store.JobStore.List
func (s *MemJobStore) List(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := []*domain.ProcessingJob{}
	for _, job := range s.jobs {
		if job.UserID == userID {
			all = append(all, copyJob(job))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	return paginate(all, limit, offset), nil
}

// GetByDocumentID implements store.JobStore.GetByDocumentID
func (s *MemJobStore) GetByDocumentID(
	ctx context.Context,
	documentID uuid.UUID,
) (*domain.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *domain.ProcessingJob
	for _, job := range s.jobs {
		if job.DocumentID != documentID {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, store.ErrJobNotFound
	}
	return copyJob(latest), nil
}

// FindByStatus implements store.JobStore.FindByStatus
func (s *MemJobStore) FindByStatus(
	ctx context.Context,
	status domain.JobStatus,
	limit int,
) ([]*domain.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []*domain.ProcessingJob{}
	for _, job := range s.jobs {
		if job.Status == status {
			matched = append(matched, copyJob(job))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ReleaseStale implements store.JobStore.ReleaseStale
func (s *MemJobStore) ReleaseStale(
	ctx context.Context,
	olderThan time.Duration,
) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var released []uuid.UUID
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusProcessing {
			continue
		}
		if olderThan != 0 && (job.StartedAt == nil || !job.StartedAt.Before(cutoff)) {
			continue
		}
		job.Status = domain.JobStatusPending
		job.Progress = 0
		job.StartedAt = nil
		released = append(released, job.ID)
	}
	return released, nil
}

// Stats implements store.JobStore.Stats
func (s *MemJobStore) Stats(ctx context.Context, userID uuid.UUID) (*domain.JobStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &domain.JobStats{}
	var totalProcessing time.Duration
	for _, job := range s.jobs {
		if job.UserID != userID {
			continue
		}
		stats.Total++
		switch job.Status {
		case domain.JobStatusPending:
			stats.Pending++
		case domain.JobStatusProcessing:
			stats.Processing++
		case domain.JobStatusCompleted:
			stats.Completed++
			if job.StartedAt != nil && job.CompletedAt != nil {
				totalProcessing += job.CompletedAt.Sub(*job.StartedAt)
			}
		case domain.JobStatusFailed:
			stats.Failed++
		}
	}

	if stats.Completed > 0 {
		stats.AverageProcessingTime = totalProcessing / time.Duration(stats.Completed)
	}
	return stats, nil
}

// MemDocumentStore is an in-memory store.DocumentStore.
type MemDocumentStore struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*domain.Document
}

// NewMemDocumentStore creates an empty in-memory document store.
func NewMemDocumentStore() *MemDocumentStore {
	return &MemDocumentStore{docs: make(map[uuid.UUID]*domain.Document)}
}

var _ store.DocumentStore = (*MemDocumentStore)(nil)

// WithTx implements store.DocumentStore.WithTx
func (s *MemDocumentStore) WithTx(tx *sql.Tx) store.DocumentStore { return s }

// Create implements store.DocumentStore.Create
func (s *MemDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; ok {
		return store.ErrDuplicate
	}
	s.docs[doc.ID] = copyDoc(doc)
	return nil
}

// GetByID implements store.DocumentStore.GetByID
func (s *MemDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	return copyDoc(doc), nil
}

// UpdateContent implements store.DocumentStore.UpdateContent
func (s *MemDocumentStore) UpdateContent(
	ctx context.Context,
	id uuid.UUID,
	content string,
	status domain.DocumentStatus,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	doc.Content = content
	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStatus implements store.DocumentStore.UpdateStatus
func (s *MemDocumentStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.DocumentStatus,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

// List implements store.DocumentStore.List
func (s *MemDocumentStore) List(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := []*domain.Document{}
	for _, doc := range s.docs {
		if doc.UserID == userID {
			all = append(all, copyDoc(doc))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	return paginate(all, limit, offset), nil
}

// Delete implements store.DocumentStore.Delete
func (s *MemDocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return store.ErrDocumentNotFound
	}
	delete(s.docs, id)
	return nil
}

// MemUserStore is an in-memory store.UserStore.
type MemUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

// NewMemUserStore creates an empty in-memory user store.
func NewMemUserStore() *MemUserStore {
	return &MemUserStore{users: make(map[uuid.UUID]*domain.User)}
}

var _ store.UserStore = (*MemUserStore)(nil)

// WithTx implements store.UserStore.WithTx
func (s *MemUserStore) WithTx(tx *sql.Tx) store.UserStore { return s }

// Create implements store.UserStore.Create
func (s *MemUserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	u := *user
	s.users[user.ID] = &u
	return nil
}

// GetByID implements store.UserStore.GetByID
func (s *MemUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// GetByEmail implements store.UserStore.GetByEmail
func (s *MemUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			u := *user
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// copyJob deep-copies a job so callers never share memory with the store.
func copyJob(job *domain.ProcessingJob) *domain.ProcessingJob {
	c := *job
	c.Tags = append([]string{}, job.Tags...)
	if job.CategoryID != nil {
		v := *job.CategoryID
		c.CategoryID = &v
	}
	if job.ResultDocumentID != nil {
		v := *job.ResultDocumentID
		c.ResultDocumentID = &v
	}
	if job.StartedAt != nil {
		v := *job.StartedAt
		c.StartedAt = &v
	}
	if job.CompletedAt != nil {
		v := *job.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// copyDoc deep-copies a document.
func copyDoc(doc *domain.Document) *domain.Document {
	c := *doc
	c.Tags = append([]string{}, doc.Tags...)
	if doc.CategoryID != nil {
		v := *doc.CategoryID
		c.CategoryID = &v
	}
	return &c
}

// paginate applies limit/offset slicing to an ordered result set.
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
