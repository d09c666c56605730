package api

import (
	"net/http"

	"github.com/fennwick/docshelf/internal/api/shared"
	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/service"
)

// JobHandler handles the processing-job status and control HTTP requests.
type JobHandler struct {
	jobService service.JobService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// ListJobs handles GET /api/jobs requests, newest first.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, offset := getPagination(r)
	jobs, err := h.jobService.ListJobs(r.Context(), userID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, jobToResponse(job))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetJobStats handles GET /api/jobs/stats requests.
func (h *JobHandler) GetJobStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.jobService.GetJobStats(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, statsToResponse(stats))
}

// GetJob handles GET /api/jobs/{id} requests.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupOwnedJob(w, r)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// RetryJob handles POST /api/jobs/{id}/retry requests.
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupOwnedJob(w, r)
	if !ok {
		return
	}

	if err := h.jobService.RetryJob(r.Context(), job.ID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.respondWithRefreshedJob(w, r, job)
}

// CancelJob handles POST /api/jobs/{id}/cancel requests.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupOwnedJob(w, r)
	if !ok {
		return
	}

	if err := h.jobService.CancelJob(r.Context(), job.ID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.respondWithRefreshedJob(w, r, job)
}

// DeleteJob handles DELETE /api/jobs/{id} requests.
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupOwnedJob(w, r)
	if !ok {
		return
	}

	if err := h.jobService.DeleteJob(r.Context(), job.ID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusNoContent, nil)
}

// lookupOwnedJob extracts the job ID from the path, fetches the job and
// enforces ownership, writing the error response itself on failure. A
// foreign job reads as not found so existence is not leaked across users.
func (h *JobHandler) lookupOwnedJob(
	w http.ResponseWriter,
	r *http.Request,
) (*domain.ProcessingJob, bool) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return nil, false
	}
	jobID, ok := getPathUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	job, err := h.jobService.GetJob(r.Context(), jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return nil, false
	}
	if job.UserID != userID {
		HandleAPIError(w, r, service.ErrJobNotFound, "")
		return nil, false
	}

	return job, true
}

// respondWithRefreshedJob re-reads the job after a control operation so the
// response reflects the post-transition state.
func (h *JobHandler) respondWithRefreshedJob(
	w http.ResponseWriter,
	r *http.Request,
	job *domain.ProcessingJob,
) {
	refreshed, err := h.jobService.GetJob(r.Context(), job.ID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(refreshed))
}
