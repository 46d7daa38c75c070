package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/domain"
	"github.com/seismolink/siteapi/internal/service"
)

// JobServiceInterface defines the careers page methods
type JobServiceInterface interface {
	ListOpenings() []domain.JobOpening
	GetOpening(id string) (*domain.JobOpening, error)
	Submit(ctx context.Context, jobID string, req *service.ApplyRequest) (*domain.JobApplication, error)
}

// JobHandler handles the public careers endpoints
type JobHandler struct {
	jobs   JobServiceInterface
	logger *zap.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobs JobServiceInterface, logger *zap.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, logger: logger}
}

// List handles GET /api/jobs
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	openings := h.jobs.ListOpenings()
	RenderJSON(w, http.StatusOK, map[string]any{
		"data":  openings,
		"total": len(openings),
	})
}

// GetByID handles GET /api/jobs/{id}
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetOpening(r.PathValue("id"))
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to get job")
		return
	}

	RenderJSON(w, http.StatusOK, job)
}

// Apply handles POST /api/jobs/{id}/apply
func (h *JobHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req service.ApplyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	app, err := h.jobs.Submit(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to submit application")
		return
	}

	RenderJSON(w, http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "Application submitted successfully",
		ID:      app.ID,
	})
}
