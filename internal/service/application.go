package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/catalog"
	"github.com/seismolink/siteapi/internal/domain"
	"github.com/seismolink/siteapi/internal/mailer"
	"github.com/seismolink/siteapi/internal/mq"
	"github.com/seismolink/siteapi/internal/validate"
	"github.com/seismolink/siteapi/tlmt"
)

// ApplyRequest is the body of POST /api/jobs/{id}/apply
type ApplyRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,mailbox,max=254"`
	Phone       string `json:"phone" validate:"omitempty,max=40"`
	LinkedIn    string `json:"linkedin" validate:"omitempty,http_url,max=300"`
	Portfolio   string `json:"portfolio" validate:"omitempty,http_url,max=300"`
	GitHub      string `json:"github" validate:"omitempty,http_url,max=300"`
	CoverLetter string `json:"coverLetter" validate:"omitempty,max=5000"`
}

// UpdateStatusRequest is the body of PATCH /api/admin/applications/{id}/status
type UpdateStatusRequest struct {
	Status domain.ApplicationStatus `json:"status"`
	Notes  *string                  `json:"notes"`
}

// statusChange is published when an admin moves an application
type statusChange struct {
	ID       string                   `json:"id"`
	JobID    string                   `json:"jobId"`
	Previous domain.ApplicationStatus `json:"previous"`
	Status   domain.ApplicationStatus `json:"status"`
}

// ApplicationService handles job applications
type ApplicationService struct {
	apps      domain.ApplicationRepository
	jobs      *catalog.Catalog
	notifier  *Notifier
	validator *validate.Validator
	deps      Deps
	bc        broadcaster
}

// NewApplicationService creates a new ApplicationService
func NewApplicationService(apps domain.ApplicationRepository, jobs *catalog.Catalog, v *validate.Validator, deps Deps) *ApplicationService {
	deps = deps.withDefaults()
	return &ApplicationService{
		apps:      apps,
		jobs:      jobs,
		notifier:  deps.Notifier,
		validator: v,
		deps:      deps,
		bc:        deps.broadcaster(),
	}
}

// ListOpenings returns the openings accepting applications
func (s *ApplicationService) ListOpenings() []domain.JobOpening {
	return s.jobs.Active()
}

// GetOpening returns an active opening
func (s *ApplicationService) GetOpening(id string) (*domain.JobOpening, error) {
	job, ok := s.jobs.Get(id)
	if !ok || !job.Active {
		return nil, ErrNotFound
	}
	return &job, nil
}

// Submit creates an application for jobID with status Under Review. An empty
// catalog accepts any job id.
func (s *ApplicationService) Submit(ctx context.Context, jobID string, req *ApplyRequest) (*domain.JobApplication, error) {
	jobID = strings.TrimSpace(jobID)
	title := jobID

	if s.jobs.Len() > 0 {
		job, ok := s.jobs.Get(jobID)
		if !ok {
			return nil, ErrUnknownJob
		}
		if !job.Active {
			return nil, ErrJobClosed
		}
		title = job.Title
	} else if jobID == "" {
		return nil, ErrUnknownJob
	}

	s.validator.SanitizeStruct(req)
	req.Email = strings.ToLower(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	now := s.deps.Now().UTC()
	app := &domain.JobApplication{
		JobID:       jobID,
		JobTitle:    title,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		LinkedIn:    req.LinkedIn,
		Portfolio:   req.Portfolio,
		GitHub:      req.GitHub,
		CoverLetter: req.CoverLetter,
		Status:      domain.StatusUnderReview,
		AppliedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.apps.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to store application: %w", err)
	}
	s.deps.Invalidator.InvalidateApplications(ctx)

	s.deps.Logger.Info("[ApplicationService] application received",
		zap.String("id", app.ID),
		zap.String("job_id", app.JobID),
	)

	if err := s.notifier.Admin(ctx, mailer.TemplateApplicationNotice, app, app.Email); err != nil {
		return nil, err
	}
	s.notifier.User(ctx, mailer.TemplateApplicationReceipt, app, app.Email)

	s.bc.publish(ctx, mq.RoutingKeyApplicationCreated, app)
	s.bc.track(ctx, tlmt.NewEvent(tlmt.EventApplicationSubmitted, map[string]any{"job_id": app.JobID}))

	return app, nil
}

// List retrieves applications newest first
func (s *ApplicationService) List(ctx context.Context, params domain.ApplicationListParams) ([]*domain.JobApplication, int, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, 0, ErrInvalidStatus
	}
	params.Limit, params.Offset = clampPage(params.Limit, params.Offset)

	apps, total, err := s.apps.List(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, total, nil
}

// GetByID retrieves a single application
func (s *ApplicationService) GetByID(ctx context.Context, id string) (*domain.JobApplication, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if app == nil {
		return nil, ErrNotFound
	}
	return app, nil
}

// UpdateStatus sets status and notes. Notes are kept when req.Notes is nil.
// The applicant is mailed when the status actually changes.
func (s *ApplicationService) UpdateStatus(ctx context.Context, id string, req *UpdateStatusRequest) (*domain.JobApplication, error) {
	if !req.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	notes := current.Notes
	if req.Notes != nil {
		notes = s.validator.Sanitize(*req.Notes)
	}

	ok, err := s.apps.UpdateStatus(ctx, id, req.Status, notes, s.deps.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.deps.Invalidator.InvalidateApplications(ctx)

	updated, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Status != updated.Status {
		s.deps.Logger.Info("[ApplicationService] status changed",
			zap.String("id", id),
			zap.String("from", string(current.Status)),
			zap.String("to", string(updated.Status)),
		)

		s.notifier.User(ctx, mailer.TemplateStatusUpdate, updated, updated.Email)
		s.bc.publish(ctx, mq.RoutingKeyApplicationStatus, statusChange{
			ID:       updated.ID,
			JobID:    updated.JobID,
			Previous: current.Status,
			Status:   updated.Status,
		})
	}

	return updated, nil
}

// Stream walks every application matching params for export
func (s *ApplicationService) Stream(ctx context.Context, params domain.ApplicationListParams, fn func(*domain.JobApplication) error) error {
	if params.Status != nil && !params.Status.IsValid() {
		return ErrInvalidStatus
	}
	return s.apps.Stream(ctx, params, fn)
}

// GetStats counts applications per status
func (s *ApplicationService) GetStats(ctx context.Context) (*domain.ApplicationStats, error) {
	stats, err := s.apps.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get application stats: %w", err)
	}
	return stats, nil
}
