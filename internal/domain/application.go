package domain

import (
	"time"
)

// ApplicationStatus is the review state of a job application
type ApplicationStatus string

const (
	StatusUnderReview        ApplicationStatus = "Under Review"
	StatusShortlisted        ApplicationStatus = "Shortlisted"
	StatusInterviewScheduled ApplicationStatus = "Interview Scheduled"
	StatusRejected           ApplicationStatus = "Rejected"
	StatusHired              ApplicationStatus = "Hired"
)

// ApplicationStatuses lists every valid status in pipeline order
var ApplicationStatuses = []ApplicationStatus{
	StatusUnderReview,
	StatusShortlisted,
	StatusInterviewScheduled,
	StatusRejected,
	StatusHired,
}

// IsValid reports whether s is one of the known statuses
func (s ApplicationStatus) IsValid() bool {
	for _, known := range ApplicationStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsFinal returns true for statuses that close an application
func (s ApplicationStatus) IsFinal() bool {
	return s == StatusRejected || s == StatusHired
}

// JobApplication is a candidate's submission for an opening
type JobApplication struct {
	ID          string            `json:"id"`
	JobID       string            `json:"jobId"`
	JobTitle    string            `json:"jobTitle"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone,omitempty"`
	LinkedIn    string            `json:"linkedin,omitempty"`
	Portfolio   string            `json:"portfolio,omitempty"`
	GitHub      string            `json:"github,omitempty"`
	CoverLetter string            `json:"coverLetter,omitempty"`
	Status      ApplicationStatus `json:"status"`
	Notes       string            `json:"notes,omitempty"`
	AppliedAt   time.Time         `json:"appliedAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ApplicationListParams contains filters for listing applications
type ApplicationListParams struct {
	Status *ApplicationStatus
	JobID  string
	Limit  int
	Offset int
}

// ApplicationStats counts applications per status
type ApplicationStats struct {
	Total    int                       `json:"total"`
	ByStatus map[ApplicationStatus]int `json:"byStatus"`
}
