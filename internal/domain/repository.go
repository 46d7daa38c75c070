package domain

import (
	"context"
	"time"
)

// ApplicationRepository defines the interface for job application persistence
type ApplicationRepository interface {
	// Create stores a new application and fills in its ID
	Create(ctx context.Context, app *JobApplication) error

	// GetByID retrieves an application by ID, nil if it does not exist
	GetByID(ctx context.Context, id string) (*JobApplication, error)

	// List retrieves applications newest first
	List(ctx context.Context, params ApplicationListParams) ([]*JobApplication, int, error)

	// UpdateStatus changes status and notes, returning false if nothing matched
	UpdateStatus(ctx context.Context, id string, status ApplicationStatus, notes string, at time.Time) (bool, error)

	// Stream walks all applications matching params, newest first
	Stream(ctx context.Context, params ApplicationListParams, fn func(app *JobApplication) error) error

	// GetStats counts applications per status
	GetStats(ctx context.Context) (*ApplicationStats, error)
}

// MessageRepository defines the interface for inbox persistence
type MessageRepository interface {
	// Create stores a new message and fills in its ID
	Create(ctx context.Context, msg *Message) error

	// GetByID retrieves a message by ID, nil if it does not exist
	GetByID(ctx context.Context, id string) (*Message, error)

	// List retrieves messages newest first
	List(ctx context.Context, params MessageListParams) ([]*Message, int, error)

	// SetRead marks a message read or unread, returning false if nothing matched
	SetRead(ctx context.Context, id string, read bool, at time.Time) (bool, error)

	// Delete removes a message, returning false if nothing matched
	Delete(ctx context.Context, id string) (bool, error)

	// GetStats summarises the inbox
	GetStats(ctx context.Context) (*MessageStats, error)
}

// AnalyticsRepository defines the interface for daily analytics persistence
type AnalyticsRepository interface {
	// RecordVisit creates the day's record on first use and bumps its counters
	RecordVisit(ctx context.Context, date, visitorID string, at time.Time) (*DailyAnalytics, error)

	// GetByDate retrieves one day, nil if there were no visits
	GetByDate(ctx context.Context, date string) (*DailyAnalytics, error)

	// ListRange retrieves the days between from and to inclusive, oldest first
	ListRange(ctx context.Context, from, to string) ([]*DailyAnalytics, error)
}

// Pinger is implemented by stores that can report their health
type Pinger interface {
	Ping(ctx context.Context) error
}
