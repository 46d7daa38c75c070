package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seismolink/siteapi/internal/domain"
)

const applicationColumns = `
	id, job_id, job_title, name, email, phone,
	linkedin, portfolio, github, cover_letter,
	status, notes, applied_at, updated_at`

// ApplicationRepository implements domain.ApplicationRepository for SQLite
type ApplicationRepository struct {
	db *sql.DB
}

// NewApplicationRepository creates a new ApplicationRepository
func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create stores a new application
func (r *ApplicationRepository) Create(ctx context.Context, app *domain.JobApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}

	query := `INSERT INTO job_applications (` + applicationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		app.ID, app.JobID, app.JobTitle, app.Name, app.Email, app.Phone,
		app.LinkedIn, app.Portfolio, app.GitHub, app.CoverLetter,
		string(app.Status), app.Notes, formatTime(app.AppliedAt), formatTime(app.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}

	return nil
}

// GetByID retrieves an application by ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.JobApplication, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE id = ?`, id)

	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return app, nil
}

// List retrieves applications newest first
func (r *ApplicationRepository) List(ctx context.Context, params domain.ApplicationListParams) ([]*domain.JobApplication, int, error) {
	where, args := applicationFilter(params)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_applications`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	query := `SELECT ` + applicationColumns + ` FROM job_applications` + where +
		` ORDER BY applied_at DESC LIMIT ? OFFSET ?`

	limit := params.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, params.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := make([]*domain.JobApplication, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		apps = append(apps, app)
	}

	return apps, total, rows.Err()
}

// UpdateStatus changes the status and notes of an application
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status domain.ApplicationStatus, notes string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE job_applications SET status = ?, notes = ?, updated_at = ? WHERE id = ?`,
		string(status), notes, formatTime(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update application status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// Stream walks matching applications newest first
func (r *ApplicationRepository) Stream(ctx context.Context, params domain.ApplicationListParams, fn func(app *domain.JobApplication) error) error {
	where, args := applicationFilter(params)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM job_applications`+where+` ORDER BY applied_at DESC`, args...)
	if err != nil {
		return fmt.Errorf("failed to stream applications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return err
		}
		if err := fn(app); err != nil {
			return err
		}
	}

	return rows.Err()
}

// GetStats counts applications per status
func (r *ApplicationRepository) GetStats(ctx context.Context) (*domain.ApplicationStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM job_applications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get application stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.ApplicationStats{ByStatus: make(map[domain.ApplicationStatus]int)}
	for _, s := range domain.ApplicationStatuses {
		stats.ByStatus[s] = 0
	}

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[domain.ApplicationStatus(status)] = count
		stats.Total += count
	}

	return stats, rows.Err()
}

func applicationFilter(params domain.ApplicationListParams) (string, []any) {
	var conds []string
	var args []any

	if params.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*params.Status))
	}
	if params.JobID != "" {
		conds = append(conds, "job_id = ?")
		args = append(args, params.JobID)
	}

	return whereClause(conds), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*domain.JobApplication, error) {
	app := &domain.JobApplication{}
	var status, appliedAt, updatedAt string

	err := row.Scan(
		&app.ID, &app.JobID, &app.JobTitle, &app.Name, &app.Email, &app.Phone,
		&app.LinkedIn, &app.Portfolio, &app.GitHub, &app.CoverLetter,
		&status, &app.Notes, &appliedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Status = domain.ApplicationStatus(status)

	if app.AppliedAt, err = parseTime(appliedAt); err != nil {
		return nil, err
	}
	if app.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return app, nil
}
