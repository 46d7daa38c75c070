package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seismolink/siteapi/internal/domain"
)

// AnalyticsRepository implements domain.AnalyticsRepository for SQLite
type AnalyticsRepository struct {
	db *sql.DB
}

// NewAnalyticsRepository creates a new AnalyticsRepository
func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// RecordVisit upserts the day's row and adds the visitor to the day's set
func (r *AnalyticsRepository) RecordVisit(ctx context.Context, date, visitorID string, at time.Time) (*domain.DailyAnalytics, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := formatTime(at)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO analytics_daily (date, page_views, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			page_views = page_views + 1,
			updated_at = excluded.updated_at
	`, date, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to bump page views: %w", err)
	}

	if visitorID != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO analytics_visitors (date, visitor_id) VALUES (?, ?)`, date, visitorID)
		if err != nil {
			return nil, fmt.Errorf("failed to add visitor: %w", err)
		}
	}

	day, err := getDay(ctx, tx, date)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit visit: %w", err)
	}

	return day, nil
}

// GetByDate retrieves one day
func (r *AnalyticsRepository) GetByDate(ctx context.Context, date string) (*domain.DailyAnalytics, error) {
	day, err := getDay(ctx, r.db, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return day, err
}

// ListRange retrieves the days between from and to inclusive
func (r *AnalyticsRepository) ListRange(ctx context.Context, from, to string) ([]*domain.DailyAnalytics, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.date, d.page_views, d.created_at, d.updated_at,
			(SELECT COUNT(*) FROM analytics_visitors v WHERE v.date = d.date)
		FROM analytics_daily d
		WHERE d.date >= ? AND d.date <= ?
		ORDER BY d.date ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list analytics: %w", err)
	}
	defer rows.Close()

	days := make([]*domain.DailyAnalytics, 0)
	for rows.Next() {
		day := &domain.DailyAnalytics{}
		var createdAt, updatedAt string
		if err := rows.Scan(&day.Date, &day.PageViews, &createdAt, &updatedAt, &day.VisitorCount); err != nil {
			return nil, err
		}
		if day.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if day.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		days = append(days, day)
	}

	return days, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getDay(ctx context.Context, q querier, date string) (*domain.DailyAnalytics, error) {
	day := &domain.DailyAnalytics{}
	var createdAt, updatedAt string

	err := q.QueryRowContext(ctx,
		`SELECT date, page_views, created_at, updated_at FROM analytics_daily WHERE date = ?`, date,
	).Scan(&day.Date, &day.PageViews, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if day.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if day.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT visitor_id FROM analytics_visitors WHERE date = ? ORDER BY rowid`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list visitors: %w", err)
	}
	defer rows.Close()

	day.Visitors = make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		day.Visitors = append(day.Visitors, id)
	}
	day.VisitorCount = len(day.Visitors)

	return day, rows.Err()
}
