package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/seismolink/siteapi/internal/domain"
	"github.com/seismolink/siteapi/internal/validate"
	"github.com/seismolink/siteapi/tlmt"
)

// Dashboard window bounds
const (
	DefaultDashboardDays = 30
	MaxDashboardDays     = 365

	// MaxVisitorIDLength bounds client supplied visitor ids
	MaxVisitorIDLength = 128

	// DashboardRefreshInterval is the minimum time between dashboard cache
	// invalidations caused by visits
	DashboardRefreshInterval = 10 * time.Second
)

// VisitRequest is the body of POST /api/analytics/visit
type VisitRequest struct {
	VisitorID string `json:"visitorId"`
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
}

// AnalyticsService records page views and builds the admin dashboard
type AnalyticsService struct {
	repo domain.AnalyticsRepository
	loc  *time.Location
	deps Deps
	bc   broadcaster

	mu          sync.Mutex
	lastRefresh time.Time
}

// NewAnalyticsService creates a new AnalyticsService. Days are cut in loc.
func NewAnalyticsService(repo domain.AnalyticsRepository, loc *time.Location, deps Deps) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	deps = deps.withDefaults()
	return &AnalyticsService{
		repo: repo,
		loc:  loc,
		deps: deps,
		bc:   deps.broadcaster(),
	}
}

// refreshDue reports whether cached dashboards should be dropped, at most
// once per DashboardRefreshInterval
func (s *AnalyticsService) refreshDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastRefresh.IsZero() && now.Sub(s.lastRefresh) < DashboardRefreshInterval {
		return false
	}
	s.lastRefresh = now
	return true
}

// Today returns the current calendar day key
func (s *AnalyticsService) Today() string {
	return s.deps.Now().In(s.loc).Format(domain.DateLayout)
}

// RecordVisit counts a page view for visitorID on the current day. The first
// visit of the day creates the record.
func (s *AnalyticsService) RecordVisit(ctx context.Context, visitorID string, req *VisitRequest) (*domain.DailyAnalytics, error) {
	visitorID = strings.TrimSpace(visitorID)
	switch {
	case visitorID == "":
		return nil, validate.Errors{"visitorId": "is required"}
	case len(visitorID) > MaxVisitorIDLength:
		return nil, validate.Errors{"visitorId": fmt.Sprintf("must be at most %d characters", MaxVisitorIDLength)}
	}

	now := s.deps.Now()
	day, err := s.repo.RecordVisit(ctx, now.In(s.loc).Format(domain.DateLayout), visitorID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}

	if s.refreshDue(now) {
		s.deps.Invalidator.InvalidateAnalytics(ctx)
	}

	props := map[string]any{}
	if req != nil {
		if req.Path != "" {
			props["path"] = req.Path
		}
		if req.Referrer != "" {
			props["referrer"] = req.Referrer
		}
	}
	s.bc.track(ctx, tlmt.NewEvent(tlmt.EventPageView, props).WithDistinctID(visitorID))

	return day, nil
}

// GetDay returns one day's counters, zero valued when nobody visited
func (s *AnalyticsService) GetDay(ctx context.Context, date string) (*domain.DailyAnalytics, error) {
	if _, err := time.ParseInLocation(domain.DateLayout, date, s.loc); err != nil {
		return nil, validate.Errors{"date": "must be YYYY-MM-DD"}
	}

	day, err := s.repo.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	if day == nil {
		return &domain.DailyAnalytics{Date: date, Visitors: []string{}}, nil
	}
	return day, nil
}

// ClampDays normalises a requested dashboard window
func ClampDays(days int) int {
	if days <= 0 {
		return DefaultDashboardDays
	}
	if days > MaxDashboardDays {
		return MaxDashboardDays
	}
	return days
}

// Dashboard returns exactly days entries ending today, oldest first, with
// days without visits zero filled. Totals sum the daily values.
func (s *AnalyticsService) Dashboard(ctx context.Context, days int) (*domain.AnalyticsDashboard, error) {
	days = ClampDays(days)

	today := s.deps.Now().In(s.loc)
	start := time.Date(today.Year(), today.Month(), today.Day()-(days-1), 0, 0, 0, 0, s.loc)

	from := start.Format(domain.DateLayout)
	to := today.Format(domain.DateLayout)

	records, err := s.repo.ListRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics: %w", err)
	}

	byDate := make(map[string]*domain.DailyAnalytics, len(records))
	for _, rec := range records {
		byDate[rec.Date] = rec
	}

	dash := &domain.AnalyticsDashboard{
		From: from,
		To:   to,
		Days: make([]domain.DailyPoint, 0, days),
	}

	for i := 0; i < days; i++ {
		date := time.Date(start.Year(), start.Month(), start.Day()+i, 0, 0, 0, 0, s.loc).Format(domain.DateLayout)
		point := domain.DailyPoint{Date: date}
		if rec, ok := byDate[date]; ok {
			point.PageViews = rec.PageViews
			point.UniqueVisitors = rec.VisitorCount
		}
		dash.Totals.PageViews += point.PageViews
		dash.Totals.UniqueVisitors += point.UniqueVisitors
		dash.Days = append(dash.Days, point)
	}

	return dash, nil
}
