package domain

import "time"

// DateLayout is the calendar-day key used for daily analytics
const DateLayout = "2006-01-02"

// DailyAnalytics holds the counters for a single calendar day. Visitors is
// only loaded for single-day reads; VisitorCount is always set.
type DailyAnalytics struct {
	Date         string    `json:"date"`
	PageViews    int       `json:"pageViews"`
	VisitorCount int       `json:"uniqueVisitors"`
	Visitors     []string  `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DailyPoint is one day on the dashboard chart
type DailyPoint struct {
	Date           string `json:"date"`
	PageViews      int    `json:"pageViews"`
	UniqueVisitors int    `json:"uniqueVisitors"`
}

// AnalyticsDashboard is the trailing window shown to admins
type AnalyticsDashboard struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Days   []DailyPoint `json:"days"`
	Totals struct {
		PageViews      int `json:"pageViews"`
		UniqueVisitors int `json:"uniqueVisitors"`
	} `json:"totals"`
}
