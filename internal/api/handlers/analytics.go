package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/cache"
	"github.com/seismolink/siteapi/internal/domain"
	"github.com/seismolink/siteapi/internal/service"
)

// VisitorCookie names the cookie carrying the anonymous visitor id
const VisitorCookie = "vid"

const visitorCookieMaxAge = 365 * 24 * time.Hour

// AnalyticsServiceInterface defines the analytics methods
type AnalyticsServiceInterface interface {
	RecordVisit(ctx context.Context, visitorID string, req *service.VisitRequest) (*domain.DailyAnalytics, error)
	GetDay(ctx context.Context, date string) (*domain.DailyAnalytics, error)
	Dashboard(ctx context.Context, days int) (*domain.AnalyticsDashboard, error)
}

// AnalyticsHandler handles visit tracking and the admin dashboard
type AnalyticsHandler struct {
	analytics    AnalyticsServiceInterface
	cache        cache.Cache
	secureCookie bool
	logger       *zap.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analytics AnalyticsServiceInterface, c cache.Cache, secureCookie bool, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics:    analytics,
		cache:        c,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type visitResponse struct {
	Success        bool   `json:"success"`
	Date           string `json:"date"`
	PageViews      int    `json:"pageViews"`
	UniqueVisitors int    `json:"uniqueVisitors"`
}

// RecordVisit handles POST /api/analytics/visit. The visitor id comes from
// the body, then the vid cookie; new visitors get a fresh id cookie.
func (h *AnalyticsHandler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	var req service.VisitRequest
	if r.ContentLength != 0 {
		if !DecodeJSON(w, r, &req) {
			return
		}
	}

	visitorID := req.VisitorID
	if visitorID == "" {
		if c, err := r.Cookie(VisitorCookie); err == nil {
			visitorID = c.Value
		}
	}
	if visitorID == "" {
		visitorID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     VisitorCookie,
			Value:    visitorID,
			Path:     "/",
			MaxAge:   int(visitorCookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}

	day, err := h.analytics.RecordVisit(r.Context(), visitorID, &req)
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to record visit")
		return
	}

	RenderJSON(w, http.StatusOK, visitResponse{
		Success:        true,
		Date:           day.Date,
		PageViews:      day.PageViews,
		UniqueVisitors: day.VisitorCount,
	})
}

// Dashboard handles GET /api/admin/analytics?days=N
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	days := service.DefaultDashboardDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			RenderError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = service.ClampDays(n)
	}

	cachedJSON(w, r, h.cache, h.logger, cache.AnalyticsKey(days), cache.TTLAnalytics,
		func(ctx context.Context) (any, error) { return h.analytics.Dashboard(ctx, days) },
		"Failed to get analytics")
}

// Day handles GET /api/admin/analytics/{date}
func (h *AnalyticsHandler) Day(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		RenderError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	day, err := h.analytics.GetDay(r.Context(), date)
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to get analytics")
		return
	}

	RenderJSON(w, http.StatusOK, day)
}
