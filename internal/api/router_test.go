package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/api/handlers"
	"github.com/seismolink/siteapi/internal/auth"
	"github.com/seismolink/siteapi/internal/cache"
	"github.com/seismolink/siteapi/internal/catalog"
	"github.com/seismolink/siteapi/internal/domain"
	"github.com/seismolink/siteapi/internal/mailer"
	"github.com/seismolink/siteapi/internal/repository/sqlite"
	"github.com/seismolink/siteapi/internal/service"
	"github.com/seismolink/siteapi/internal/validate"
)

const (
	testAdminEmail    = "admin@seismolink.io"
	testAdminPassword = "correct horse"
)

type memorySender struct {
	mu   sync.Mutex
	sent []*mailer.Email
}

func (s *memorySender) Send(_ context.Context, email *mailer.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, email)
	return nil
}

type testServer struct {
	handler http.Handler
	sender  *memorySender
}

func newTestServer(t *testing.T, formRate limiter.Rate) *testServer {
	t.Helper()
	logger := zap.NewNop()

	db, err := sqlite.OpenConnection(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(db, logger))
	repos := sqlite.NewRepositories(db)
	t.Cleanup(func() { _ = repos.Close(context.Background()) })

	renderer, err := mailer.NewRenderer("Seismolink")
	require.NoError(t, err)
	sender := &memorySender{}

	memCache := cache.NewMemoryCache()
	t.Cleanup(func() { _ = memCache.Close() })

	deps := service.Deps{
		Notifier:    service.NewNotifier(renderer, sender, testAdminEmail, logger),
		Invalidator: cache.NewInvalidator(memCache, logger),
		Logger:      logger,
	}
	v := validate.New()
	jobs, err := catalog.Default()
	require.NoError(t, err)

	contactSvc := service.NewContactService(repos.Messages, v, deps)
	messageSvc := service.NewMessageService(repos.Messages, deps)
	appSvc := service.NewApplicationService(repos.Applications, jobs, v, deps)
	analyticsSvc := service.NewAnalyticsService(repos.Analytics, time.UTC, deps)

	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator(auth.Config{
		AdminEmail: testAdminEmail,
		Password:   testAdminPassword,
	}, tokens, auth.NewMemoryAttemptStore(), logger)
	require.NoError(t, err)

	store, err := NewLimiterStore(nil)
	require.NoError(t, err)

	router := NewRouter(Handlers{
		Health:       handlers.NewHealthHandler(map[string]domain.Pinger{"database": repos}, "test", logger),
		Contact:      handlers.NewContactHandler(contactSvc, logger),
		Jobs:         handlers.NewJobHandler(appSvc, logger),
		Analytics:    handlers.NewAnalyticsHandler(analyticsSvc, memCache, false, logger),
		Auth:         handlers.NewAuthHandler(authenticator, logger),
		Messages:     handlers.NewMessageHandler(messageSvc, memCache, logger),
		Applications: handlers.NewApplicationHandler(appSvc, memCache, logger),
	})

	return &testServer{
		handler: router.Setup(Options{
			Verifier:     authenticator,
			LimiterStore: store,
			FormRate:     formRate,
			Logger:       logger,
		}),
		sender: sender,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	rr := s.do(t, "POST", "/api/admin/login", map[string]string{"email": testAdminEmail, "password": testAdminPassword}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, limiter.Rate{})

	rr := s.do(t, "GET", "/api/health", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"database": "up"}, body["checks"])
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestContactMissingEmail(t *testing.T) {
	s := newTestServer(t, limiter.Rate{})

	rr := s.do(t, "POST", "/api/contact", map[string]string{"name": "Dana", "message": "hello"}, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, false, body["success"])
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "is required", errs["email"])
	assert.Empty(t, s.sender.sent)
}

func TestContactSuccess(t *testing.T) {
	s := newTestServer(t, limiter.Rate{})

	rr := s.do(t, "POST", "/api/contact", map[string]string{
		"name": "Dana", "email": "dana@example.com", "message": "hello",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Len(t, s.sender.sent, 2)

	rr = s.do(t, "POST", "/api/contact", map[string]string{"email": "x@example.com", "hacker": "1"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFormRateLimit(t *testing.T) {
	s := newTestServer(t, limiter.Rate{Period: time.Hour, Limit: 2})

	for i := 0; i < 2; i++ {
		rr := s.do(t, "POST", "/api/newsletter", map[string]string{"email": "r@example.com"}, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr := s.do(t, "POST", "/api/newsletter", map[string]string{"email": "r@example.com"}, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Non-form endpoints are unaffected
	rr = s.do(t, "GET", "/api/jobs", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLoginLockout(t *testing.T) {
	s := newTestServer(t, limiter.Rate{})
	wrong := map[string]string{"email": testAdminEmail, "password": "nope"}

	for i := 0; i < 3; i++ {
		rr := s.do(t, "POST", "/api/admin/login", wrong, "")
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr := s.do(t, "POST", "/api/admin/login", map[string]string{"email": testAdminEmail, "password": testAdminPassword}, "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	rr = s.do(t, "POST", "/api/admin/login", map[string]string{"email": testAdminEmail}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, limiter.Rate{})

	paths := []string{
		"/api/admin/verify",
		"/api/admin/messages",
		"/api/admin/messages/stats",
		"/api/admin/applications",
		"/api/admin/applications/export",
		"/api/admin/analytics",
	}
	for _, p := range paths {
		rr := s.do(t, "GET", p, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, p)
	}

	token := s.login(t)
	for _, p := range paths {
		rr := s.do(t, "GET", p, nil, token)
		assert.Equal(t, http.StatusOK, rr.Code, p)
	}
}

func TestInbox(t *testing.T) {
	s := newTestServer(t, limiter.Rate{})
	token := s.login(t)

	rr := s.do(t, "POST", "/api/contact", map[string]string{"name": "A", "email": "a@example.com", "message": "one"}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	id := decode(t, rr)["id"].(string)

	rr = s.do(t, "GET", "/api/admin/messages/stats", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
	assert.Equal(t, float64(1), decode(t, rr)["unread"])

	rr = s.do(t, "GET", "/api/admin/messages/stats", nil, token)
	assert.Equal(t, "HIT", rr.Header().Get("X-Cache"))

	rr = s.do(t, "PATCH", "/api/admin/messages/"+id+"/read", map[string]bool{"read": true}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["read"])

	// Invalidated by the write
	rr = s.do(t, "GET", "/api/admin/messages/stats", nil, token)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
	assert.Equal(t, float64(0), decode(t, rr)["unread"])

	rr = s.do(t, "GET", "/api/admin/messages?kind=contact&read=true", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decode(t, rr)["total"])

	rr = s.do(t, "GET", "/api/admin/messages?kind=spam", nil, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, "DELETE", "/api/admin/messages/"+id, nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(t, "DELETE", "/api/admin/messages/"+id, nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestApplicationFlow(t *testing.T) {
	s := newTestServer(t, limiter.Rate{})
	token := s.login(t)

	rr := s.do(t, "GET", "/api/jobs/frontend-developer", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, "GET", "/api/jobs/ml-research-intern", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, "POST", "/api/jobs/frontend-developer/apply", map[string]string{
		"name": "Mia", "email": "mia@example.com", "coverLetter": "Hello",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := decode(t, rr)["id"].(string)

	rr = s.do(t, "POST", "/api/jobs/unknown/apply", map[string]string{"name": "Mia", "email": "mia@example.com"}, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, "GET", "/api/admin/applications/"+id, nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Under Review", decode(t, rr)["status"])

	rr = s.do(t, "PATCH", "/api/admin/applications/"+id+"/status", map[string]string{"status": "Promoted"}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, "PATCH", "/api/admin/applications/"+id+"/status", map[string]string{"status": "Interview Scheduled", "notes": "Tuesday"}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "Interview Scheduled", body["status"])
	assert.Equal(t, "Tuesday", body["notes"])

	rr = s.do(t, "GET", "/api/admin/applications?status=Interview%20Scheduled", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decode(t, rr)["total"])

	rr = s.do(t, "GET", "/api/admin/applications/export?format=csv&columns=name,status", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Status"}, {"Mia", "Interview Scheduled"}}, records)

	rr = s.do(t, "GET", "/api/admin/applications/export?format=xlsx", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))

	rr = s.do(t, "GET", "/api/admin/applications/export?format=pdf", nil, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExportEscapesFormulas(t *testing.T) {
	s := newTestServer(t, limiter.Rate{})
	token := s.login(t)

	name := `=HYPERLINK("http://evil.example","click")`
	rr := s.do(t, "POST", "/api/jobs/frontend-developer/apply", map[string]string{
		"name": name, "email": "eve@example.com",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(t, "GET", "/api/admin/applications/export?format=csv&columns=name", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "'"+name, records[1][0])

	rr = s.do(t, "GET", "/api/admin/applications/export?format=xlsx&columns=name", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue("Applications", "A2")
	require.NoError(t, err)
	assert.Equal(t, name, value)

	formula, err := f.GetCellFormula("Applications", "A2")
	require.NoError(t, err)
	assert.Empty(t, formula)
}

func TestVisitAndDashboard(t *testing.T) {
	s := newTestServer(t, limiter.Rate{})
	token := s.login(t)

	rr := s.do(t, "POST", "/api/analytics/visit", nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, handlers.VisitorCookie, cookies[0].Name)

	req := httptest.NewRequest("POST", "/api/analytics/visit", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Result().Cookies())

	body := decode(t, rr)
	assert.Equal(t, float64(2), body["pageViews"])
	assert.Equal(t, float64(1), body["uniqueVisitors"])

	rr = s.do(t, "POST", "/api/analytics/visit", map[string]string{"visitorId": "from-body"}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(2), decode(t, rr)["uniqueVisitors"])

	rr = s.do(t, "GET", "/api/admin/analytics?days=7", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var dash domain.AnalyticsDashboard
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dash))
	require.Len(t, dash.Days, 7)
	assert.Equal(t, 3, dash.Days[6].PageViews)
	assert.Equal(t, 3, dash.Totals.PageViews)

	rr = s.do(t, "GET", "/api/admin/analytics?days=abc", nil, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, "GET", "/api/admin/analytics/"+dash.To, nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(3), decode(t, rr)["pageViews"])
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, limiter.Rate{})
	rr := s.do(t, "GET", "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
