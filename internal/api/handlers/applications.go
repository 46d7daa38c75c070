package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/cache"
	"github.com/seismolink/siteapi/internal/domain"
	"github.com/seismolink/siteapi/internal/service"
)

// ApplicationServiceInterface defines the admin application methods
type ApplicationServiceInterface interface {
	List(ctx context.Context, params domain.ApplicationListParams) ([]*domain.JobApplication, int, error)
	GetByID(ctx context.Context, id string) (*domain.JobApplication, error)
	UpdateStatus(ctx context.Context, id string, req *service.UpdateStatusRequest) (*domain.JobApplication, error)
	Stream(ctx context.Context, params domain.ApplicationListParams, fn func(*domain.JobApplication) error) error
	GetStats(ctx context.Context) (*domain.ApplicationStats, error)
}

// ApplicationHandler handles the admin application endpoints
type ApplicationHandler struct {
	apps   ApplicationServiceInterface
	cache  cache.Cache
	logger *zap.Logger
}

// NewApplicationHandler creates a new ApplicationHandler
func NewApplicationHandler(apps ApplicationServiceInterface, c cache.Cache, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{apps: apps, cache: c, logger: logger}
}

// exportTimeout bounds a full export
const exportTimeout = 2 * time.Minute

func applicationFilter(r *http.Request) domain.ApplicationListParams {
	q := r.URL.Query()
	params := domain.ApplicationListParams{JobID: strings.TrimSpace(q.Get("jobId"))}
	if status := q.Get("status"); status != "" && status != "all" {
		s := domain.ApplicationStatus(status)
		params.Status = &s
	}
	return params
}

// List handles GET /api/admin/applications
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage, offset := parsePagination(r)

	params := applicationFilter(r)
	params.Limit = perPage
	params.Offset = offset

	apps, total, err := h.apps.List(r.Context(), params)
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to list applications")
		return
	}

	RenderJSON(w, http.StatusOK, NewPaginatedResponse(apps, total, page, perPage))
}

// GetByID handles GET /api/admin/applications/{id}
func (h *ApplicationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	app, err := h.apps.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to get application")
		return
	}

	RenderJSON(w, http.StatusOK, app)
}

// UpdateStatus handles PATCH /api/admin/applications/{id}/status
func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateStatusRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	app, err := h.apps.UpdateStatus(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to update application")
		return
	}

	RenderJSON(w, http.StatusOK, app)
}

// Stats handles GET /api/admin/applications/stats
func (h *ApplicationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	cachedJSON(w, r, h.cache, h.logger, cache.KeyPrefixApplicationStats, cache.TTLStats,
		func(ctx context.Context) (any, error) { return h.apps.GetStats(ctx) },
		"Failed to get application stats")
}

// Export handles GET /api/admin/applications/export?format=csv|xlsx
func (h *ApplicationHandler) Export(w http.ResponseWriter, r *http.Request) {
	params := applicationFilter(r)
	if params.Status != nil && !params.Status.IsValid() {
		RenderServiceError(w, h.logger, service.ErrInvalidStatus, "")
		return
	}

	columns := selectedColumns(r.URL.Query().Get("columns"))

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	format := r.URL.Query().Get("format")
	switch format {
	case "", "csv":
		h.exportCSV(w, r, params, columns)
	case "xlsx":
		h.exportXLSX(w, r, params, columns)
	default:
		RenderError(w, http.StatusBadRequest, "Invalid format. Use 'csv' or 'xlsx'")
	}
}

func exportFilename(ext string) string {
	return "applications-" + time.Now().UTC().Format("20060102") + "." + ext
}

func (h *ApplicationHandler) exportCSV(w http.ResponseWriter, r *http.Request, params domain.ApplicationListParams, columns []exportColumn) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+exportFilename("csv"))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Name
	}
	if err := writer.Write(header); err != nil {
		return
	}

	rows := 0
	err := h.apps.Stream(r.Context(), params, func(app *domain.JobApplication) error {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = escapeFormula(col.Value(app))
		}
		rows++
		if rows%500 == 0 {
			writer.Flush()
		}
		return writer.Write(record)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Error("[ApplicationHandler] csv export failed", zap.Int("rows", rows), zap.Error(err))
	}
}

func (h *ApplicationHandler) exportXLSX(w http.ResponseWriter, r *http.Request, params domain.ApplicationListParams, columns []exportColumn) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Applications"
	_ = f.SetSheetName("Sheet1", sheetName)

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, col.Name)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	lastCol, _ := excelize.CoordinatesToCellName(len(columns), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastCol, headerStyle)

	rowNum := 2
	err := h.apps.Stream(r.Context(), params, func(app *domain.JobApplication) error {
		for i, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
			if err := f.SetCellStr(sheetName, cell, col.Value(app)); err != nil {
				return err
			}
		}
		rowNum++
		return nil
	})
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to export applications")
		return
	}

	for i, col := range columns {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheetName, colName, colName, col.Width)
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+exportFilename("xlsx"))

	if err := f.Write(w); err != nil {
		h.logger.Error("[ApplicationHandler] error writing XLSX to response", zap.Error(err))
	}
}

// escapeFormula stops spreadsheet programs from evaluating a CSV cell that
// starts like a formula
func escapeFormula(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

type exportColumn struct {
	Name  string
	Width float64
	Value func(app *domain.JobApplication) string
}

func exportColumns() []exportColumn {
	ts := func(t time.Time) string { return t.UTC().Format(time.RFC3339) }

	return []exportColumn{
		{"ID", 26, func(a *domain.JobApplication) string { return a.ID }},
		{"Job ID", 28, func(a *domain.JobApplication) string { return a.JobID }},
		{"Job Title", 30, func(a *domain.JobApplication) string { return a.JobTitle }},
		{"Name", 24, func(a *domain.JobApplication) string { return a.Name }},
		{"Email", 30, func(a *domain.JobApplication) string { return a.Email }},
		{"Phone", 18, func(a *domain.JobApplication) string { return a.Phone }},
		{"LinkedIn", 30, func(a *domain.JobApplication) string { return a.LinkedIn }},
		{"Portfolio", 30, func(a *domain.JobApplication) string { return a.Portfolio }},
		{"GitHub", 30, func(a *domain.JobApplication) string { return a.GitHub }},
		{"Status", 20, func(a *domain.JobApplication) string { return string(a.Status) }},
		{"Notes", 40, func(a *domain.JobApplication) string { return a.Notes }},
		{"Cover Letter", 60, func(a *domain.JobApplication) string { return a.CoverLetter }},
		{"Applied At", 22, func(a *domain.JobApplication) string { return ts(a.AppliedAt) }},
		{"Updated At", 22, func(a *domain.JobApplication) string { return ts(a.UpdatedAt) }},
	}
}

// selectedColumns parses a comma separated column list. Unknown names are
// ignored; an empty selection means every column.
func selectedColumns(param string) []exportColumn {
	all := exportColumns()
	if strings.TrimSpace(param) == "" {
		return all
	}

	byName := make(map[string]exportColumn, len(all))
	for _, col := range all {
		byName[strings.ToLower(col.Name)] = col
	}

	var out []exportColumn
	for _, name := range strings.Split(param, ",") {
		if col, ok := byName[strings.ToLower(strings.TrimSpace(name))]; ok {
			out = append(out, col)
		}
	}

	if len(out) == 0 {
		return all
	}
	return out
}
