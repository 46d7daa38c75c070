package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/auth"
	"github.com/seismolink/siteapi/internal/service"
	"github.com/seismolink/siteapi/internal/validate"
)

// APIError represents an error response
type APIError struct {
	Success bool              `json:"success"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// SuccessResponse is the body of form submissions
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// PaginatedResponse wraps paginated results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

// RenderJSON renders a JSON response
func RenderJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// RenderError renders an error response
func RenderError(w http.ResponseWriter, code int, message string) {
	RenderJSON(w, code, APIError{
		Code:    code,
		Message: message,
	})
}

// RenderValidation renders a 400 with per-field messages
func RenderValidation(w http.ResponseWriter, errs validate.Errors) {
	RenderJSON(w, http.StatusBadRequest, APIError{
		Code:    http.StatusBadRequest,
		Message: "Please correct the highlighted fields",
		Errors:  errs,
	})
}

// RenderServiceError maps service errors to HTTP responses. Unknown errors
// are logged and reported as 500 without details.
func RenderServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var (
		verrs  validate.Errors
		locked *auth.LockedError
	)

	switch {
	case errors.As(err, &verrs):
		RenderValidation(w, verrs)
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(locked)))
		RenderError(w, http.StatusTooManyRequests, "Too many failed login attempts. Try again later.")
	case errors.Is(err, auth.ErrInvalidCredentials):
		RenderError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrNotFound):
		RenderError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrUnknownJob):
		RenderError(w, http.StatusNotFound, "Job opening not found")
	case errors.Is(err, service.ErrJobClosed):
		RenderError(w, http.StatusBadRequest, "This position is no longer accepting applications")
	case errors.Is(err, service.ErrInvalidStatus):
		RenderError(w, http.StatusBadRequest, "Invalid status")
	case errors.Is(err, context.Canceled):
		// Client went away
	default:
		logger.Error(fallback, zap.Error(err))
		RenderError(w, http.StatusInternalServerError, fallback)
	}
}

func retryAfterSeconds(e *auth.LockedError) int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// DecodeJSON decodes the request body into v, rejecting unknown fields and
// trailing data. On failure it renders a 400 and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			RenderError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		case errors.Is(err, io.EOF):
			RenderError(w, http.StatusBadRequest, "Request body is required")
		default:
			RenderError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		}
		return false
	}

	if dec.More() {
		RenderError(w, http.StatusBadRequest, "Invalid request body: trailing data")
		return false
	}

	return true
}

// NewPaginatedResponse creates a paginated response
func NewPaginatedResponse(data interface{}, total, page, perPage int) PaginatedResponse {
	totalPages := total / perPage
	if total%perPage > 0 {
		totalPages++
	}

	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}
}

// parsePagination reads page and per_page query parameters
func parsePagination(r *http.Request) (page, perPage, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return page, perPage, (page - 1) * perPage
}
