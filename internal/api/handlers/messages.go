package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/cache"
	"github.com/seismolink/siteapi/internal/domain"
)

// MessageServiceInterface defines the admin inbox methods
type MessageServiceInterface interface {
	List(ctx context.Context, params domain.MessageListParams) ([]*domain.Message, int, error)
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	SetRead(ctx context.Context, id string, read bool) (*domain.Message, error)
	Delete(ctx context.Context, id string) error
	GetStats(ctx context.Context) (*domain.MessageStats, error)
}

// MessageHandler handles the admin inbox
type MessageHandler struct {
	messages MessageServiceInterface
	cache    cache.Cache
	logger   *zap.Logger
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messages MessageServiceInterface, c cache.Cache, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, cache: c, logger: logger}
}

// List handles GET /api/admin/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage, offset := parsePagination(r)
	q := r.URL.Query()

	params := domain.MessageListParams{
		Query:  strings.TrimSpace(q.Get("q")),
		Limit:  perPage,
		Offset: offset,
	}

	if kind := q.Get("kind"); kind != "" && kind != "all" {
		k := domain.MessageKind(kind)
		if !k.IsValid() {
			RenderError(w, http.StatusBadRequest, "Invalid kind. Use 'contact' or 'newsletter'")
			return
		}
		params.Kind = &k
	}

	if read := q.Get("read"); read != "" {
		b, err := strconv.ParseBool(read)
		if err != nil {
			RenderError(w, http.StatusBadRequest, "Invalid read filter")
			return
		}
		params.Read = &b
	}

	msgs, total, err := h.messages.List(r.Context(), params)
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to list messages")
		return
	}

	RenderJSON(w, http.StatusOK, NewPaginatedResponse(msgs, total, page, perPage))
}

// GetByID handles GET /api/admin/messages/{id}
func (h *MessageHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messages.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to get message")
		return
	}

	RenderJSON(w, http.StatusOK, msg)
}

// Stats handles GET /api/admin/messages/stats
func (h *MessageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	cachedJSON(w, r, h.cache, h.logger, cache.KeyPrefixInboxStats, cache.TTLStats,
		func(ctx context.Context) (any, error) { return h.messages.GetStats(ctx) },
		"Failed to get inbox stats")
}

type markReadRequest struct {
	Read *bool `json:"read"`
}

// MarkRead handles PATCH /api/admin/messages/{id}/read. An empty body marks
// the message read.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	read := true
	if r.ContentLength != 0 {
		var req markReadRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		if req.Read != nil {
			read = *req.Read
		}
	}

	msg, err := h.messages.SetRead(r.Context(), r.PathValue("id"), read)
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to update message")
		return
	}

	RenderJSON(w, http.StatusOK, msg)
}

// Delete handles DELETE /api/admin/messages/{id}
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.messages.Delete(r.Context(), r.PathValue("id")); err != nil {
		RenderServiceError(w, h.logger, err, "Failed to delete message")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
