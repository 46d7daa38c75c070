package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/domain"
	"github.com/seismolink/siteapi/internal/service"
)

// ContactServiceInterface defines the public form methods
type ContactServiceInterface interface {
	SubmitContact(ctx context.Context, req *service.ContactRequest, ip string) (*domain.Message, error)
	Subscribe(ctx context.Context, req *service.NewsletterRequest, ip string) (*domain.Message, error)
}

// ContactHandler handles the contact and newsletter forms
type ContactHandler struct {
	contact ContactServiceInterface
	logger  *zap.Logger
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(contact ContactServiceInterface, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{contact: contact, logger: logger}
}

// Contact handles POST /api/contact
func (h *ContactHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var req service.ContactRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	msg, err := h.contact.SubmitContact(r.Context(), &req, ClientIP(r))
	if err != nil {
		RenderServiceError(w, h.logger, err, "Failed to send message")
		return
	}

	RenderJSON(w, http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Thank you! Your message has been sent.",
		ID:      msg.ID,
	})
}

// Newsletter handles POST /api/newsletter
func (h *ContactHandler) Newsletter(w http.ResponseWriter, r *http.Request) {
	var req service.NewsletterRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if _, err := h.contact.Subscribe(r.Context(), &req, ClientIP(r)); err != nil {
		RenderServiceError(w, h.logger, err, "Failed to subscribe")
		return
	}

	RenderJSON(w, http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Thanks for subscribing!",
	})
}
