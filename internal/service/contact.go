package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/domain"
	"github.com/seismolink/siteapi/internal/mailer"
	"github.com/seismolink/siteapi/internal/mq"
	"github.com/seismolink/siteapi/internal/validate"
	"github.com/seismolink/siteapi/tlmt"
)

// ContactRequest is the body of POST /api/contact
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,mailbox,max=254"`
	Phone   string `json:"phone" validate:"omitempty,max=40"`
	Company string `json:"company" validate:"omitempty,max=120"`
	Subject string `json:"subject" validate:"omitempty,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// NewsletterRequest is the body of POST /api/newsletter
type NewsletterRequest struct {
	Email string `json:"email" validate:"required,mailbox,max=254"`
	Name  string `json:"name" validate:"omitempty,max=100"`
}

// ContactService handles the public contact and newsletter forms
type ContactService struct {
	messages  domain.MessageRepository
	notifier  *Notifier
	validator *validate.Validator
	deps      Deps
	bc        broadcaster
}

// NewContactService creates a new ContactService
func NewContactService(messages domain.MessageRepository, v *validate.Validator, deps Deps) *ContactService {
	deps = deps.withDefaults()
	return &ContactService{
		messages:  messages,
		notifier:  deps.Notifier,
		validator: v,
		deps:      deps,
		bc:        deps.broadcaster(),
	}
}

// SubmitContact stores a contact message and mails the admin. The submitter
// gets an acknowledgement on a best effort basis.
func (s *ContactService) SubmitContact(ctx context.Context, req *ContactRequest, ip string) (*domain.Message, error) {
	s.validator.SanitizeStruct(req)
	req.Email = strings.ToLower(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		Kind:      domain.MessageKindContact,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Subject:   req.Subject,
		Body:      req.Message,
		IP:        ip,
		CreatedAt: s.deps.Now().UTC(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	s.deps.Invalidator.InvalidateInbox(ctx)

	s.deps.Logger.Info("[ContactService] contact message received",
		zap.String("id", msg.ID),
		zap.String("email", msg.Email),
	)

	if err := s.notifier.Admin(ctx, mailer.TemplateContactNotice, msg, msg.Email); err != nil {
		return nil, err
	}
	s.notifier.User(ctx, mailer.TemplateContactAck, msg, msg.Email)

	s.bc.publish(ctx, mq.RoutingKeyContact, msg)
	s.bc.track(ctx, tlmt.NewEvent(tlmt.EventContactSubmitted, map[string]any{
		"has_company": msg.Company != "",
	}))

	return msg, nil
}

// Subscribe records a newsletter subscription, welcomes the subscriber and
// notifies the admin.
func (s *ContactService) Subscribe(ctx context.Context, req *NewsletterRequest, ip string) (*domain.Message, error) {
	s.validator.SanitizeStruct(req)
	req.Email = strings.ToLower(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		Kind:      domain.MessageKindNewsletter,
		Name:      req.Name,
		Email:     req.Email,
		Subject:   "Newsletter subscription",
		IP:        ip,
		CreatedAt: s.deps.Now().UTC(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store subscription: %w", err)
	}
	s.deps.Invalidator.InvalidateInbox(ctx)

	s.deps.Logger.Info("[ContactService] newsletter subscription", zap.String("id", msg.ID))

	if err := s.notifier.Admin(ctx, mailer.TemplateNewsletterNotice, msg, msg.Email); err != nil {
		return nil, err
	}
	s.notifier.User(ctx, mailer.TemplateNewsletterWelcome, msg, msg.Email)

	s.bc.publish(ctx, mq.RoutingKeyNewsletter, msg)
	s.bc.track(ctx, tlmt.NewEvent(tlmt.EventNewsletterSubscribed, nil))

	return msg, nil
}
