package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/domain"
)

// MessageService handles the admin inbox
type MessageService struct {
	messages domain.MessageRepository
	deps     Deps
}

// NewMessageService creates a new MessageService
func NewMessageService(messages domain.MessageRepository, deps Deps) *MessageService {
	return &MessageService{messages: messages, deps: deps.withDefaults()}
}

// List retrieves inbox messages newest first
func (s *MessageService) List(ctx context.Context, params domain.MessageListParams) ([]*domain.Message, int, error) {
	if params.Kind != nil && !params.Kind.IsValid() {
		return nil, 0, fmt.Errorf("invalid message kind %q", *params.Kind)
	}
	params.Limit, params.Offset = clampPage(params.Limit, params.Offset)

	msgs, total, err := s.messages.List(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, total, nil
}

// GetByID retrieves a single message
func (s *MessageService) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if msg == nil {
		return nil, ErrNotFound
	}
	return msg, nil
}

// SetRead marks a message read or unread and returns it
func (s *MessageService) SetRead(ctx context.Context, id string, read bool) (*domain.Message, error) {
	ok, err := s.messages.SetRead(ctx, id, read, s.deps.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.deps.Invalidator.InvalidateInbox(ctx)

	return s.GetByID(ctx, id)
}

// Delete removes a message
func (s *MessageService) Delete(ctx context.Context, id string) error {
	ok, err := s.messages.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	s.deps.Invalidator.InvalidateInbox(ctx)

	s.deps.Logger.Info("[MessageService] message deleted", zap.String("id", id))
	return nil
}

// GetStats summarises the inbox
func (s *MessageService) GetStats(ctx context.Context) (*domain.MessageStats, error) {
	stats, err := s.messages.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get inbox stats: %w", err)
	}
	return stats, nil
}
