// Package queue provides a Redis-based email delivery queue using Asynq
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/mailer"
)

const (
	// Task types
	TypeEmailSend = "email:send"

	// Queue names
	QueueDefault  = "default"
	QueueCritical = "critical"

	// MaxRetry is the number of delivery retries before a task is archived
	MaxRetry = 3
)

// EmailPayload is the payload for an email delivery task
type EmailPayload struct {
	Email      *mailer.Email `json:"email"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Config holds Redis queue configuration
type Config struct {
	RedisURL string
}

func redisOpt(url string) (asynq.RedisConnOpt, error) {
	if url == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opt, err := asynq.ParseRedisURI(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return opt, nil
}

// Queue enqueues email tasks. It implements mailer.Sender so services can
// send through it unchanged.
type Queue struct {
	client *asynq.Client
	logger *zap.Logger
}

// New creates a new Queue
func New(cfg *Config, logger *zap.Logger) (*Queue, error) {
	opt, err := redisOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	return &Queue{
		client: asynq.NewClient(opt),
		logger: logger,
	}, nil
}

// NewTask builds the asynq task for an email
func NewTask(email *mailer.Email, now time.Time) (*asynq.Task, error) {
	if err := email.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(EmailPayload{Email: email, EnqueuedAt: now})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return asynq.NewTask(TypeEmailSend, data,
		asynq.Queue(queueFor(email)),
		asynq.MaxRetry(MaxRetry),
		asynq.Timeout(time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// queueFor routes admin notices to the critical queue so a backlog of
// visitor confirmations cannot delay them
func queueFor(email *mailer.Email) string {
	if email.Critical {
		return QueueCritical
	}
	return QueueDefault
}

// Send enqueues the email for delivery
func (q *Queue) Send(ctx context.Context, email *mailer.Email) error {
	task, err := NewTask(email, time.Now())
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Debug("[Queue] enqueued email",
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
		zap.String("subject", email.Subject),
	)

	return nil
}

// Close closes the queue client
func (q *Queue) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// ParsePayload parses an email payload from task data
func ParsePayload(data []byte) (*EmailPayload, error) {
	var payload EmailPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.Email == nil {
		return nil, fmt.Errorf("payload has no email")
	}
	return &payload, nil
}
