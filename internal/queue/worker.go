package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/mailer"
)

// Worker delivers queued emails
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	sender mailer.Sender
	logger *zap.Logger
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	RedisURL    string
	Concurrency int
	Queues      map[string]int // queue name -> priority
}

// NewWorker creates a new queue worker delivering through sender
func NewWorker(cfg *WorkerConfig, sender mailer.Sender, logger *zap.Logger) (*Worker, error) {
	opt, err := redisOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	queues := cfg.Queues
	if queues == nil {
		queues = map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
		}
	}

	sugar := logger.Sugar()

	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: concurrency,
			Queues:      queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("[Queue] task failed",
					zap.String("type", task.Type()),
					zap.Int("retry", retried),
					zap.Int("max_retry", maxRetry),
					zap.Error(err),
				)
			}),
			Logger: sugar,
		},
	)

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		sender: sender,
		logger: logger,
	}

	w.mux.HandleFunc(TypeEmailSend, w.HandleEmail)

	return w, nil
}

// HandleEmail delivers one email task
func (w *Worker) HandleEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePayload(task.Payload())
	if err != nil {
		// Malformed payloads never succeed
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := w.sender.Send(ctx, payload.Email); err != nil {
		return err
	}

	w.logger.Debug("[Queue] email delivered",
		zap.Strings("to", payload.Email.To),
		zap.Duration("latency", taskLatency(payload)),
	)

	return nil
}

// Run starts the worker and blocks until ctx is done
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start queue worker: %w", err)
	}

	w.logger.Info("[Queue] worker started")

	<-ctx.Done()

	w.server.Shutdown()
	w.logger.Info("[Queue] worker stopped")

	return nil
}

func taskLatency(p *EmailPayload) time.Duration {
	if p.EnqueuedAt.IsZero() {
		return 0
	}
	return time.Since(p.EnqueuedAt)
}
