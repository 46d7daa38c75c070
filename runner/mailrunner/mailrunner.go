package mailrunner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/queue"
	"github.com/seismolink/siteapi/runner"
)

// MailRunner runs a standalone worker delivering queued emails over SMTP
type MailRunner struct {
	cfg    *runner.Config
	logger *zap.Logger
	worker *queue.Worker
}

// New creates a new MailRunner
func New(cfg *runner.Config, logger *zap.Logger) (runner.Runner, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("%w: worker requires REDIS_URL", runner.ErrInvalidConfig)
	}

	if !cfg.SMTPConfigured() {
		return nil, errors.New("worker requires SMTP_HOST, EMAIL_USER and EMAIL_PASS")
	}

	sender, err := runner.NewMailSender(cfg, logger)
	if err != nil {
		return nil, err
	}

	w, err := queue.NewWorker(&queue.WorkerConfig{
		RedisURL:    cfg.RedisURL,
		Concurrency: cfg.WorkerConcurrency,
	}, sender, logger)
	if err != nil {
		return nil, err
	}

	return &MailRunner{
		cfg:    cfg,
		logger: logger,
		worker: w,
	}, nil
}

// Run starts the worker
func (m *MailRunner) Run(ctx context.Context) error {
	m.logger.Info("mail worker starting",
		zap.String("smtp_host", m.cfg.SMTPHost),
		zap.Int("concurrency", m.cfg.WorkerConcurrency),
	)

	return m.worker.Run(ctx)
}

// Close is a no-op; the worker shuts down when Run returns
func (m *MailRunner) Close(context.Context) error {
	return nil
}
