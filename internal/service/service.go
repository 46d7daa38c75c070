// Package service holds the site's business logic: form submissions, the
// admin inbox, job applications and visit analytics.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/mailer"
	"github.com/seismolink/siteapi/internal/mq"
	"github.com/seismolink/siteapi/tlmt"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid application status")
	ErrUnknownJob    = errors.New("unknown job opening")
	ErrJobClosed     = errors.New("job opening is not accepting applications")
	ErrDelivery      = errors.New("failed to deliver email")
)

// Clock returns the current time
type Clock func() time.Time

// Notifier renders templates and hands the result to a mail sender. Admin
// notices go to AdminEmail.
type Notifier struct {
	renderer   *mailer.Renderer
	sender     mailer.Sender
	adminEmail string
	logger     *zap.Logger
}

// NewNotifier creates a new Notifier
func NewNotifier(renderer *mailer.Renderer, sender mailer.Sender, adminEmail string, logger *zap.Logger) *Notifier {
	return &Notifier{
		renderer:   renderer,
		sender:     sender,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

// Admin sends template to the admin inbox with replyTo set to the submitter.
// Admin notices are marked critical.
func (n *Notifier) Admin(ctx context.Context, template string, data any, replyTo string) error {
	if n.adminEmail == "" {
		n.logger.Warn("[Notifier] admin email not configured, notice skipped", zap.String("template", template))
		return nil
	}
	return n.send(ctx, template, data, replyTo, n.adminEmail, true)
}

// User sends template to a site visitor. Failures are logged only.
func (n *Notifier) User(ctx context.Context, template string, data any, to string) {
	if err := n.send(ctx, template, data, n.adminEmail, to, false); err != nil {
		n.logger.Warn("[Notifier] failed to send email", zap.String("template", template), zap.Error(err))
	}
}

func (n *Notifier) send(ctx context.Context, template string, data any, replyTo, to string, critical bool) error {
	email, err := n.renderer.Email(template, data, replyTo, to)
	if err != nil {
		return err
	}
	email.Critical = critical

	if err := n.sender.Send(ctx, email); err != nil {
		n.logger.Error("[Notifier] delivery failed",
			zap.String("template", template),
			zap.String("to", to),
			zap.Error(err),
		)
		return errors.Join(ErrDelivery, err)
	}

	return nil
}

// broadcaster fans side effects out to the event bus and telemetry. Both
// are best effort.
type broadcaster struct {
	events    mq.Publisher
	telemetry tlmt.Telemetry
	logger    *zap.Logger
}

func (b broadcaster) publish(ctx context.Context, key string, data any) {
	if b.events == nil {
		return
	}
	if err := b.events.Publish(ctx, mq.NewEvent(key, data)); err != nil {
		b.logger.Warn("[Events] publish failed", zap.String("type", key), zap.Error(err))
	}
}

func (b broadcaster) track(ctx context.Context, event tlmt.Event) {
	if b.telemetry == nil {
		return
	}
	if err := b.telemetry.Send(ctx, event); err != nil {
		b.logger.Debug("[Telemetry] send failed", zap.String("event", event.Name), zap.Error(err))
	}
}

// Deps are the collaborators shared by the services
type Deps struct {
	Notifier    *Notifier
	Events      mq.Publisher
	Telemetry   tlmt.Telemetry
	Invalidator Invalidator
	Logger      *zap.Logger
	Now         Clock
}

// Invalidator drops cached admin views after writes
type Invalidator interface {
	InvalidateInbox(ctx context.Context)
	InvalidateApplications(ctx context.Context)
	InvalidateAnalytics(ctx context.Context)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateInbox(context.Context)        {}
func (noopInvalidator) InvalidateApplications(context.Context) {}
func (noopInvalidator) InvalidateAnalytics(context.Context)    {}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Invalidator == nil {
		d.Invalidator = noopInvalidator{}
	}
	return d
}

func (d Deps) broadcaster() broadcaster {
	return broadcaster{events: d.Events, telemetry: d.Telemetry, logger: d.Logger}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
