package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/domain"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("Seismolink")
	require.NoError(t, err)
	return r
}

func TestRenderContactNotice(t *testing.T) {
	r := newRenderer(t)

	msg := &domain.Message{
		Kind:      domain.MessageKindContact,
		Name:      "Dana O'Brien",
		Email:     "dana@example.com",
		Company:   "Acme Rail",
		Subject:   "Pilot program",
		Body:      "We would like <b>sensors</b> along our line.",
		CreatedAt: time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
	}

	content, err := r.Render(TemplateContactNotice, msg)
	require.NoError(t, err)

	assert.Equal(t, "New contact message: Pilot program", content.Subject)
	assert.Contains(t, content.HTML, "Dana O&#39;Brien")
	assert.Contains(t, content.HTML, "&lt;b&gt;sensors&lt;/b&gt;")
	assert.NotContains(t, content.HTML, "Phone")

	assert.Contains(t, content.Text, "Name Dana O'Brien")
	assert.Contains(t, content.Text, "Company Acme Rail")
	assert.Contains(t, content.Text, "Received 04 Mar 2026 10:30 UTC")
	assert.Contains(t, content.Text, "We would like <b>sensors</b> along our line.")
	assert.NotContains(t, content.Text, "font-family")
	assert.Contains(t, content.Text, "Seismolink")
}

func TestRenderSubjects(t *testing.T) {
	r := newRenderer(t)

	app := &domain.JobApplication{
		JobTitle:  "Seismology Data Engineer",
		Name:      "Ravi",
		Email:     "ravi@example.com",
		Status:    domain.StatusHired,
		AppliedAt: time.Now(),
	}
	msg := &domain.Message{Kind: domain.MessageKindNewsletter, Name: "Ravi", Email: "ravi@example.com", CreatedAt: time.Now()}

	tests := []struct {
		name     string
		template string
		data     any
		subject  string
		contains string
	}{
		{"contact ack", TemplateContactAck, msg, "We received your message", "Thank you, Ravi"},
		{"newsletter welcome", TemplateNewsletterWelcome, msg, "Welcome to the Seismolink newsletter", "ravi@example.com"},
		{"newsletter notice", TemplateNewsletterNotice, msg, "New newsletter subscriber: ravi@example.com", "Subscribed"},
		{"application notice", TemplateApplicationNotice, app, "New application: Seismology Data Engineer - Ravi", "Position Seismology Data Engineer"},
		{"application receipt", TemplateApplicationReceipt, app, "Your application for Seismology Data Engineer", "Thank you for applying, Ravi"},
		{"status update", TemplateStatusUpdate, app, "Application update: Seismology Data Engineer", "Congratulations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := r.Render(tt.template, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, content.Subject)
			assert.Contains(t, content.Text, tt.contains)
		})
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r := newRenderer(t)
	_, err := r.Render("missing", nil)
	assert.Error(t, err)
}

func TestPlainTextLinks(t *testing.T) {
	text, err := PlainText(`<html><body><p>See <a href="https://example.com/jobs">openings</a></p><p>Mail <a href="mailto:a@b.c">a@b.c</a></p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "See openings (https://example.com/jobs)\nMail a@b.c", text)
}

func TestEmailValidate(t *testing.T) {
	assert.ErrorIs(t, (&Email{}).Validate(), ErrNoRecipient)
	assert.ErrorIs(t, (&Email{To: []string{" "}}).Validate(), ErrNoRecipient)
	assert.NoError(t, (&Email{To: []string{"a@b.c"}}).Validate())
}

func TestSMTPSenderBuild(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Username: "site@example.com"}, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Build(&Email{
		To:      []string{"admin@example.com"},
		ReplyTo: "dana@example.com",
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
		Text:    "Hi",
	})
	require.NoError(t, err)

	_, err = s.Build(&Email{To: []string{"not an address"}})
	assert.Error(t, err)

	_, err = NewSMTPSender(SMTPConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(zap.NewNop())
	assert.NoError(t, s.Send(context.Background(), &Email{To: []string{"a@b.c"}}))
	assert.ErrorIs(t, s.Send(context.Background(), &Email{}), ErrNoRecipient)
}
