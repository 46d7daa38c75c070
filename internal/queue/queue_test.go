package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/mailer"
)

type recordingSender struct {
	sent []*mailer.Email
	err  error
}

func (s *recordingSender) Send(_ context.Context, email *mailer.Email) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, email)
	return nil
}

func TestNewTask(t *testing.T) {
	email := &mailer.Email{To: []string{"admin@example.com"}, Subject: "Hi", Text: "Hi"}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	task, err := NewTask(email, now)
	require.NoError(t, err)
	assert.Equal(t, TypeEmailSend, task.Type())

	payload, err := ParsePayload(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, email, payload.Email)
	assert.True(t, now.Equal(payload.EnqueuedAt))

	_, err = NewTask(&mailer.Email{}, now)
	assert.ErrorIs(t, err, mailer.ErrNoRecipient)
}

func TestQueueFor(t *testing.T) {
	assert.Equal(t, QueueDefault, queueFor(&mailer.Email{To: []string{"visitor@example.com"}}))
	assert.Equal(t, QueueCritical, queueFor(&mailer.Email{To: []string{"admin@example.com"}, Critical: true}))

	task, err := NewTask(&mailer.Email{To: []string{"admin@example.com"}, Subject: "New message", Text: "x", Critical: true}, time.Now())
	require.NoError(t, err)
	payload, err := ParsePayload(task.Payload())
	require.NoError(t, err)
	assert.True(t, payload.Email.Critical)
}

func TestParsePayloadErrors(t *testing.T) {
	_, err := ParsePayload([]byte("{"))
	assert.Error(t, err)

	_, err = ParsePayload([]byte(`{"enqueued_at":"2026-01-02T03:04:05Z"}`))
	assert.Error(t, err)
}

func TestHandleEmail(t *testing.T) {
	sender := &recordingSender{}
	w := &Worker{sender: sender, logger: zap.NewNop()}

	task, err := NewTask(&mailer.Email{To: []string{"a@example.com"}, Subject: "s"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, w.HandleEmail(context.Background(), task))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "s", sender.sent[0].Subject)

	// Delivery errors are retried
	sender.err = errors.New("smtp down")
	err = w.HandleEmail(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	// Broken payloads are not
	err = w.HandleEmail(context.Background(), asynq.NewTask(TypeEmailSend, []byte("nope")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestConfigRequiresRedis(t *testing.T) {
	_, err := New(&Config{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewWorker(&WorkerConfig{}, &recordingSender{}, zap.NewNop())
	assert.Error(t, err)
}
