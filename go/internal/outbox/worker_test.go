package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPublisher struct {
	failures int
	calls    int
}

func (p *flakyPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("bus unavailable")
	}
	return nil
}

func testEvent() OutboxEvent {
	return OutboxEvent{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		EventType: EventTypeSessionCompleted,
		Payload:   []byte(`{"completed_minutes":25}`),
		CreatedAt: time.Now(),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishWithRetryEventuallySucceeds(t *testing.T) {
	pub := &flakyPublisher{failures: 2}
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	cfg.RetryDelay = time.Millisecond
	worker := NewWorker(nil, pub, cfg, discardLogger())

	err := worker.publishWithRetry(context.Background(), testEvent())
	require.NoError(t, err)
	assert.Equal(t, 3, pub.calls)
}

func TestPublishWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	pub := &flakyPublisher{failures: 10}
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond
	worker := NewWorker(nil, pub, cfg, discardLogger())

	err := worker.publishWithRetry(context.Background(), testEvent())
	require.Error(t, err)
	assert.Equal(t, 3, pub.calls)
}

func TestPublishWithRetryRespectsCancellation(t *testing.T) {
	pub := &flakyPublisher{failures: 10}
	cfg := DefaultConfig()
	cfg.MaxRetries = 5
	cfg.RetryDelay = time.Minute
	worker := NewWorker(nil, pub, cfg, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := worker.publishWithRetry(ctx, testEvent())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, pub.calls)
}

func TestMockPublisherCapturesEvents(t *testing.T) {
	pub := NewMockPublisher(discardLogger())

	first := testEvent()
	second := testEvent()
	require.NoError(t, pub.Publish(context.Background(), first))
	require.NoError(t, pub.Publish(context.Background(), second))

	require.Len(t, pub.Published, 2)
	assert.Equal(t, first.ID, pub.Published[0].ID)
	assert.Equal(t, second.ID, pub.Published[1].ID)
}
