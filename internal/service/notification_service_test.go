package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/pkg/jobs"
	"github.com/noah-isme/registrar-api/pkg/notify"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg notify.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) For(userID string) []notify.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notify.Message
	for _, m := range p.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

func TestNotificationServiceInline(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewNotificationService(nil, pub, nil, nil)

	svc.Notify(context.Background(), "stu-1", "you were promoted", "enrollment:e-1")
	svc.Notify(context.Background(), "", "ignored", "")

	msgs := pub.For("stu-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "enrollment:e-1", msgs[0].ContextRef)
	assert.NotEmpty(t, msgs[0].ID)
}

func TestNotificationServiceQueued(t *testing.T) {
	pub := &recordingPublisher{}
	queue := jobs.NewQueue("notifications", nil, jobs.QueueConfig{Workers: 2, RetryDelay: time.Millisecond})
	svc := NewNotificationService(queue, pub, NewMetricsService(), nil)
	queue.Start(context.Background())
	defer queue.Stop()

	for i := 0; i < 5; i++ {
		svc.Notify(context.Background(), "stu-1", "update", "section:s-1")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, queue.Drain(ctx))
	assert.Len(t, pub.For("stu-1"), 5)
	assert.EqualValues(t, 5, queue.Stats().Processed)
}
