package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysByUser(t *testing.T) {
	writer := &fakeWriter{}
	pub := &KafkaPublisher{writer: writer, timeout: time.Second}
	msg := Message{ID: "n-1", UserID: "stu-1", Message: "promoted", ContextRef: "enrollment:e-1", CreatedAt: time.Now().UTC()}

	require.NoError(t, pub.Publish(context.Background(), msg))
	require.Len(t, writer.messages, 1)
	assert.Equal(t, []byte("stu-1"), writer.messages[0].Key)

	var decoded Message
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, "promoted", decoded.Message)
	assert.Equal(t, "enrollment:e-1", decoded.ContextRef)

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	pub := &KafkaPublisher{writer: &fakeWriter{err: boom}}

	err := pub.Publish(context.Background(), Message{UserID: "stu-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pub := NewLogPublisher(zap.New(core))

	require.NoError(t, pub.Publish(context.Background(), Message{ID: "n-1", UserID: "stu-1", Message: "hi"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "stu-1", logs.All()[0].ContextMap()["user_id"])
}
