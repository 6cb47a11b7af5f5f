package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/jobs"
	"github.com/noah-isme/registrar-api/pkg/notify"
)

const notificationJobType = "notification.deliver"

// NotificationService queues user notifications and hands them to a
// publisher from background workers. Delivery failures never fail the
// operation that triggered them.
type NotificationService struct {
	queue     *jobs.Queue
	publisher notify.Publisher
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService wires the delivery handler onto queue. A nil queue
// delivers inline.
func NewNotificationService(queue *jobs.Queue, publisher notify.Publisher, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = notify.NewLogPublisher(logger)
	}
	svc := &NotificationService{queue: queue, publisher: publisher, metrics: metrics, logger: logger, now: time.Now}
	if queue != nil {
		queue.Handle(notificationJobType, svc.deliver)
	}
	return svc
}

// Notify schedules a message for userID.
func (s *NotificationService) Notify(ctx context.Context, userID, message, contextRef string) {
	if s == nil || userID == "" {
		return
	}
	n := models.Notification{
		ID:         uuid.NewString(),
		UserID:     userID,
		Message:    message,
		ContextRef: contextRef,
		CreatedAt:  s.now().UTC(),
	}
	if s.queue == nil {
		if err := s.deliver(ctx, jobs.Job{ID: n.ID, Type: notificationJobType, Payload: n}); err != nil {
			s.logger.Warn("notification delivery failed", zap.String("user_id", userID), zap.Error(err))
		}
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: notificationJobType, Payload: n}); err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("failed to queue notification", zap.String("user_id", userID), zap.String("context_ref", contextRef), zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	err := s.publisher.Publish(ctx, notify.Message{
		ID:         n.ID,
		UserID:     n.UserID,
		Message:    n.Message,
		ContextRef: n.ContextRef,
		CreatedAt:  n.CreatedAt,
	})
	if err != nil {
		s.metrics.RecordNotification("failed")
		return err
	}
	s.metrics.RecordNotification("sent")
	return nil
}
