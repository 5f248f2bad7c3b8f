package services

import (
	"context"
	"encoding/json"
	"time"

	aws_pkg "order-core/pkg/aws"

	"go.uber.org/zap"
)

// AuditEvent is one structured record per mutating action.
type AuditEvent struct {
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	ActorID   string    `json:"actor_id,omitempty"`
	EntityID  string    `json:"entity_id"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditPublisher sends one serialized event to a sink.
type AuditPublisher interface {
	Publish(ctx context.Context, key string, message []byte) error
}

// AuditSink fans audit events out to Kafka and, when configured, an SNS
// mirror. Emission is detached from the caller: a failed publish is logged
// and never affects the transaction the event describes.
type AuditSink struct {
	producer    AuditPublisher
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
	timeout     time.Duration
}

func NewAuditSink(producer AuditPublisher, snsClient aws_pkg.SNSPublisher, snsTopicArn string, logger *zap.Logger) *AuditSink {
	return &AuditSink{
		producer:    producer,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		logger:      logger,
		timeout:     5 * time.Second,
	}
}

// Emit publishes the event on a detached goroutine.
func (s *AuditSink) Emit(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal audit event", zap.String("action", event.Action), zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if s.producer != nil {
			if err := s.producer.Publish(ctx, event.EntityID, payload); err != nil {
				s.logger.Warn("Audit publish failed",
					zap.String("action", event.Action),
					zap.String("entity_id", event.EntityID),
					zap.Error(err),
				)
			}
		}

		if s.snsClient != nil && s.snsTopicArn != "" {
			if err := s.snsClient.Publish(ctx, s.snsTopicArn, payload); err != nil {
				s.logger.Warn("Audit SNS publish failed",
					zap.String("action", event.Action),
					zap.Error(err),
				)
			}
		}
	}()
}
