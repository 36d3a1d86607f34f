package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// event mirrors the envelope published by the order service.
type event struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// LoggingHandler returns a MessageHandler that decodes order events and logs
// them. Malformed bodies are reported as errors.
func LoggingHandler(log *zap.Logger) MessageHandler {
	return func(_ context.Context, msg amqp.Delivery) error {
		var ev event
		if err := json.Unmarshal(msg.Body, &ev); err != nil {
			return fmt.Errorf("decode order event: %w", err)
		}
		if ev.EventID == "" || ev.EventType == "" {
			return fmt.Errorf("order event missing id or type")
		}
		log.Info("order event received",
			zap.String("event_id", ev.EventID),
			zap.String("event_type", ev.EventType),
			zap.String("routing_key", msg.RoutingKey),
			zap.Int("payload_bytes", len(ev.Payload)),
		)
		return nil
	}
}
