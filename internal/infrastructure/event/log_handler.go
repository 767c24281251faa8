package event

import (
	"context"
	"encoding/json"

	"github.com/gamekeys/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LogHandler writes every domain event to the log as an audit trail
type LogHandler struct {
	logger *zap.Logger
}

// NewLogHandler creates a wildcard handler that logs events
func NewLogHandler(logger *zap.Logger) *LogHandler {
	return &LogHandler{logger: logger.Named("events")}
}

// EventTypes returns nil: the handler receives all events
func (h *LogHandler) EventTypes() []string {
	return nil
}

// Handle logs the event with its JSON payload
func (h *LogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.logger.Info("Domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.ByteString("payload", payload),
	)
	return nil
}

var _ shared.EventHandler = (*LogHandler)(nil)
