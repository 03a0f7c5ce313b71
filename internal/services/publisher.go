package services

import (
	"context"

	"finanzas/internal/amqp"
	"finanzas/internal/log"
)

// Publisher delivers domain events. *amqp.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.Event) error
}

// publish sends ev when a publisher is configured. Failures are logged and
// never fail the calling operation: the write already succeeded.
func publish(ctx context.Context, p Publisher, logger *log.Logger, ev *amqp.Event) {
	if p == nil {
		logger.DebugContext(ctx, "No event publisher, skipping event", log.FieldEventType, ev.Type)
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event",
			log.FieldEventType, ev.Type,
			log.FieldEventID, ev.ID,
			log.FieldError, err)
	}
}
