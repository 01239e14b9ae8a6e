package events

import (
	"context"
	"log/slog"

	"linkage/internal/contact/models"
	"linkage/internal/contact/ports"
)

var _ ports.EventPublisher = (*LogPublisher)(nil)

// LogPublisher writes events as structured log lines. Used when no broker
// is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, events ...models.Event) error {
	for _, e := range events {
		p.logger.InfoContext(ctx, string(e.Type),
			"event_id", e.ID,
			"contact_id", e.ContactID,
			"primary_contact_id", e.PrimaryContactID,
			"link_precedence", e.LinkPrecedence,
			"request_id", e.RequestID,
			"occurred_at", e.OccurredAt,
			"log_type", "event",
		)
	}
	return nil
}
