package events

import (
	"context"
	"log/slog"

	"linkage/internal/contact/models"
	"linkage/internal/contact/ports"
	"linkage/pkg/platform/circuit"
)

var _ ports.EventPublisher = (*FallbackPublisher)(nil)

// FallbackPublisher sends events to primary and diverts them to fallback
// while the breaker is open. The primary is still tried on every call so
// consecutive successes can close the circuit.
type FallbackPublisher struct {
	primary  ports.EventPublisher
	fallback ports.EventPublisher
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackPublisher(primary, fallback ports.EventPublisher, breaker *circuit.Breaker, logger *slog.Logger) *FallbackPublisher {
	return &FallbackPublisher{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
	}
}

func (p *FallbackPublisher) Publish(ctx context.Context, events ...models.Event) error {
	err := p.primary.Publish(ctx, events...)
	if err == nil {
		_, change := p.breaker.RecordSuccess()
		if change.Closed {
			p.logger.InfoContext(ctx, "event publisher circuit closed", "breaker", p.breaker.Name())
		}
		return nil
	}

	useFallback, change := p.breaker.RecordFailure()
	if change.Opened {
		p.logger.WarnContext(ctx, "event publisher circuit opened",
			"breaker", p.breaker.Name(),
			"error", err,
		)
	}
	if !useFallback {
		return err
	}
	return p.fallback.Publish(ctx, events...)
}
