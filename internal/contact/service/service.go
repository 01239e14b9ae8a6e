package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"linkage/internal/contact/metrics"
	"linkage/internal/contact/models"
	"linkage/internal/contact/ports"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/sentinel"
	"linkage/pkg/requestcontext"
)

// Service reconciles identify submissions into consolidated identities.
type Service struct {
	tx        ports.ContactStoreTx
	publisher ports.EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher ships committed changes to publisher. Without one, no
// events leave the process.
func WithPublisher(publisher ports.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service running every identify call through tx.
func New(tx ports.ContactStoreTx, opts ...Option) *Service {
	s := &Service{tx: tx}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("linkage/contact")
	}
	return s
}

// Identify returns the consolidated identity for the submitted email and
// phone number, creating, linking or merging records as needed. The whole
// read-modify-write runs in one serialized transaction; nothing is written
// when it fails.
func (s *Service) Identify(ctx context.Context, req *models.IdentifyRequest) (*models.IdentityResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "contact.Identify")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		s.observe(start, metrics.OutcomeInvalid)
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}

	var outcome *reconciliation
	err := s.tx.RunInTx(ctx, func(store ports.ContactStore) error {
		r := &reconciler{
			store:     store,
			logger:    s.logger,
			now:       requestcontext.Now(ctx),
			requestID: requestcontext.RequestID(ctx),
		}
		res, err := r.run(ctx, req.Email, req.PhoneNumber)
		if err != nil {
			return err
		}
		outcome = res
		return nil
	})
	if err != nil {
		err = s.translateError(ctx, err)
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			s.observe(start, metrics.OutcomeTimeout)
		} else {
			s.observe(start, metrics.OutcomeError)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.logger.ErrorContext(ctx, "identify failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}

	result := outcome.result
	span.SetAttributes(
		attribute.Int64("contact.primary_id", int64(result.PrimaryContactID)),
		attribute.Int("contact.component_size", outcome.componentSize),
		attribute.Int("contact.relinked", outcome.relinked),
	)
	s.record(start, outcome)
	s.publish(ctx, outcome.events)
	s.logger.DebugContext(ctx, "contact identified",
		"primary_contact_id", result.PrimaryContactID,
		"component_size", outcome.componentSize,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

func (s *Service) translateError(ctx context.Context, err error) error {
	switch {
	case dErrors.HasCode(err, dErrors.CodeTimeout),
		dErrors.HasCode(err, dErrors.CodeUnavailable),
		dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "identify timed out")
	case errors.Is(err, sentinel.ErrUnavailable), errors.Is(err, sentinel.ErrLockHeld):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "contact store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to identify contact")
	}
}

func (s *Service) record(start time.Time, r *reconciliation) {
	outcome := metrics.OutcomeMatched
	switch {
	case r.merged:
		outcome = metrics.OutcomeMerged
	case r.created != nil:
		outcome = metrics.OutcomeCreated
	}
	s.observe(start, outcome)
	if s.metrics == nil {
		return
	}
	if r.created != nil {
		s.metrics.IncrementCreated(r.created.LinkPrecedence)
	}
	s.metrics.AddRelinked(r.relinked)
	s.metrics.ObserveComponentSize(r.componentSize)
}

func (s *Service) observe(start time.Time, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveIdentify(start, outcome)
	}
}

// publish emits committed events. Publishing is best-effort: the
// transaction has already committed, so failures are logged and dropped.
func (s *Service) publish(ctx context.Context, events []models.Event) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"error", err,
			"events", len(events),
		)
	}
}
