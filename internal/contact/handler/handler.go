package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"linkage/internal/contact/models"
	"linkage/internal/platform/metrics"
	"linkage/internal/platform/middleware"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/httputil"
)

const maxBodyBytes = 1 << 20

// Service defines the interface for identity reconciliation.
type Service interface {
	Identify(ctx context.Context, req *models.IdentifyRequest) (*models.IdentityResult, error)
}

// Handler serves the identify endpoint.
type Handler struct {
	logger         *slog.Logger
	contacts       Service
	metrics        *metrics.Metrics
	requestTimeout time.Duration
}

type Option func(*Handler)

// WithRequestTimeout bounds each request's context. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.requestTimeout = d
	}
}

// New creates a new contact Handler.
func New(contacts Service, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:         logger,
		contacts:       contacts,
		metrics:        metrics,
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the contact routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.RequestTime)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.requestTimeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.Post("/identify", h.handleIdentify)
	})
}

// handleIdentify reconciles the submitted email and phone number into the
// caller's consolidated identity.
func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.IdentifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid identify request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.contacts.Identify(ctx, &req)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeValidation) || dErrors.Is(err, dErrors.CodeBadRequest) {
			h.logger.WarnContext(ctx, "invalid identify request",
				"request_id", requestID,
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "failed to identify contact",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toIdentifyResponse(result))
}

// decodeBody reads one JSON object. An empty body decodes as an empty
// request and is left to validation.
func decodeBody(w http.ResponseWriter, r *http.Request, req *models.IdentifyRequest) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(req)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case dErrors.Is(err, dErrors.CodeBadRequest):
		return err
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "request body too large")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
}
