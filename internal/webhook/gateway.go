package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/quantumflow/callengine/internal/cache"
	"github.com/quantumflow/callengine/internal/cost"
	"github.com/quantumflow/callengine/internal/customer"
	"github.com/quantumflow/callengine/internal/datastore"
	"github.com/quantumflow/callengine/internal/logging"
	"github.com/quantumflow/callengine/internal/models"
	"github.com/quantumflow/callengine/internal/registry"
)

// Config holds the gateway configuration
type Config struct {
	SignatureHeader string // Default: X-Signature
	MaxBodyBytes    int64  // Default: 1 MiB
	TransferNumber  string
	CountryCode     string
	DefaultLanguage string // Default: en
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SignatureHeader: "X-Signature",
		MaxBodyBytes:    1 << 20,
		CountryCode:     customer.DefaultCountryCode,
		DefaultLanguage: customer.LanguageEnglish,
	}
}

// Deps are the services composed by the gateway
type Deps struct {
	Verifier *Verifier
	Registry *registry.Registry
	Resolver *customer.Resolver
	Cost     *cost.Service
	Store    datastore.Store
	Cache    *cache.Manager
	Logger   *slog.Logger
}

// Gateway receives platform webhooks and routes them by event type
type Gateway struct {
	config   *Config
	verifier *Verifier
	registry *registry.Registry
	resolver *customer.Resolver
	cost     *cost.Service
	store    datastore.Store
	cache    *cache.Manager
	logger   *slog.Logger
}

// NewGateway creates a webhook gateway
func NewGateway(config *Config, deps Deps) *Gateway {
	if config == nil {
		config = DefaultConfig()
	}
	if config.SignatureHeader == "" {
		config.SignatureHeader = "X-Signature"
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = customer.LanguageEnglish
	}

	logger := logging.OrDiscard(deps.Logger).With(slog.String("component", "webhook"))
	verifier := deps.Verifier
	if verifier == nil {
		verifier = NewVerifier("", logger)
	}

	return &Gateway{
		config:   config,
		verifier: verifier,
		registry: deps.Registry,
		resolver: deps.Resolver,
		cost:     deps.Cost,
		store:    deps.Store,
		cache:    deps.Cache,
		logger:   logger,
	}
}

// outcome is what the boundary logs and records once per request
type outcome struct {
	eventType string
	callID    string
	status    int
	label     string
	err       error
}

// ServeHTTP is the single error boundary of the webhook: it maps every
// handler outcome to an HTTP status and emits exactly one log line and one
// analytics record per request.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	out := &outcome{eventType: "unparsed", status: http.StatusOK}

	defer func() {
		if rec := recover(); rec != nil {
			out.status = http.StatusInternalServerError
			out.label = "panic"
			out.err = fmt.Errorf("panic: %v", rec)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		g.finish(r.Context(), out, time.Since(start))
	}()

	status, payload := g.handle(r, out)
	out.status = status
	writeJSON(w, status, payload)
}

func (g *Gateway) handle(r *http.Request, out *outcome) (int, any) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, g.config.MaxBodyBytes))
	if err != nil {
		// a truncated body can never carry a valid signature
		if g.verifier.Enabled() {
			out.label, out.err = "unauthorized", err
			return http.StatusUnauthorized, map[string]string{"error": "unauthorized"}
		}
		out.label, out.err = "validation", err
		return http.StatusOK, validationPayload("request body unreadable or too large")
	}

	if err := g.verifier.Verify(body, r.Header.Get(g.config.SignatureHeader)); err != nil {
		out.label, out.err = "unauthorized", err
		return http.StatusUnauthorized, map[string]string{"error": "unauthorized"}
	}

	event, err := ParseEvent(body)
	if err != nil {
		out.label, out.err = "validation", err
		var verr *ValidationError
		errors.As(err, &verr)
		return http.StatusOK, validationPayload(verr.Message)
	}
	out.eventType, out.callID = event.Type, event.Call.ID

	payload, label, err := g.route(r.Context(), event)
	out.label, out.err = label, err

	var verr *ValidationError
	var derr *DependencyError
	switch {
	case err == nil:
		return http.StatusOK, payload
	case errors.As(err, &verr):
		out.label = "validation"
		return http.StatusOK, validationPayload(verr.Message)
	case errors.As(err, &derr):
		out.label = "degraded"
		if payload == nil {
			payload = map[string]bool{"received": true}
		}
		return http.StatusOK, payload
	default:
		out.label = "error"
		return http.StatusInternalServerError, map[string]string{"error": "internal error"}
	}
}

func (g *Gateway) finish(ctx context.Context, out *outcome, elapsed time.Duration) {
	attrs := []any{
		slog.String("event_type", out.eventType),
		slog.String("call_id", out.callID),
		slog.Int("status", out.status),
		slog.String("outcome", out.label),
		slog.Duration("duration", elapsed),
	}
	switch {
	case out.status >= http.StatusInternalServerError:
		g.logger.Error("webhook failed", append(attrs, slog.Any("error", out.err))...)
	case out.err != nil:
		g.logger.Warn("webhook handled", append(attrs, slog.String("error", out.err.Error()))...)
	default:
		g.logger.Info("webhook handled", attrs...)
	}

	if g.store == nil {
		return
	}
	event := &models.AnalyticsEvent{
		Type:       models.EventWebhookPrefix + out.eventType,
		CallID:     out.callID,
		Outcome:    out.label,
		DurationMs: elapsed.Milliseconds(),
		Metadata:   map[string]interface{}{"status": out.status},
	}
	// The request context may already be cancelled once the response is written.
	if err := g.store.TrackEvent(context.WithoutCancel(ctx), event); err != nil {
		g.logger.Debug("failed to record webhook event", slog.String("error", err.Error()))
	}
}

func validationPayload(message string) map[string]any {
	return map[string]any{
		"error": map[string]string{
			"type":    "validation",
			"message": message,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
