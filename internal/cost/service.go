package cost

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantumflow/callengine/internal/datastore"
	"github.com/quantumflow/callengine/internal/events"
	"github.com/quantumflow/callengine/internal/logging"
	"github.com/quantumflow/callengine/internal/models"
)

// AlertRoutingKey is the routing key of over-threshold cost alerts
const AlertRoutingKey = "call.cost.alert"

// Rates are the per-unit prices of each metered dimension
type Rates struct {
	SynthesisPerChar     decimal.Decimal
	RecognitionPerSecond decimal.Decimal
	ModelPerToken        decimal.Decimal
	PlatformPerMinute    decimal.Decimal
}

// DefaultRates returns the EUR rates
func DefaultRates() Rates {
	return Rates{
		SynthesisPerChar:     decimal.RequireFromString("0.000018"),
		RecognitionPerSecond: decimal.RequireFromString("0.0001"),
		ModelPerToken:        decimal.RequireFromString("0.000002"),
		PlatformPerMinute:    decimal.RequireFromString("0.05"),
	}
}

// Config holds the cost service configuration
type Config struct {
	Rates          Rates
	Currency       string          // Default: EUR
	AlertThreshold decimal.Decimal // Default: 0.50
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Rates:          DefaultRates(),
		Currency:       "EUR",
		AlertThreshold: decimal.RequireFromString("0.50"),
	}
}

// Stats reports response optimization counters
type Stats struct {
	Optimizations int64 `json:"optimizations"`
	BytesSaved    int64 `json:"bytesSaved"`
	AlertsRaised  int64 `json:"alertsRaised"`
}

// Service computes, persists and reports per-call cost
type Service struct {
	config    *Config
	store     datastore.Store
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	optimizations atomic.Int64
	bytesSaved    atomic.Int64
	alerts        atomic.Int64
}

// NewService creates a cost service. publisher may be nil, in which case alerts are only recorded.
func NewService(config *Config, store datastore.Store, publisher events.Publisher, logger *slog.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Currency == "" {
		config.Currency = "EUR"
	}

	return &Service{
		config:    config,
		store:     store,
		publisher: publisher,
		logger:    logging.OrDiscard(logger).With(slog.String("component", "cost")),
		now:       time.Now,
	}
}

// CalculateCost prices a usage record
func (s *Service) CalculateCost(usage models.Usage) models.CostBreakdown {
	return Calculate(usage, s.config.Rates, s.config.Currency)
}

// Calculate prices a usage record with the given rates
func Calculate(usage models.Usage, rates Rates, currency string) models.CostBreakdown {
	breakdown := models.CostBreakdown{
		SynthesisCost:   rates.SynthesisPerChar.Mul(decimal.NewFromInt(usage.SynthesisChars)),
		RecognitionCost: rates.RecognitionPerSecond.Mul(decimal.NewFromFloat(usage.RecognitionSeconds)),
		ModelCost:       rates.ModelPerToken.Mul(decimal.NewFromInt(usage.ModelTokens)),
		PlatformCost:    rates.PlatformPerMinute.Mul(decimal.NewFromFloat(usage.PlatformMinutes)),
		Currency:        currency,
	}
	breakdown.Total = breakdown.SynthesisCost.
		Add(breakdown.RecognitionCost).
		Add(breakdown.ModelCost).
		Add(breakdown.PlatformCost)
	return breakdown
}

// TrackCallCost persists the cost of a call onto its conversation and raises
// an alert when the total exceeds the threshold. Alerts never throttle or end a call.
func (s *Service) TrackCallCost(ctx context.Context, callID string, usage models.Usage) (*models.CostBreakdown, error) {
	breakdown := s.CalculateCost(usage)

	if err := s.store.UpdateConversation(ctx, callID, models.ConversationUpdate{Cost: &breakdown}); err != nil {
		return nil, fmt.Errorf("failed to store call cost: %w", err)
	}

	s.trackEvent(ctx, models.EventCostTracked, callID, "ok", map[string]interface{}{
		"total":    breakdown.Total.String(),
		"currency": breakdown.Currency,
	})

	if breakdown.Total.GreaterThan(s.config.AlertThreshold) {
		s.raiseAlert(ctx, callID, breakdown)
	}

	return &breakdown, nil
}

func (s *Service) raiseAlert(ctx context.Context, callID string, breakdown models.CostBreakdown) {
	s.alerts.Add(1)
	s.logger.Warn("call cost above threshold",
		slog.String("call_id", callID),
		slog.String("total", breakdown.Total.String()),
		slog.String("threshold", s.config.AlertThreshold.String()),
	)

	s.trackEvent(ctx, models.EventCostAlert, callID, "over_threshold", map[string]interface{}{
		"total":     breakdown.Total.String(),
		"threshold": s.config.AlertThreshold.String(),
	})

	if s.publisher == nil {
		return
	}
	alert := events.NewEnvelope(AlertRoutingKey, callID, map[string]interface{}{
		"callId":    callID,
		"cost":      breakdown,
		"threshold": s.config.AlertThreshold,
	})
	if err := s.publisher.Publish(ctx, AlertRoutingKey, alert); err != nil {
		s.logger.Error("failed to publish cost alert", slog.String("call_id", callID), slog.String("error", err.Error()))
	}
}

// Stats returns optimization and alert counters
func (s *Service) Stats() Stats {
	return Stats{
		Optimizations: s.optimizations.Load(),
		BytesSaved:    s.bytesSaved.Load(),
		AlertsRaised:  s.alerts.Load(),
	}
}

func (s *Service) trackEvent(ctx context.Context, eventType, callID, outcome string, metadata map[string]interface{}) {
	err := s.store.TrackEvent(ctx, &models.AnalyticsEvent{
		Type:     eventType,
		CallID:   callID,
		Outcome:  outcome,
		Metadata: metadata,
	})
	if err != nil {
		s.logger.Debug("failed to track cost event", slog.String("error", err.Error()))
	}
}
