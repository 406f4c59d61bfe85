package customer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quantumflow/callengine/internal/cache"
	"github.com/quantumflow/callengine/internal/datastore"
	"github.com/quantumflow/callengine/internal/logging"
	"github.com/quantumflow/callengine/internal/models"
)

// Config holds the resolver configuration
type Config struct {
	CountryCode  string        // Default: 357
	ProfileTTL   time.Duration // Default: 5m
	HistoryLimit int           // Default: 5
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		CountryCode:  DefaultCountryCode,
		ProfileTTL:   5 * time.Minute,
		HistoryLimit: 5,
	}
}

// Resolver identifies callers from their phone number
type Resolver struct {
	store  datastore.Store
	cache  *cache.Manager
	config *Config
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver creates a customer resolver. cacheManager may be nil.
func NewResolver(config *Config, store datastore.Store, cacheManager *cache.Manager, logger *slog.Logger) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 5
	}

	return &Resolver{
		store:  store,
		cache:  cacheManager,
		config: config,
		logger: logging.OrDiscard(logger).With(slog.String("component", "customer")),
		now:    time.Now,
	}
}

// Identify resolves the profile of a caller. It returns nil when the number is
// invalid, unknown, or the datastore cannot be reached; none of these surface
// as an error.
func (r *Resolver) Identify(ctx context.Context, phone, callID string) *models.CustomerProfile {
	start := r.now()

	canonical, err := CanonicalPhone(phone, r.config.CountryCode)
	if err != nil {
		r.track(ctx, models.EventCustomerNotFound, callID, "invalid_phone", start, nil)
		return nil
	}

	key := cache.CustomerKey(canonical)
	if r.cache != nil {
		var cached models.CustomerProfile
		if r.cache.GetJSON(ctx, key, &cached) {
			r.track(ctx, models.EventCustomerIdentified, callID, "cached", start, map[string]interface{}{"vip": cached.IsVIP})
			return &cached
		}
	}

	customer, err := r.store.GetCustomerByPhone(ctx, canonical)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			r.track(ctx, models.EventCustomerNotFound, callID, "unknown", start, nil)
			return nil
		}
		r.logger.Warn("customer lookup failed", slog.String("call_id", callID), slog.String("error", err.Error()))
		r.track(ctx, models.EventCustomerLookupFailed, callID, "error", start, nil)
		return nil
	}

	history, err := r.store.GetCustomerOrderHistory(ctx, canonical, r.config.HistoryLimit)
	if err != nil {
		r.logger.Warn("order history unavailable", slog.String("call_id", callID), slog.String("error", err.Error()))
		history = nil
	}

	profile := &models.CustomerProfile{
		NormalizedPhone:   canonical,
		Name:              customer.Name,
		TotalOrders:       customer.TotalOrders,
		TotalSpent:        customer.TotalSpent,
		LastOrderDate:     customer.LastOrderDate,
		PreferredLanguage: DetectLanguage(customer.Name),
		IsVIP:             IsVIP(customer.TotalOrders, customer.TotalSpent),
		OrderHistory:      history,
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, key, profile, r.config.ProfileTTL); err != nil {
			r.logger.Warn("failed to cache profile", slog.String("error", err.Error()))
		}
	}

	r.track(ctx, models.EventCustomerIdentified, callID, "resolved", start, map[string]interface{}{"vip": profile.IsVIP})
	return profile
}

// Greeting renders the greeting for a profile at the current time
func (r *Resolver) Greeting(profile *models.CustomerProfile, language string) string {
	return GenerateGreeting(profile, language, r.now())
}

// Invalidate drops the cached profile of a phone number
func (r *Resolver) Invalidate(ctx context.Context, phone string) error {
	canonical, err := CanonicalPhone(phone, r.config.CountryCode)
	if err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Del(ctx, cache.CustomerKey(canonical))
	}
	return nil
}

func (r *Resolver) track(ctx context.Context, eventType, callID, outcome string, start time.Time, metadata map[string]interface{}) {
	err := r.store.TrackEvent(ctx, &models.AnalyticsEvent{
		Type:       eventType,
		CallID:     callID,
		Outcome:    outcome,
		DurationMs: r.now().Sub(start).Milliseconds(),
		Metadata:   metadata,
	})
	if err != nil {
		r.logger.Debug("failed to track customer event", slog.String("error", err.Error()))
	}
}
