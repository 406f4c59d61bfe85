package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/quantumflow/callengine/internal/cache"
	"github.com/quantumflow/callengine/internal/logging"
	"github.com/quantumflow/callengine/internal/models"
)

type entry struct {
	Registration

	calls     atomic.Int64
	hits      atomic.Int64
	failures  atomic.Int64
	latencyNs atomic.Int64
}

// Registry maps function names to handlers and memoizes their results.
// All registrations happen at startup; Register must not race with Execute.
type Registry struct {
	functions map[string]*entry
	cache     *cache.Manager
	recorder  Recorder
	logger    *slog.Logger
}

// New creates a registry. cacheManager and recorder may be nil.
func New(cacheManager *cache.Manager, recorder Recorder, logger *slog.Logger) *Registry {
	return &Registry{
		functions: make(map[string]*entry),
		cache:     cacheManager,
		recorder:  recorder,
		logger:    logging.OrDiscard(logger).With(slog.String("component", "registry")),
	}
}

// Register adds a handler under name. Defaults: ttl 300s, cacheable, generic fallback.
func (r *Registry) Register(name string, handler Handler, opts ...Option) error {
	if handler == nil {
		return ErrNilHandler
	}
	if name == "" {
		return fmt.Errorf("registry: function name is empty")
	}
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
	}

	reg := Registration{
		Name:            name,
		Handler:         handler,
		TTL:             DefaultTTL,
		Cacheable:       true,
		FallbackMessage: DefaultFallbackMessage,
	}
	for _, opt := range opts {
		opt(&reg)
	}
	if reg.FallbackMessage == "" {
		reg.FallbackMessage = DefaultFallbackMessage
	}

	r.functions[name] = &entry{Registration: reg}
	r.logger.Debug("function registered",
		slog.String("function", name),
		slog.Bool("cacheable", reg.Cacheable),
		slog.Duration("ttl", reg.TTL),
	)
	return nil
}

// Execute runs a function through the cache. It never returns an error: handler
// errors and panics are converted into the function's fallback result.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}, call *models.CallContext) Result {
	e, ok := r.functions[name]
	if !ok {
		r.logger.Warn("unknown function", slog.String("function", name))
		r.record(ctx, models.EventFunctionFailure, name, call, "unknown_function", 0)
		return Fallback(DefaultFallbackMessage)
	}

	start := time.Now()
	e.calls.Add(1)

	key := ""
	if e.Cacheable && r.cache != nil {
		keyParams := params
		if e.PerCaller {
			keyParams = withCaller(params, call)
		}
		k, err := cache.FunctionKey(name, keyParams)
		if err != nil {
			r.logger.Warn("uncacheable parameters", slog.String("function", name), slog.String("error", err.Error()))
		} else {
			key = k
		}
	}

	if key != "" {
		if cached, ok := r.lookup(ctx, key); ok {
			e.hits.Add(1)
			r.record(ctx, models.EventFunctionCacheHit, name, call, "cache_hit", time.Since(start))
			return cached
		}
	}

	result, err := r.invoke(ctx, e.Handler, params, call)
	elapsed := time.Since(start)
	e.latencyNs.Add(elapsed.Nanoseconds())

	if err != nil {
		e.failures.Add(1)
		r.logger.Error("function failed",
			slog.String("function", name),
			slog.String("call_id", callID(call)),
			slog.String("error", err.Error()),
		)
		r.record(ctx, models.EventFunctionFailure, name, call, "error", elapsed)
		return Fallback(e.FallbackMessage)
	}
	if result == nil {
		result = Result{}
	}

	outcome := "ok"
	if result.IsError() {
		outcome = "error_result"
	} else if key != "" {
		if data, err := json.Marshal(result); err != nil {
			r.logger.Warn("result not cacheable", slog.String("function", name), slog.String("error", err.Error()))
		} else {
			r.cache.Set(ctx, key, data, e.TTL)
		}
	}

	r.record(ctx, models.EventFunctionSuccess, name, call, outcome, elapsed)
	return result
}

func (r *Registry) invoke(ctx context.Context, h Handler, params map[string]interface{}, call *models.CallContext) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h.Execute(ctx, params, call)
}

func (r *Registry) lookup(ctx context.Context, key string) (Result, bool) {
	data, ok := r.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		r.logger.Warn("discarding corrupt cache entry", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	return result, true
}

func (r *Registry) record(ctx context.Context, eventType, name string, call *models.CallContext, outcome string, elapsed time.Duration) {
	if r.recorder == nil {
		return
	}
	err := r.recorder.TrackEvent(ctx, &models.AnalyticsEvent{
		Type:       eventType,
		CallID:     callID(call),
		Outcome:    outcome,
		DurationMs: elapsed.Milliseconds(),
		Metadata:   map[string]interface{}{"function": name},
	})
	if err != nil {
		r.logger.Debug("failed to record function event", slog.String("error", err.Error()))
	}
}

// Get returns the registration of a function
func (r *Registry) Get(name string) (Registration, bool) {
	e, ok := r.functions[name]
	if !ok {
		return Registration{}, false
	}
	return e.Registration, true
}

// List returns the registered function names in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns per-function counters
func (r *Registry) Stats() Stats {
	stats := Stats{
		Registered: len(r.functions),
		Functions:  make(map[string]FunctionStats, len(r.functions)),
	}
	for name, e := range r.functions {
		fs := FunctionStats{
			Calls:      e.calls.Load(),
			CacheHits:  e.hits.Load(),
			Failures:   e.failures.Load(),
			TTLSeconds: int64(e.TTL / time.Second),
			Cacheable:  e.Cacheable,
		}
		if executed := fs.Calls - fs.CacheHits; executed > 0 {
			fs.AvgLatencyMs = float64(e.latencyNs.Load()) / float64(executed) / 1e6
		}
		stats.Calls += fs.Calls
		stats.CacheHits += fs.CacheHits
		stats.Failures += fs.Failures
		stats.Functions[name] = fs
	}
	return stats
}

// withCaller copies params and adds the caller identity under a reserved key
func withCaller(params map[string]interface{}, call *models.CallContext) map[string]interface{} {
	scoped := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		scoped[k] = v
	}
	caller := ""
	if call != nil {
		caller = call.CallerNumber
		if call.Customer != nil && call.Customer.Phone != "" {
			caller = call.Customer.Phone
		}
	}
	scoped["__caller"] = caller
	return scoped
}

func callID(call *models.CallContext) string {
	if call == nil {
		return ""
	}
	return call.CallID
}
