package registry

import (
	"context"
	"errors"
	"time"

	"github.com/quantumflow/callengine/internal/models"
)

var (
	// ErrNilHandler is returned when registering a nil handler
	ErrNilHandler = errors.New("registry: handler is nil")

	// ErrDuplicateFunction is returned when a name is registered twice
	ErrDuplicateFunction = errors.New("registry: function already registered")
)

const (
	// DefaultTTL is the cache lifetime of a function result unless overridden
	DefaultTTL = 300 * time.Second

	// DefaultFallbackMessage is spoken when a handler fails without its own message
	DefaultFallbackMessage = "I'm sorry, I couldn't complete that right now. Let me connect you with a colleague who can help."
)

// Result is the JSON-serializable outcome of a function call
type Result map[string]interface{}

// IsError reports whether the result carries an error flag
func (r Result) IsError() bool {
	flag, _ := r["error"].(bool)
	return flag
}

// Fallback builds the safe result returned in place of a failed call
func Fallback(message string) Result {
	return Result{
		"error":    true,
		"message":  message,
		"fallback": true,
	}
}

// Handler is a named business operation
type Handler interface {
	Execute(ctx context.Context, params map[string]interface{}, call *models.CallContext) (Result, error)
}

// HandlerFunc adapts a function into a Handler
type HandlerFunc func(ctx context.Context, params map[string]interface{}, call *models.CallContext) (Result, error)

// Execute calls f
func (f HandlerFunc) Execute(ctx context.Context, params map[string]interface{}, call *models.CallContext) (Result, error) {
	return f(ctx, params, call)
}

// Recorder receives function-level telemetry
type Recorder interface {
	TrackEvent(ctx context.Context, event *models.AnalyticsEvent) error
}

// Registration describes a registered function
type Registration struct {
	Name            string
	Handler         Handler
	TTL             time.Duration
	Cacheable       bool
	PerCaller       bool
	FallbackMessage string
}

// Option customizes a registration
type Option func(*Registration)

// WithTTL sets the cache lifetime. A zero or negative TTL disables caching.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registration) {
		r.TTL = ttl
		if ttl <= 0 {
			r.Cacheable = false
		}
	}
}

// NoCache disables caching, as required for mutating operations
func NoCache() Option {
	return func(r *Registration) {
		r.Cacheable = false
		r.TTL = 0
	}
}

// PerCaller scopes cached results to the calling number, for results that
// depend on who is calling rather than on the parameters alone
func PerCaller() Option {
	return func(r *Registration) {
		r.PerCaller = true
	}
}

// WithFallback sets the message returned when the handler fails
func WithFallback(message string) Option {
	return func(r *Registration) {
		r.FallbackMessage = message
	}
}

// FunctionStats are the counters of one function
type FunctionStats struct {
	Calls        int64   `json:"calls"`
	CacheHits    int64   `json:"cacheHits"`
	Failures     int64   `json:"failures"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	TTLSeconds   int64   `json:"ttlSeconds"`
	Cacheable    bool    `json:"cacheable"`
}

// Stats summarize the registry for the health endpoint
type Stats struct {
	Registered int                      `json:"registered"`
	Calls      int64                    `json:"calls"`
	CacheHits  int64                    `json:"cacheHits"`
	Failures   int64                    `json:"failures"`
	Functions  map[string]FunctionStats `json:"functions"`
}
