package functions

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quantumflow/callengine/internal/cache"
	"github.com/quantumflow/callengine/internal/customer"
	"github.com/quantumflow/callengine/internal/datastore"
	"github.com/quantumflow/callengine/internal/logging"
	"github.com/quantumflow/callengine/internal/models"
	"github.com/quantumflow/callengine/internal/registry"
	"github.com/quantumflow/callengine/internal/search"
)

// Function names exposed to the voice platform
const (
	GetBusinessInfo   = "get_business_info"
	SearchProducts    = "search_products"
	CheckAvailability = "check_availability"
	GetOrderHistory   = "get_order_history"
	CreateBooking     = "create_booking"
)

const (
	businessInfoTTL = 24 * time.Hour
	searchTTL       = 300 * time.Second
	availabilityTTL = 60 * time.Second
	orderHistoryTTL = 120 * time.Second
	liveSearchTTL   = time.Hour
	resultLimit     = 5
)

// BusinessInfo is the static information served by get_business_info
type BusinessInfo struct {
	Name    string
	Address string
	Phone   string
	Hours   string
	Days    string
}

// Deps are the collaborators of the business operations
type Deps struct {
	Store       datastore.Store
	Cache       *cache.Manager
	Search      *search.Client // nil disables the live search tier
	Resolver    *customer.Resolver
	Business    BusinessInfo
	CountryCode string
	Logger      *slog.Logger
}

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

// Register installs every business operation into reg
func Register(reg *registry.Registry, deps Deps) error {
	h := &handlers{
		deps:   deps,
		logger: logging.OrDiscard(deps.Logger).With(slog.String("component", "functions")),
	}

	registrations := []struct {
		name    string
		handler registry.HandlerFunc
		opts    []registry.Option
	}{
		{GetBusinessInfo, h.businessInfo, []registry.Option{
			registry.WithTTL(businessInfoTTL),
		}},
		{SearchProducts, h.searchProducts, []registry.Option{
			registry.WithTTL(searchTTL),
			registry.WithFallback("I'm having trouble searching our catalog right now. A colleague can check that for you."),
		}},
		{CheckAvailability, h.checkAvailability, []registry.Option{
			registry.WithTTL(availabilityTTL),
			registry.WithFallback("I can't check stock at the moment. Please try again in a few minutes."),
		}},
		{GetOrderHistory, h.orderHistory, []registry.Option{
			registry.WithTTL(orderHistoryTTL),
			registry.PerCaller(),
			registry.WithFallback("I can't reach your order history right now."),
		}},
		{CreateBooking, h.createBooking, []registry.Option{
			registry.NoCache(),
			registry.WithFallback("I couldn't complete the booking. Let me transfer you to a colleague."),
		}},
	}

	for _, r := range registrations {
		if err := reg.Register(r.name, r.handler, r.opts...); err != nil {
			return fmt.Errorf("failed to register %s: %w", r.name, err)
		}
	}
	return nil
}

func stringParam(params map[string]interface{}, key string) string {
	switch v := params[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func callLanguage(params map[string]interface{}, call *models.CallContext) string {
	if lang := stringParam(params, "language"); lang != "" {
		return lang
	}
	if call != nil {
		if call.Language != "" {
			return call.Language
		}
		if call.Customer != nil && call.Customer.Language != "" {
			return call.Customer.Language
		}
	}
	return customer.LanguageEnglish
}

func softError(message string) registry.Result {
	return registry.Result{"error": true, "message": message}
}
