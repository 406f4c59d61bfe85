package datastore

import (
	"context"
	"errors"
	"time"

	"github.com/quantumflow/callengine/internal/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("datastore: not found")

// Store is the conversation datastore consumed by the engine
type Store interface {
	// CreateConversation inserts a conversation; a second call for the same call id is a no-op
	CreateConversation(ctx context.Context, conv *models.Conversation) error

	// GetConversation returns the conversation of a call
	GetConversation(ctx context.Context, callID string) (*models.Conversation, error)

	// UpdateConversation applies a partial update
	UpdateConversation(ctx context.Context, callID string, update models.ConversationUpdate) error

	// ListConversations returns conversations created in [since, until)
	ListConversations(ctx context.Context, since, until time.Time) ([]*models.Conversation, error)

	// TrackEvent records an analytics event
	TrackEvent(ctx context.Context, event *models.AnalyticsEvent) error

	// CountEvents counts analytics events per type since a point in time
	CountEvents(ctx context.Context, since time.Time) (map[string]int, error)

	// SearchProducts performs a text search over the catalog
	SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error)

	// CheckAvailability returns stock information for a product id or sku
	CheckAvailability(ctx context.Context, productID string) (*models.Availability, error)

	// GetCustomerByPhone aggregates the orders placed from a canonical phone number
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)

	// GetCustomerOrderHistory returns the most recent orders of a canonical phone number
	GetCustomerOrderHistory(ctx context.Context, phone string, limit int) ([]models.Order, error)

	// CreateOrder records an order; the phone must already be canonical
	CreateOrder(ctx context.Context, order *models.Order) error

	// UpsertProduct inserts or replaces a catalog entry
	UpsertProduct(ctx context.Context, product *models.Product) error

	// CreateBooking records a reservation
	CreateBooking(ctx context.Context, booking *models.Booking) error

	// Close releases the underlying connection
	Close() error
}
