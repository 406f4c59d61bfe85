package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConversationStatus is the lifecycle state of a call conversation
type ConversationStatus string

const (
	ConversationActive     ConversationStatus = "active"
	ConversationResolved   ConversationStatus = "resolved"
	ConversationIncomplete ConversationStatus = "incomplete"
)

// Conversation is the persisted record of a single call
type Conversation struct {
	ID        string                 `json:"id"`
	CallID    string                 `json:"call_id"`
	Phone     string                 `json:"phone"`
	Status    ConversationStatus     `json:"status"`
	Cost      *CostBreakdown         `json:"cost,omitempty"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	EndedAt   *time.Time             `json:"ended_at,omitempty"`
}

// ConversationUpdate describes a partial mutation of a conversation.
// Nil fields are left untouched; Metadata is merged key by key.
type ConversationUpdate struct {
	Status   *ConversationStatus
	Cost     *CostBreakdown
	Metadata map[string]interface{}
	EndedAt  *time.Time
}

// Usage holds the metered resources consumed by one call
type Usage struct {
	SynthesisChars     int64   `json:"synthesisChars"`
	RecognitionSeconds float64 `json:"recognitionSeconds"`
	ModelTokens        int64   `json:"modelTokens"`
	PlatformMinutes    float64 `json:"platformMinutes"`
}

// CostBreakdown is the monetary cost of a call per metered dimension
type CostBreakdown struct {
	SynthesisCost   decimal.Decimal `json:"synthesisCost"`
	RecognitionCost decimal.Decimal `json:"recognitionCost"`
	ModelCost       decimal.Decimal `json:"modelCost"`
	PlatformCost    decimal.Decimal `json:"platformCost"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
}

// AnalyticsEvent is a single telemetry record
type AnalyticsEvent struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	CallID     string                 `json:"call_id,omitempty"`
	Outcome    string                 `json:"outcome,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Analytics event types shared across components
const (
	EventFunctionCacheHit     = "function_cache_hit"
	EventFunctionSuccess      = "function_success"
	EventFunctionFailure      = "function_failure"
	EventCustomerIdentified   = "customer_identified"
	EventCustomerNotFound     = "customer_not_found"
	EventCustomerLookupFailed = "customer_lookup_failed"
	EventCostAlert            = "cost_alert"
	EventCostTracked          = "cost_tracked"
	EventWebhookPrefix        = "webhook_"
)

// Product is a catalog entry
type Product struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	URL         string          `json:"url,omitempty"`
}

// Availability reports stock for one product
type Availability struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	InStock   bool   `json:"in_stock"`
	Quantity  int    `json:"quantity"`
}

// Order is a past purchase by a customer
type Order struct {
	ID           string          `json:"id"`
	Phone        string          `json:"phone"`
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total"`
	Status       string          `json:"status"`
	Items        string          `json:"items,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Customer is the aggregate of all orders placed from one phone number
type Customer struct {
	Phone         string          `json:"phone"`
	Name          string          `json:"name"`
	TotalOrders   int             `json:"total_orders"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	LastOrderDate *time.Time      `json:"last_order_date,omitempty"`
}

// CustomerProfile is the resolved identity of a caller
type CustomerProfile struct {
	NormalizedPhone   string          `json:"normalizedPhone"`
	Name              string          `json:"name"`
	TotalOrders       int             `json:"totalOrders"`
	TotalSpent        decimal.Decimal `json:"totalSpent"`
	LastOrderDate     *time.Time      `json:"lastOrderDate,omitempty"`
	PreferredLanguage string          `json:"preferredLanguage"`
	IsVIP             bool            `json:"isVip"`
	OrderHistory      []Order         `json:"orderHistory"`
}

// CustomerContext is the read-only view of a caller handed to function handlers
type CustomerContext struct {
	Name                string     `json:"name"`
	Phone               string     `json:"phone"`
	Language            string     `json:"language"`
	IsVIP               bool       `json:"isVip"`
	IsReturning         bool       `json:"isReturning"`
	CanSkipVerification bool       `json:"canSkipVerification"`
	TotalOrders         int        `json:"totalOrders"`
	LastOrderDate       *time.Time `json:"lastOrderDate,omitempty"`
	RecentOrderIDs      []string   `json:"recentOrderIds,omitempty"`
}

// CallContext travels with every function invocation
type CallContext struct {
	CallID       string
	CallerNumber string
	Language     string
	Customer     *CustomerContext
}

// Booking is a reservation made during a call
type Booking struct {
	ID        string    `json:"id"`
	CallID    string    `json:"call_id"`
	Phone     string    `json:"phone"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
