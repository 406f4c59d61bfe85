package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/quantumflow/callengine/internal/models"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens the database at dbPath and creates the schema.
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if strings.HasPrefix(dbPath, "~/") {
			home, _ := os.UserHomeDir()
			dbPath = filepath.Join(home, dbPath[2:])
		}

		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, now: time.Now}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the tables used by the engine
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		call_id TEXT NOT NULL UNIQUE,
		phone TEXT,
		status TEXT NOT NULL,
		cost TEXT,
		total_cost TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		call_id TEXT,
		outcome TEXT,
		duration_ms INTEGER,
		metadata TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		sku TEXT,
		name TEXT NOT NULL,
		category TEXT,
		description TEXT,
		price TEXT NOT NULL DEFAULT '0',
		quantity INTEGER NOT NULL DEFAULT 0,
		url TEXT
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		phone TEXT NOT NULL,
		customer_name TEXT,
		total TEXT NOT NULL DEFAULT '0',
		status TEXT,
		items TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		call_id TEXT,
		phone TEXT,
		product_id TEXT,
		name TEXT,
		date TEXT,
		note TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON analytics_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_type ON analytics_events(type);
	CREATE INDEX IF NOT EXISTS idx_orders_phone ON orders(phone);
	CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateConversation inserts a conversation unless one exists for the call id
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.CallID == "" {
		return fmt.Errorf("conversation requires a call id")
	}
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Status == "" {
		conv.Status = models.ConversationActive
	}
	now := s.now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now

	metadata, err := marshalMetadata(conv.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, call_id, phone, status, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(call_id) DO NOTHING
	`, conv.ID, conv.CallID, conv.Phone, string(conv.Status), metadata, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetConversation returns the conversation of a call
func (s *SQLiteStore) GetConversation(ctx context.Context, callID string) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, call_id, phone, status, cost, metadata, created_at, updated_at, ended_at
		FROM conversations WHERE call_id = ?
	`, callID)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// UpdateConversation applies a partial update inside a transaction
func (s *SQLiteStore) UpdateConversation(ctx context.Context, callID string, update models.ConversationUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var metadataJSON string
	err = tx.QueryRowContext(ctx, `SELECT metadata FROM conversations WHERE call_id = ?`, callID).Scan(&metadataJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	sets := []string{"updated_at = ?"}
	args := []interface{}{s.now().UTC()}

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}

	if update.Cost != nil {
		costJSON, err := json.Marshal(update.Cost)
		if err != nil {
			return fmt.Errorf("failed to marshal cost: %w", err)
		}
		sets = append(sets, "cost = ?", "total_cost = ?")
		args = append(args, string(costJSON), update.Cost.Total.String())
	}

	if update.EndedAt != nil {
		sets = append(sets, "ended_at = ?")
		args = append(args, update.EndedAt.UTC())
	}

	if len(update.Metadata) > 0 {
		merged := map[string]interface{}{}
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &merged); err != nil {
				merged = map[string]interface{}{}
			}
		}
		for k, v := range update.Metadata {
			merged[k] = v
		}
		data, err := marshalMetadata(merged)
		if err != nil {
			return err
		}
		sets = append(sets, "metadata = ?")
		args = append(args, data)
	}

	args = append(args, callID)
	query := "UPDATE conversations SET " + strings.Join(sets, ", ") + " WHERE call_id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	return tx.Commit()
}

// ListConversations returns conversations created in [since, until)
func (s *SQLiteStore) ListConversations(ctx context.Context, since, until time.Time) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, call_id, phone, status, cost, metadata, created_at, updated_at, ended_at
		FROM conversations
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at ASC
	`, since.UTC(), until.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// TrackEvent records an analytics event
func (s *SQLiteStore) TrackEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	metadata, err := marshalMetadata(event.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analytics_events (id, type, call_id, outcome, duration_ms, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Type, event.CallID, event.Outcome, event.DurationMs, metadata, event.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to track event: %w", err)
	}
	return nil
}

// CountEvents counts analytics events per type since a point in time
func (s *SQLiteStore) CountEvents(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM analytics_events
		WHERE timestamp >= ?
		GROUP BY type
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}

// SearchProducts matches every query word against name, sku, category and description
func (s *SQLiteStore) SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error) {
	words := strings.Fields(query)
	if len(words) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	sqlQuery := "SELECT id, sku, name, category, description, price, quantity, url FROM products WHERE 1=1"
	args := []interface{}{}
	for _, word := range words {
		pattern := "%" + escapeLike(word) + "%"
		sqlQuery += ` AND (name LIKE ? ESCAPE '\' OR sku LIKE ? ESCAPE '\' OR category LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern, pattern, pattern)
	}
	sqlQuery += " ORDER BY quantity > 0 DESC, name ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		var sku, category, description, url sql.NullString
		if err := rows.Scan(&p.ID, &sku, &p.Name, &category, &description, &p.Price, &p.Quantity, &url); err != nil {
			return nil, err
		}
		p.SKU, p.Category, p.Description, p.URL = sku.String, category.String, description.String, url.String
		products = append(products, p)
	}
	return products, rows.Err()
}

// CheckAvailability returns stock information for a product id or sku
func (s *SQLiteStore) CheckAvailability(ctx context.Context, productID string) (*models.Availability, error) {
	var availability models.Availability
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, quantity FROM products WHERE id = ? OR sku = ? LIMIT 1
	`, productID, productID).Scan(&availability.ProductID, &availability.Name, &availability.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	availability.InStock = availability.Quantity > 0
	return &availability, nil
}

// GetCustomerByPhone aggregates all orders of a canonical phone number
func (s *SQLiteStore) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_name, total, created_at FROM orders
		WHERE phone = ?
		ORDER BY created_at DESC
	`, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	customer := &models.Customer{Phone: phone, TotalSpent: decimal.Zero}
	for rows.Next() {
		var name sql.NullString
		var total decimal.Decimal
		var createdAt time.Time
		if err := rows.Scan(&name, &total, &createdAt); err != nil {
			return nil, err
		}

		if customer.TotalOrders == 0 {
			last := createdAt
			customer.LastOrderDate = &last
		}
		if customer.Name == "" && name.String != "" {
			customer.Name = name.String
		}
		customer.TotalOrders++
		customer.TotalSpent = customer.TotalSpent.Add(total)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if customer.TotalOrders == 0 {
		return nil, ErrNotFound
	}
	return customer, nil
}

// GetCustomerOrderHistory returns the most recent orders of a canonical phone number
func (s *SQLiteStore) GetCustomerOrderHistory(ctx context.Context, phone string, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, customer_name, total, status, items, created_at FROM orders
		WHERE phone = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query order history: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var name, status, items sql.NullString
		if err := rows.Scan(&o.ID, &o.Phone, &name, &o.Total, &status, &items, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.CustomerName, o.Status, o.Items = name.String, status.String, items.String
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CreateOrder records an order
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, phone, customer_name, total, status, items, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, order.ID, order.Phone, order.CustomerName, order.Total.String(), order.Status, order.Items, order.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpsertProduct inserts or replaces a catalog entry
func (s *SQLiteStore) UpsertProduct(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, category, description, price, quantity, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sku = excluded.sku, name = excluded.name, category = excluded.category,
			description = excluded.description, price = excluded.price,
			quantity = excluded.quantity, url = excluded.url
	`, product.ID, product.SKU, product.Name, product.Category, product.Description,
		product.Price.String(), product.Quantity, product.URL)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

// CreateBooking records a reservation
func (s *SQLiteStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, call_id, phone, product_id, name, date, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, booking.ID, booking.CallID, booking.Phone, booking.ProductID, booking.Name,
		booking.Date, booking.Note, booking.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var conv models.Conversation
	var phone, costJSON sql.NullString
	var status, metadataJSON string
	var endedAt sql.NullTime

	if err := row.Scan(&conv.ID, &conv.CallID, &phone, &status, &costJSON, &metadataJSON,
		&conv.CreatedAt, &conv.UpdatedAt, &endedAt); err != nil {
		return nil, err
	}

	conv.Phone = phone.String
	conv.Status = models.ConversationStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		conv.EndedAt = &t
	}

	if costJSON.Valid && costJSON.String != "" {
		var cost models.CostBreakdown
		if err := json.Unmarshal([]byte(costJSON.String), &cost); err == nil {
			conv.Cost = &cost
		}
	}

	conv.Metadata = map[string]interface{}{}
	if metadataJSON != "" {
		_ = json.Unmarshal([]byte(metadataJSON), &conv.Metadata)
	}

	return &conv, nil
}

func marshalMetadata(metadata map[string]interface{}) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(data), nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
