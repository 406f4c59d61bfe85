package functions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumflow/callengine/internal/cache"
	"github.com/quantumflow/callengine/internal/customer"
	"github.com/quantumflow/callengine/internal/datastore"
	"github.com/quantumflow/callengine/internal/models"
	"github.com/quantumflow/callengine/internal/registry"
	"github.com/quantumflow/callengine/internal/search"
)

var testBusiness = BusinessInfo{
	Name:    "Tool House",
	Address: "12 Ledras Street, Nicosia",
	Phone:   "+35722123456",
	Hours:   "09:00-19:00",
	Days:    "Mon-Sat",
}

type fixture struct {
	reg   *registry.Registry
	store *datastore.SQLiteStore
	cache *cache.Manager
}

func newFixture(t *testing.T, searchClient *search.Client) *fixture {
	t.Helper()
	store, err := datastore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	manager, err := cache.NewManager(nil, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	reg := registry.New(manager, store, nil)
	require.NoError(t, Register(reg, Deps{
		Store:       store,
		Cache:       manager,
		Search:      searchClient,
		Resolver:    customer.NewResolver(nil, store, manager, nil),
		Business:    testBusiness,
		CountryCode: "357",
	}))

	return &fixture{reg: reg, store: store, cache: manager}
}

func TestRegisterInstallsAllFunctions(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, []string{CheckAvailability, CreateBooking, GetBusinessInfo, GetOrderHistory, SearchProducts}, f.reg.List())

	booking, _ := f.reg.Get(CreateBooking)
	assert.False(t, booking.Cacheable)

	info, _ := f.reg.Get(GetBusinessInfo)
	assert.Equal(t, 24*time.Hour, info.TTL)

	history, _ := f.reg.Get(GetOrderHistory)
	assert.True(t, history.PerCaller)
}

func TestBusinessInfoServesWarmedAnswers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	loaded := f.cache.Warmup(ctx, StaticAnswers(testBusiness))
	assert.Equal(t, len(Topics)*3, loaded)

	result := f.reg.Execute(ctx, GetBusinessInfo, map[string]interface{}{"topic": "hours", "language": "el"}, nil)
	assert.Equal(t, "Το Tool House είναι ανοιχτό Mon-Sat, 09:00-19:00.", result["answer"])

	result = f.reg.Execute(ctx, GetBusinessInfo, map[string]interface{}{"topic": "address"}, &models.CallContext{Language: "en"})
	assert.Equal(t, "You can find Tool House at 12 Ledras Street, Nicosia.", result["answer"])
}

func TestBusinessInfoWithoutWarmup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result := f.reg.Execute(ctx, GetBusinessInfo, map[string]interface{}{"topic": "phone", "language": "ru"}, nil)
	assert.Equal(t, "Наш телефон: +35722123456.", result["answer"])

	result = f.reg.Execute(ctx, GetBusinessInfo, map[string]interface{}{"topic": "parking"}, nil)
	assert.True(t, result.IsError())
}

func TestSearchProductsFromDatastore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.UpsertProduct(ctx, &models.Product{
		ID: "p1", Name: "Bosch Cordless Drill", Price: decimal.NewFromInt(129), Quantity: 2,
	}))

	result := f.reg.Execute(ctx, SearchProducts, map[string]interface{}{"query": "drill"}, nil)
	assert.Equal(t, "datastore", result["source"])
	assert.Equal(t, true, result["found"])
}

func TestSearchProductsFallsBackToLiveSearch(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []search.Candidate{{Title: "Laser Level X2", URL: "https://example.com/x2", Score: 0.8}},
		})
	}))
	defer server.Close()

	f := newFixture(t, search.NewClient(&search.Config{URL: server.URL, RPS: 100, Burst: 10, Timeout: time.Second}))
	ctx := context.Background()

	result := f.reg.Execute(ctx, SearchProducts, map[string]interface{}{"query": "laser level"}, nil)
	assert.Equal(t, "live", result["source"])

	// a differently spelled query misses the function cache but shares the product query key
	result = f.reg.Execute(ctx, SearchProducts, map[string]interface{}{"query": "Laser  Level!"}, nil)
	assert.Equal(t, "live", result["source"])
	assert.Equal(t, int64(1), hits.Load())
}

func TestSearchProductsFallsBackToStaticMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := newFixture(t, search.NewClient(&search.Config{URL: server.URL, RPS: 100, Burst: 10, Timeout: time.Second}))

	result := f.reg.Execute(context.Background(), SearchProducts,
		map[string]interface{}{"query": "unicorn saddle", "language": "el"}, nil)
	assert.Equal(t, "static", result["source"])
	assert.Equal(t, false, result["found"])
	assert.Contains(t, result["message"], "Δεν βρήκα")
	assert.False(t, result.IsError())
}

func TestSearchProductsRequiresQuery(t *testing.T) {
	f := newFixture(t, nil)
	result := f.reg.Execute(context.Background(), SearchProducts, map[string]interface{}{}, nil)
	assert.True(t, result.IsError())
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.UpsertProduct(ctx, &models.Product{ID: "p1", SKU: "HOSE-20", Name: "Garden Hose", Quantity: 4}))

	result := f.reg.Execute(ctx, CheckAvailability, map[string]interface{}{"product_id": "HOSE-20"}, nil)
	assert.Equal(t, true, result["found"])
	assert.Equal(t, true, result["in_stock"])

	result = f.reg.Execute(ctx, CheckAvailability, map[string]interface{}{"product_id": "nope"}, nil)
	assert.Equal(t, false, result["found"])
}

func TestGetOrderHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.CreateOrder(ctx, &models.Order{Phone: "+35799123456", CustomerName: "John", Total: decimal.NewFromInt(40)}))

	anonymous := f.reg.Execute(ctx, GetOrderHistory, nil, &models.CallContext{CallerNumber: "+35799000000"})
	assert.Equal(t, false, anonymous["found"])

	known := &models.CallContext{
		CallerNumber: "+35799123456",
		Customer:     &models.CustomerContext{Name: "John", Phone: "+35799123456", TotalOrders: 1},
	}
	result := f.reg.Execute(ctx, GetOrderHistory, nil, known)
	assert.Equal(t, true, result["found"])
	assert.Equal(t, "John", result["name"])
}

func TestCreateBookingIsNeverCached(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	call := &models.CallContext{CallID: "call-1", CallerNumber: "99123456"}
	params := map[string]interface{}{"product_id": "p1", "date": "2026-10-20", "name": "John"}

	first := f.reg.Execute(ctx, CreateBooking, params, call)
	second := f.reg.Execute(ctx, CreateBooking, params, call)

	assert.Equal(t, true, first["booked"])
	assert.Equal(t, true, second["booked"])
	assert.NotEqual(t, first["booking_id"], second["booking_id"])

	missing := f.reg.Execute(ctx, CreateBooking, map[string]interface{}{"product_id": "p1"}, call)
	assert.True(t, missing.IsError())
}
