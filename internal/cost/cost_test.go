package cost

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumflow/callengine/internal/datastore"
	"github.com/quantumflow/callengine/internal/events"
	"github.com/quantumflow/callengine/internal/models"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	msgs []events.Envelope
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, msg events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestService(t *testing.T) (*Service, *datastore.SQLiteStore, *recordingPublisher) {
	t.Helper()
	store, err := datastore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pub := &recordingPublisher{}
	return NewService(nil, store, pub, nil), store, pub
}

func TestCalculateCostReferenceUsage(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)
	breakdown := svc.CalculateCost(models.Usage{
		SynthesisChars:     1000,
		RecognitionSeconds: 60,
		ModelTokens:        2000,
		PlatformMinutes:    1,
	})

	assert.True(t, breakdown.SynthesisCost.Equal(decimal.RequireFromString("0.018")))
	assert.True(t, breakdown.RecognitionCost.Equal(decimal.RequireFromString("0.006")))
	assert.True(t, breakdown.ModelCost.Equal(decimal.RequireFromString("0.004")))
	assert.True(t, breakdown.PlatformCost.Equal(decimal.RequireFromString("0.05")))
	assert.True(t, breakdown.Total.Equal(decimal.RequireFromString("0.078")), breakdown.Total.String())
	assert.Equal(t, "0.078", breakdown.Total.StringFixed(3))
	assert.Equal(t, "EUR", breakdown.Currency)
}

func TestCalculateCostIsDeterministic(t *testing.T) {
	usage := models.Usage{SynthesisChars: 12345, RecognitionSeconds: 97.5, ModelTokens: 31337, PlatformMinutes: 1.75}
	first := Calculate(usage, DefaultRates(), "EUR")
	for i := 0; i < 10; i++ {
		assert.True(t, first.Total.Equal(Calculate(usage, DefaultRates(), "EUR").Total))
	}
}

func TestTrackCallCostBelowThreshold(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.CreateConversation(ctx, &models.Conversation{CallID: "call-1"}))

	breakdown, err := svc.TrackCallCost(ctx, "call-1", models.Usage{SynthesisChars: 1000, RecognitionSeconds: 60, ModelTokens: 2000, PlatformMinutes: 1})
	require.NoError(t, err)
	assert.True(t, breakdown.Total.Equal(decimal.RequireFromString("0.078")))

	conv, err := store.GetConversation(ctx, "call-1")
	require.NoError(t, err)
	require.NotNil(t, conv.Cost)
	assert.True(t, conv.Cost.Total.Equal(breakdown.Total))
	assert.Empty(t, pub.keys)
}

func TestTrackCallCostRaisesAlert(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.CreateConversation(ctx, &models.Conversation{CallID: "call-2"}))

	_, err := svc.TrackCallCost(ctx, "call-2", models.Usage{PlatformMinutes: 20})
	require.NoError(t, err)

	require.Len(t, pub.keys, 1)
	assert.Equal(t, AlertRoutingKey, pub.keys[0])
	assert.Equal(t, "call-2", pub.msgs[0].Meta.CorrelationID)
	assert.Equal(t, int64(1), svc.Stats().AlertsRaised)

	counts, err := store.CountEvents(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.EventCostAlert])
	assert.Equal(t, 1, counts[models.EventCostTracked])
}

func TestTrackCallCostUnknownConversation(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.TrackCallCost(context.Background(), "missing", models.Usage{})
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestOptimizeResponse(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)

	in := "I would be happy to help you with that.  Thank you very much for your patience!!"
	out := svc.OptimizeResponse(in, "en")
	assert.Equal(t, "Sure. Thanks for waiting!", out)

	assert.Equal(t, "Μια στιγμή.", Optimize("Παρακαλώ περιμένετε μια στιγμή .", "el"))
	assert.Equal(t, "Спасибо!", Optimize("большое спасибо за ваше терпение!", "ru"))
	assert.Equal(t, "One moment", Optimize("please hold on for a moment while I check", "de"))

	unchanged := svc.OptimizeResponse("Open 9 to 7.", "en")
	assert.Equal(t, "Open 9 to 7.", unchanged)

	stats := svc.Stats()
	assert.Equal(t, int64(1), stats.Optimizations)
	assert.Equal(t, int64(len(in)-len(out)), stats.BytesSaved)
}

func TestOptimizeMatchesWholeWordsOnly(t *testing.T) {
	assert.Equal(t, "Your bin order total is ready.", Optimize("Your bin order total is ready.", "en"))
	assert.Equal(t, "We keep everything in order today.", Optimize("We keep everything in order today.", "en"))
	assert.Equal(t, "Call us to book, or to cancel.", Optimize("Call us in order to book, or in order to cancel.", "en"))
	assert.Equal(t, "Παρακαλώ περιμένετε μια στιγμήν", Optimize("Παρακαλώ περιμένετε μια στιγμήν", "el"))
	assert.Equal(t, "Конечно, и всё.", Optimize("Я буду рад помочь вам с этим, и всё.", "ru"))
}

func TestOptimizeKeepsSentenceCapital(t *testing.T) {
	assert.Equal(t, "To book, call us.", Optimize("In order to book, call us.", "en"))
	assert.Equal(t, "Done. To book, call us.", Optimize("Done. In order to book, call us.", "en"))
	assert.Equal(t, "We call to confirm.", Optimize("We call in order to confirm.", "en"))
}

func TestDailyCostReport(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	for _, call := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateConversation(ctx, &models.Conversation{CallID: call}))
	}
	_, err := svc.TrackCallCost(ctx, "a", models.Usage{SynthesisChars: 1000, RecognitionSeconds: 60, ModelTokens: 2000, PlatformMinutes: 1})
	require.NoError(t, err)
	_, err = svc.TrackCallCost(ctx, "b", models.Usage{PlatformMinutes: 20})
	require.NoError(t, err)

	report, err := svc.DailyCostReport(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Calls)
	assert.Equal(t, 2, report.CostedCalls)
	assert.True(t, report.Total.Equal(decimal.RequireFromString("1.078")), report.Total.String())
	assert.True(t, report.Max.Equal(decimal.NewFromInt(1)))
	assert.True(t, report.Average.Equal(decimal.RequireFromString("0.539")))
	assert.Equal(t, 1, report.OverThreshold)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), report.Date)

	empty, err := svc.DailyCostReport(ctx, time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, empty.Calls)
	assert.True(t, empty.Total.IsZero())
}

func TestOptimizationSuggestions(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.TrackEvent(ctx, &models.AnalyticsEvent{Type: models.EventFunctionCacheHit}))
	for i := 0; i < 3; i++ {
		require.NoError(t, store.TrackEvent(ctx, &models.AnalyticsEvent{Type: models.EventFunctionSuccess}))
	}
	require.NoError(t, store.CreateConversation(ctx, &models.Conversation{CallID: "x"}))
	_, err := svc.TrackCallCost(ctx, "x", models.Usage{SynthesisChars: 50000})
	require.NoError(t, err)

	suggestions, err := svc.OptimizationSuggestions(ctx)
	require.NoError(t, err)

	types := map[string]Suggestion{}
	for _, s := range suggestions {
		types[s.Type] = s
	}
	require.Contains(t, types, "cache_hit_rate")
	assert.InDelta(t, 0.25, types["cache_hit_rate"].Metric, 1e-9)
	assert.Contains(t, types, "cost_threshold")
	assert.Contains(t, types, "synthesis_share")
	assert.NotContains(t, types, "function_failures")
}

func TestOptimizationSuggestionsHealthy(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, store.TrackEvent(ctx, &models.AnalyticsEvent{Type: models.EventFunctionCacheHit}))
	}
	require.NoError(t, store.TrackEvent(ctx, &models.AnalyticsEvent{Type: models.EventFunctionSuccess}))

	suggestions, err := svc.OptimizationSuggestions(ctx)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}
