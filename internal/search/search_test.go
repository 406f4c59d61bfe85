package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientInitialization(t *testing.T) {
	client := NewClient(nil)
	require.NotNil(t, client)
	assert.Equal(t, float64(2), client.config.RPS)

	client = NewClient(&Config{URL: "http://search", RPS: 10, Burst: 20})
	assert.Equal(t, 20, client.limiter.Burst())
}

func TestQueryRanksAndLimits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cordless drill", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []Candidate{
				{Title: "low", Score: 0.1},
				{Title: "high", Score: 0.9},
				{Title: "mid", Score: 0.5},
			},
		})
	}))
	defer server.Close()

	client := NewClient(&Config{URL: server.URL, APIKey: "secret", RPS: 100, Burst: 10})
	results, err := client.Query(context.Background(), "cordless drill", 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].Title)
	assert.Equal(t, "mid", results[1].Title)
}

func TestQueryUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(&Config{URL: server.URL, RPS: 100, Burst: 10})
	_, err := client.Query(context.Background(), "drill", 5)
	assert.Error(t, err)
}

func TestQueryWithoutEndpoint(t *testing.T) {
	_, err := NewClient(nil).Query(context.Background(), "drill", 5)
	assert.Error(t, err)
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	var calls []string
	tier := func(name string, ok bool, err error) Strategy[string] {
		return NewStrategy(name, func(ctx context.Context, query string) (string, bool, error) {
			calls = append(calls, name)
			if err != nil || !ok {
				return "", false, err
			}
			return name + ":" + query, true, nil
		})
	}

	chain := NewChain[string](nil,
		tier("datastore", false, nil),
		tier("live", false, errors.New("timeout")),
		tier("static", true, nil),
		tier("never", true, nil),
	)

	value, source, err := chain.Resolve(context.Background(), "drill")
	require.NoError(t, err)
	assert.Equal(t, "static:drill", value)
	assert.Equal(t, "static", source)
	assert.Equal(t, []string{"datastore", "live", "static"}, calls)
}

func TestChainExhausted(t *testing.T) {
	chain := NewChain[int](nil, NewStrategy("empty", func(ctx context.Context, query string) (int, bool, error) {
		return 0, false, nil
	}))

	_, _, err := chain.Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, ErrExhausted)
}
