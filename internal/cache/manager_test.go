package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is a RemoteStore backed by a map
type memoryStore struct {
	mu    sync.Mutex
	items map[string][]byte
	gets  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[string][]byte)}
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	v, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *memoryStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *memoryStore) Close() error { return nil }

// failingStore fails every operation
type failingStore struct{}

var errDown = errors.New("connection refused")

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, errDown }
func (failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errDown
}
func (failingStore) Del(ctx context.Context, key string) error { return errDown }
func (failingStore) Close() error                              { return nil }

func newTestManager(t *testing.T, remote RemoteStore) *Manager {
	t.Helper()
	m, err := NewManager(DefaultConfig(), remote, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerLocalHit(t *testing.T) {
	remote := newMemoryStore()
	m := newTestManager(t, remote)
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), time.Minute)

	value, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)
	assert.Equal(t, 0, remote.gets)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.LocalHits)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestManagerRemoteHitWritesBack(t *testing.T) {
	remote := newMemoryStore()
	remote.items["k"] = []byte("remote")
	m := newTestManager(t, remote)
	ctx := context.Background()

	value, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("remote"), value)

	// Second lookup is served locally.
	_, ok = m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 1, remote.gets)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.RemoteHits)
	assert.Equal(t, int64(1), stats.LocalHits)
}

func TestManagerMiss(t *testing.T) {
	m := newTestManager(t, newMemoryStore())

	_, ok := m.Get(context.Background(), "absent")
	assert.False(t, ok)
	assert.Equal(t, int64(1), m.Stats().Misses)
	assert.Zero(t, m.Stats().RemoteErrors)
}

func TestManagerZeroTTLNeverCaches(t *testing.T) {
	remote := newMemoryStore()
	m := newTestManager(t, remote)
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), 0)

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Empty(t, remote.items)
}

func TestManagerDelRemovesBothTiers(t *testing.T) {
	remote := newMemoryStore()
	m := newTestManager(t, remote)
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), time.Minute)
	m.Del(ctx, "k")

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
	assert.NotContains(t, remote.items, "k")
}

func TestManagerDegradesToLocalWhenRemoteFails(t *testing.T) {
	m := newTestManager(t, failingStore{})
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.Set(ctx, "k", []byte("v"), time.Minute)
	})

	value, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	_, ok = m.Get(ctx, "other")
	assert.False(t, ok)

	m.Del(ctx, "k")

	stats := m.Stats()
	assert.Equal(t, int64(3), stats.RemoteErrors) // set, get(other), del
	assert.Equal(t, int64(1), stats.LocalHits)
}

func TestManagerLocalOnly(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "none", m.Stats().RemoteTier)
}

func TestManagerJSONHelpers(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, m.SetJSON(ctx, "p", payload{Name: "drill", Count: 3}, time.Minute))

	var got payload
	require.True(t, m.GetJSON(ctx, "p", &got))
	assert.Equal(t, payload{Name: "drill", Count: 3}, got)

	m.Set(ctx, "broken", []byte("{not json"), time.Minute)
	assert.False(t, m.GetJSON(ctx, "broken", &got))
}

func TestManagerHitRate(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), time.Minute)
	m.Get(ctx, "k")
	m.Get(ctx, "k")
	m.Get(ctx, "x")
	m.Get(ctx, "y")

	assert.InDelta(t, 0.5, m.Stats().HitRate, 1e-9)
}

func TestManagerWarmup(t *testing.T) {
	remote := newMemoryStore()
	m := newTestManager(t, remote)
	ctx := context.Background()

	n := m.Warmup(ctx, []StaticAnswer{
		{Topic: "hours", Language: "en", Value: map[string]string{"message": "Open 9-19"}},
		{Topic: "hours", Language: "el", Value: map[string]string{"message": "Ανοιχτά 9-19"}},
		{Topic: "bad", Language: "en", Value: make(chan int)},
	})
	assert.Equal(t, 2, n)

	var got map[string]string
	require.True(t, m.GetJSON(ctx, InfoKey("hours", "el"), &got))
	assert.Equal(t, "Ανοιχτά 9-19", got["message"])
	assert.Contains(t, remote.items, InfoKey("hours", "en"))
}

func TestManagerWarmupSurvivesRemoteOutage(t *testing.T) {
	m := newTestManager(t, failingStore{})
	ctx := context.Background()

	n := m.Warmup(ctx, []StaticAnswer{{Topic: "phone", Language: "en", Value: "+35722000000"}})
	assert.Equal(t, 1, n)

	var got string
	require.True(t, m.GetJSON(ctx, InfoKey("phone", "en"), &got))
	assert.Equal(t, "+35722000000", got)
}

func TestNewManagerRejectsBadSize(t *testing.T) {
	_, err := NewManager(&Config{LocalSize: 0}, nil, nil)
	assert.Error(t, err)
}
