package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/quantumflow/callengine/internal/logging"
)

// Manager is a two-tier read-through/write-through cache. The local tier is a
// bounded in-process cache; the remote tier is optional and every failure in it
// degrades the manager to local-only caching without surfacing an error.
type Manager struct {
	local  *ristretto.Cache[string, []byte]
	remote RemoteStore
	config *Config
	logger *slog.Logger

	localHits    atomic.Int64
	remoteHits   atomic.Int64
	misses       atomic.Int64
	sets         atomic.Int64
	deletes      atomic.Int64
	remoteErrors atomic.Int64
}

// NewManager creates a cache manager. remote may be nil for local-only caching.
func NewManager(config *Config, remote RemoteStore, logger *slog.Logger) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.LocalSize <= 0 {
		return nil, fmt.Errorf("local cache size must be positive, got %d", config.LocalSize)
	}

	// Every entry costs 1, so MaxCost is the entry capacity.
	local, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        config.LocalSize * 10,
		MaxCost:            config.LocalSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}

	return &Manager{
		local:  local,
		remote: remote,
		config: config,
		logger: logging.OrDiscard(logger).With(slog.String("component", "cache")),
	}, nil
}

// Get looks the key up in the local tier, then the remote tier. A remote hit is
// written back into the local tier.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := m.local.Get(key); ok {
		m.localHits.Add(1)
		return value, true
	}

	if m.remote != nil {
		rctx, cancel := m.remoteContext(ctx)
		value, err := m.remote.Get(rctx, key)
		cancel()

		switch {
		case err == nil:
			m.remoteHits.Add(1)
			m.setLocal(key, value, m.config.LocalTTL)
			return value, true
		case !errors.Is(err, ErrNotFound):
			m.remoteFailure("get", key, err)
		}
	}

	m.misses.Add(1)
	return nil, false
}

// Set writes value to both tiers. ttl <= 0 means "never cache" and is a no-op.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	m.setLocal(key, value, ttl)
	m.sets.Add(1)

	if m.remote == nil {
		return
	}

	rctx, cancel := m.remoteContext(ctx)
	defer cancel()
	if err := m.remote.Set(rctx, key, value, ttl); err != nil {
		m.remoteFailure("set", key, err)
	}
}

// Del removes key from both tiers
func (m *Manager) Del(ctx context.Context, key string) {
	m.local.Del(key)
	m.local.Wait()
	m.deletes.Add(1)

	if m.remote == nil {
		return
	}

	rctx, cancel := m.remoteContext(ctx)
	defer cancel()
	if err := m.remote.Del(rctx, key); err != nil {
		m.remoteFailure("del", key, err)
	}
}

// GetJSON decodes a cached JSON value into dest. A value that no longer decodes
// is treated as a miss.
func (m *Manager) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	data, ok := m.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		m.logger.Warn("dropping undecodable cache entry", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

// SetJSON encodes value as JSON and stores it
func (m *Manager) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	m.Set(ctx, key, data, ttl)
	return nil
}

// Stats returns a snapshot of cache statistics
func (m *Manager) Stats() Stats {
	stats := Stats{
		LocalHits:    m.localHits.Load(),
		RemoteHits:   m.remoteHits.Load(),
		Misses:       m.misses.Load(),
		Sets:         m.sets.Load(),
		Deletes:      m.deletes.Load(),
		RemoteErrors: m.remoteErrors.Load(),
		RemoteTier:   "none",
	}

	if m.remote != nil {
		stats.RemoteTier = fmt.Sprintf("%T", m.remote)
		stats.RemoteEntries = m.remoteEntries()
	}

	lookups := stats.LocalHits + stats.RemoteHits + stats.Misses
	if lookups > 0 {
		stats.HitRate = float64(stats.LocalHits+stats.RemoteHits) / float64(lookups)
	}
	return stats
}

// Close releases both tiers
func (m *Manager) Close() error {
	m.local.Close()
	if m.remote != nil {
		return m.remote.Close()
	}
	return nil
}

func (m *Manager) setLocal(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.config.LocalTTL
	}
	m.local.SetWithTTL(key, value, 1, ttl)
	// Make the write visible to the next Get.
	m.local.Wait()
}

func (m *Manager) remoteEntries() int64 {
	counter, ok := m.remote.(EntryCounter)
	if !ok {
		return -1
	}
	ctx, cancel := m.remoteContext(context.Background())
	defer cancel()

	n, err := counter.Count(ctx, "")
	if err != nil {
		m.remoteFailure("count", "*", err)
		return -1
	}
	return n
}

func (m *Manager) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.RemoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.config.RemoteTimeout)
}

func (m *Manager) remoteFailure(op, key string, err error) {
	m.remoteErrors.Add(1)
	m.logger.Warn("remote cache unavailable, using local tier only",
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}
