package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a RemoteStore when the key is absent or expired
var ErrNotFound = errors.New("cache: key not found")

// RemoteStore is the shared second cache tier (Redis or embedded Badger)
type RemoteStore interface {
	// Get returns the stored bytes or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes key
	Del(ctx context.Context, key string) error

	// Close releases the underlying connection
	Close() error
}

// Config holds cache manager configuration
type Config struct {
	// Local tier capacity in entries
	LocalSize int64

	// Default TTL of the local tier when none is given
	LocalTTL time.Duration

	// TTL used for warmup answers
	WarmupTTL time.Duration

	// Timeout applied to each remote operation
	RemoteTimeout time.Duration
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		LocalSize:     500,
		LocalTTL:      5 * time.Minute,
		WarmupTTL:     24 * time.Hour,
		RemoteTimeout: 500 * time.Millisecond,
	}
}

// Stats contains cache manager statistics
type Stats struct {
	LocalHits    int64   `json:"localHits"`
	RemoteHits   int64   `json:"remoteHits"`
	Misses       int64   `json:"misses"`
	Sets         int64   `json:"sets"`
	Deletes      int64   `json:"deletes"`
	RemoteErrors int64   `json:"remoteErrors"`
	HitRate      float64 `json:"hitRate"`
	RemoteTier   string  `json:"remoteTier"`

	// RemoteEntries is -1 when the remote tier cannot report its size
	RemoteEntries int64 `json:"remoteEntries"`
}

// EntryCounter is implemented by remote tiers that can count their keys
type EntryCounter interface {
	Count(ctx context.Context, prefix string) (int64, error)
}
