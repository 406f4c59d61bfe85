package cache

import (
	"context"
	"log/slog"
)

// StaticAnswer is a precomputed informational answer for one topic and language
type StaticAnswer struct {
	Topic    string
	Language string
	Value    interface{}
}

// Warmup loads static answers into both tiers under the warmup TTL so the most
// frequent informational queries are served even when the remote tier is down.
// It returns the number of answers written.
func (m *Manager) Warmup(ctx context.Context, answers []StaticAnswer) int {
	loaded := 0
	for _, answer := range answers {
		key := InfoKey(answer.Topic, answer.Language)
		if err := m.SetJSON(ctx, key, answer.Value, m.config.WarmupTTL); err != nil {
			m.logger.Warn("skipping warmup answer", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		loaded++
	}

	m.logger.Info("cache warmup complete", slog.Int("answers", loaded))
	return loaded
}
