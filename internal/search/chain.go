package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quantumflow/callengine/internal/logging"
)

// ErrExhausted is returned when no strategy produced a result
var ErrExhausted = errors.New("search: all strategies exhausted")

// Strategy is one tier of a fallback chain. Resolve reports ok=false when the
// tier has nothing for the query; an error means the tier itself failed.
type Strategy[T any] interface {
	Name() string
	Resolve(ctx context.Context, query string) (T, bool, error)
}

type strategyFunc[T any] struct {
	name string
	fn   func(ctx context.Context, query string) (T, bool, error)
}

func (s strategyFunc[T]) Name() string { return s.name }

func (s strategyFunc[T]) Resolve(ctx context.Context, query string) (T, bool, error) {
	return s.fn(ctx, query)
}

// NewStrategy adapts a function into a named Strategy
func NewStrategy[T any](name string, fn func(ctx context.Context, query string) (T, bool, error)) Strategy[T] {
	return strategyFunc[T]{name: name, fn: fn}
}

// Chain tries its strategies in order and stops at the first one that yields a result
type Chain[T any] struct {
	strategies []Strategy[T]
	logger     *slog.Logger
}

// NewChain creates a fallback chain over the given strategies
func NewChain[T any](logger *slog.Logger, strategies ...Strategy[T]) *Chain[T] {
	return &Chain[T]{
		strategies: strategies,
		logger:     logging.OrDiscard(logger),
	}
}

// Resolve returns the first result and the name of the tier that produced it.
// Tier errors are logged and the next tier is tried.
func (c *Chain[T]) Resolve(ctx context.Context, query string) (T, string, error) {
	var zero T
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		value, ok, err := s.Resolve(ctx, query)
		if err != nil {
			c.logger.Warn("fallback tier failed",
				slog.String("tier", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			return value, s.Name(), nil
		}
	}
	return zero, "", ErrExhausted
}
