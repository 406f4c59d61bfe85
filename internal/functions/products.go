package functions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quantumflow/callengine/internal/cache"
	"github.com/quantumflow/callengine/internal/datastore"
	"github.com/quantumflow/callengine/internal/models"
	"github.com/quantumflow/callengine/internal/registry"
	"github.com/quantumflow/callengine/internal/search"
)

var noResultsMessages = map[string]string{
	"en": "I couldn't find that product in our catalog. Would you like me to connect you with a colleague?",
	"el": "Δεν βρήκα αυτό το προϊόν στον κατάλογό μας. Θέλετε να σας συνδέσω με έναν συνάδελφο;",
	"ru": "Я не нашёл этот товар в нашем каталоге. Соединить вас с коллегой?",
}

func (h *handlers) searchProducts(ctx context.Context, params map[string]interface{}, call *models.CallContext) (registry.Result, error) {
	query := stringParam(params, "query")
	if query == "" {
		return softError("Which product are you looking for?"), nil
	}
	lang := callLanguage(params, call)

	chain := search.NewChain[registry.Result](h.logger,
		search.NewStrategy("datastore", h.searchDatastore),
		search.NewStrategy("live", h.searchLive),
		search.NewStrategy("static", func(ctx context.Context, query string) (registry.Result, bool, error) {
			message, ok := noResultsMessages[lang]
			if !ok {
				message = noResultsMessages["en"]
			}
			return registry.Result{"found": false, "message": message}, true, nil
		}),
	)

	result, source, err := chain.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	result["source"] = source
	return result, nil
}

func (h *handlers) searchDatastore(ctx context.Context, query string) (registry.Result, bool, error) {
	products, err := h.deps.Store.SearchProducts(ctx, query, resultLimit)
	if err != nil || len(products) == 0 {
		return nil, false, err
	}
	return registry.Result{"found": true, "products": products}, true, nil
}

func (h *handlers) searchLive(ctx context.Context, query string) (registry.Result, bool, error) {
	if h.deps.Search == nil {
		return nil, false, nil
	}

	key := cache.ProductQueryKey(query)
	if h.deps.Cache != nil {
		var cached []search.Candidate
		if h.deps.Cache.GetJSON(ctx, key, &cached) && len(cached) > 0 {
			return registry.Result{"found": true, "products": cached}, true, nil
		}
	}

	candidates, err := h.deps.Search.Query(ctx, query, resultLimit)
	if err != nil {
		return nil, false, fmt.Errorf("live search: %w", err)
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}

	if h.deps.Cache != nil {
		if err := h.deps.Cache.SetJSON(ctx, key, candidates, liveSearchTTL); err != nil {
			h.logger.Warn("failed to cache live search", slog.String("error", err.Error()))
		}
	}
	return registry.Result{"found": true, "products": candidates}, true, nil
}

func (h *handlers) checkAvailability(ctx context.Context, params map[string]interface{}, call *models.CallContext) (registry.Result, error) {
	productID := stringParam(params, "product_id")
	if productID == "" {
		return softError("Which product would you like me to check?"), nil
	}

	availability, err := h.deps.Store.CheckAvailability(ctx, productID)
	if errors.Is(err, datastore.ErrNotFound) {
		return registry.Result{"found": false, "message": "I couldn't find that product."}, nil
	}
	if err != nil {
		return nil, err
	}

	return registry.Result{
		"found":      true,
		"product_id": availability.ProductID,
		"name":       availability.Name,
		"in_stock":   availability.InStock,
		"quantity":   availability.Quantity,
	}, nil
}
