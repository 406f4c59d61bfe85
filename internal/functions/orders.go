package functions

import (
	"context"
	"log/slog"

	"github.com/quantumflow/callengine/internal/customer"
	"github.com/quantumflow/callengine/internal/models"
	"github.com/quantumflow/callengine/internal/registry"
)

func (h *handlers) orderHistory(ctx context.Context, params map[string]interface{}, call *models.CallContext) (registry.Result, error) {
	if call == nil || call.Customer == nil {
		return registry.Result{
			"found":   false,
			"message": "I couldn't find any previous orders for this number.",
		}, nil
	}

	orders, err := h.deps.Store.GetCustomerOrderHistory(ctx, call.Customer.Phone, resultLimit)
	if err != nil {
		return nil, err
	}

	return registry.Result{
		"found":       len(orders) > 0,
		"name":        call.Customer.Name,
		"totalOrders": call.Customer.TotalOrders,
		"isVip":       call.Customer.IsVIP,
		"orders":      orders,
	}, nil
}

func (h *handlers) createBooking(ctx context.Context, params map[string]interface{}, call *models.CallContext) (registry.Result, error) {
	productID := stringParam(params, "product_id")
	date := stringParam(params, "date")
	if productID == "" || date == "" {
		return softError("I need the product and the date to make a booking."), nil
	}

	booking := &models.Booking{
		ProductID: productID,
		Date:      date,
		Name:      stringParam(params, "name"),
		Note:      stringParam(params, "note"),
	}
	if call != nil {
		booking.CallID = call.CallID
		booking.Phone = call.CallerNumber
		if canonical, err := customer.CanonicalPhone(call.CallerNumber, h.deps.CountryCode); err == nil {
			booking.Phone = canonical
		}
		if booking.Name == "" && call.Customer != nil {
			booking.Name = call.Customer.Name
		}
	}

	if err := h.deps.Store.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	if h.deps.Resolver != nil && booking.Phone != "" {
		if err := h.deps.Resolver.Invalidate(ctx, booking.Phone); err != nil {
			h.logger.Debug("profile not invalidated", slog.String("error", err.Error()))
		}
	}

	return registry.Result{
		"booked":     true,
		"booking_id": booking.ID,
		"product_id": booking.ProductID,
		"date":       booking.Date,
		"message":    "Your booking is confirmed for " + booking.Date + ".",
	}, nil
}
