package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sokohub/sokohub-backend/api/responses"
	"github.com/sokohub/sokohub-backend/api/validators"
	"github.com/sokohub/sokohub-backend/internal/orders"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
)

func parseOrderListParams(r *http.Request) (orders.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return orders.ListParams{}, err
	}
	params := orders.ListParams{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return orders.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"field": "status"})
		}
		params.Status = &status
	}
	return params, nil
}

// CustomerOrderList lists the caller's orders, newest first.
func CustomerOrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderList(svc, logg, orders.Service.ListForCustomer)
}

// VendorOrderList lists orders placed with the calling vendor.
func VendorOrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderList(svc, logg, orders.Service.ListForVendor)
}

func orderList(svc orders.Service, logg *logger.Logger, list func(orders.Service, context.Context, uuid.UUID, orders.ListParams) (*orders.OrderList, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "orders")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}
		params, err := parseOrderListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := list(svc, r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// OrderDetail serves both the customer and vendor views; ownership is
// enforced by the service using the caller's role.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "orders")
			return
		}
		actor, ok := callerActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func OrderReceipt(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "orders")
			return
		}
		actor, ok := callerActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.Receipt(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}

func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "orders")
			return
		}
		actor, ok := callerActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type orderTransition func(svc orders.Service, ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error)

// OrderPay settles a pending order for the customer.
func OrderPay(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, orders.Service.Pay)
}

func VendorOrderApprove(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, orders.Service.Approve)
}

func VendorOrderShip(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, orders.Service.Ship)
}

func VendorOrderDeliver(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, orders.Service.Deliver)
}

func transition(svc orders.Service, logg *logger.Logger, apply orderTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "orders")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := apply(svc, r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
