package controllers

import (
	"net/http"

	"github.com/sokohub/sokohub-backend/api/responses"
	"github.com/sokohub/sokohub-backend/api/validators"
	"github.com/sokohub/sokohub-backend/internal/checkout"
	"github.com/sokohub/sokohub-backend/pkg/logger"
)

// CheckoutCart converts the caller's cart into one order per vendor.
func CheckoutCart(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout")
			return
		}
		customerID, ok := callerID(w, r, logg)
		if !ok {
			return
		}

		var body checkout.Input
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CheckoutCart(r.Context(), customerID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutProduct is the buy-now path for a single product.
func CheckoutProduct(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout")
			return
		}
		customerID, ok := callerID(w, r, logg)
		if !ok {
			return
		}
		productID, err := validators.ParseURLUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkout.ProductInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CheckoutProduct(r.Context(), customerID, productID, body.Quantity, body.Input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
