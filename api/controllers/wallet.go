package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sokohub/sokohub-backend/api/responses"
	"github.com/sokohub/sokohub-backend/api/validators"
	"github.com/sokohub/sokohub-backend/internal/wallet"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
)

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func WalletGet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "wallet")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}

		card, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, card)
	}
}

// WalletRequest opens a card application or returns the existing one with its next step.
func WalletRequest(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "wallet")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}

		card, err := svc.Request(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, card)
	}
}

// WalletPay settles the card fee and activates the card.
func WalletPay(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "wallet")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}

		card, err := svc.Pay(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, card)
	}
}

func WalletTopUp(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "wallet")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}

		var body topUpRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		card, err := svc.TopUp(r.Context(), userID, body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, card)
	}
}

func WalletTransactions(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "wallet")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.Transactions(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
