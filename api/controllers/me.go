package controllers

import (
	"net/http"

	"github.com/sokohub/sokohub-backend/api/responses"
	"github.com/sokohub/sokohub-backend/api/validators"
	"github.com/sokohub/sokohub-backend/internal/users"
	"github.com/sokohub/sokohub-backend/pkg/logger"
)

func MeProfile(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "users")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}

		profile, err := svc.Profile(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// MeUpdateProfile applies a partial profile update; absent fields are left untouched.
func MeUpdateProfile(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "users")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}

		var body users.ProfileUpdate
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.UpdateProfile(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
