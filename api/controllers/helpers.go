package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sokohub/sokohub-backend/api/middleware"
	"github.com/sokohub/sokohub-backend/api/responses"
	"github.com/sokohub/sokohub-backend/internal/orders"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
)

// callerID resolves the authenticated user or writes a 401.
func callerID(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	id, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return uuid.Nil, false
	}
	return id, true
}

func callerActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (orders.Actor, bool) {
	id, ok := callerID(w, r, logg)
	if !ok {
		return orders.Actor{}, false
	}
	return orders.Actor{UserID: id, Role: middleware.RoleFromContext(r.Context())}, true
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}
