package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sokohub/sokohub-backend/api/responses"
	"github.com/sokohub/sokohub-backend/api/validators"
	"github.com/sokohub/sokohub-backend/internal/notifications"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
)

// NotificationsList returns the caller's notifications, optionally unread only.
func NotificationsList(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "notifications")
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
		unreadOnly := false
		if raw := strings.TrimSpace(r.URL.Query().Get("unreadOnly")); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unreadOnly must be boolean"))
				return
			}
			unreadOnly = parsed
		}

		list, err := svc.List(r.Context(), notifications.ListParams{
			UserID:     userID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
			UnreadOnly: unreadOnly,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func NotificationsSummary(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "notifications")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}

		summary, err := svc.Summary(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// NotificationMarkRead marks one notification read and returns where it points.
func NotificationMarkRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "notifications")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}
		notificationID, err := validators.ParseURLUUID(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := svc.MarkRead(r.Context(), userID, notificationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"read": true, "target_url": target})
	}
}

func NotificationsMarkAllRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "notifications")
			return
		}
		userID, ok := callerID(w, r, logg)
		if !ok {
			return
		}

		updated, err := svc.MarkAllRead(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
	}
}
