package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/qline-app/qline-backend/api/responses"
	"github.com/qline-app/qline-backend/api/validators"
	"github.com/qline-app/qline-backend/internal/businesses"
	pkgerrors "github.com/qline-app/qline-backend/pkg/errors"
	"github.com/qline-app/qline-backend/pkg/logger"
	"github.com/qline-app/qline-backend/pkg/pagination"
)

type pendingBusinessesResponse struct {
	Items  []businesses.BusinessDTO `json:"items"`
	Cursor string                   `json:"cursor,omitempty"`
}

type rejectBusinessRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// AdminListPendingBusinesses pages through the review backlog.
func AdminListPendingBusinesses(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "business service unavailable"))
			return
		}

		limit := 0
		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, err := strconv.Atoi(limitStr)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = value
		}

		var cursor *pagination.Cursor
		if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
			parsed, err := pagination.ParseCursor(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
				return
			}
			cursor = parsed
		}

		items, next, err := svc.ListPending(r.Context(), limit, cursor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := pendingBusinessesResponse{Items: items}
		if next != nil {
			payload.Cursor = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}

// AdminApproveBusiness approves a pending business.
func AdminApproveBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "business service unavailable"))
			return
		}

		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		businessID, err := pathUUID(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		business, err := svc.Approve(r.Context(), adminID, businessID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, business)
	}
}

// AdminRejectBusiness rejects a pending business with a reason.
func AdminRejectBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "business service unavailable"))
			return
		}

		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		businessID, err := pathUUID(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rejectBusinessRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		business, err := svc.Reject(r.Context(), adminID, businessID, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, business)
	}
}
