package controllers

import (
	"net/http"

	"github.com/qline-app/qline-backend/api/responses"
	"github.com/qline-app/qline-backend/api/validators"
	"github.com/qline-app/qline-backend/internal/businesses"
	"github.com/qline-app/qline-backend/pkg/enums"
	pkgerrors "github.com/qline-app/qline-backend/pkg/errors"
	"github.com/qline-app/qline-backend/pkg/logger"
	"github.com/qline-app/qline-backend/pkg/types"
)

type createBusinessRequest struct {
	Name                     string        `json:"name" validate:"required"`
	Description              *string       `json:"description"`
	Category                 string        `json:"category" validate:"required"`
	Address                  types.Address `json:"address"`
	EstimatedTimePerCustomer int           `json:"estimated_time_per_customer" validate:"omitempty,min=1"`
	MaxQueueSize             int           `json:"max_queue_size" validate:"omitempty,min=1"`
}

type updateBusinessRequest struct {
	Name                     *string `json:"name" validate:"omitempty,min=1"`
	Description              *string `json:"description"`
	Category                 *string `json:"category"`
	EstimatedTimePerCustomer *int    `json:"estimated_time_per_customer" validate:"omitempty,min=1"`
	MaxQueueSize             *int    `json:"max_queue_size" validate:"omitempty,min=1"`
}

// OwnerRegisterBusiness submits a new business for admin review.
func OwnerRegisterBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "business service unavailable"))
			return
		}

		ownerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createBusinessRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := enums.ParseBusinessCategory(body.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}

		business, err := svc.Register(r.Context(), ownerID, businesses.CreateBusinessDTO{
			Name:                     body.Name,
			Description:              body.Description,
			Category:                 category,
			Address:                  body.Address,
			EstimatedTimePerCustomer: body.EstimatedTimePerCustomer,
			MaxQueueSize:             body.MaxQueueSize,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, business)
	}
}

// OwnerListBusinesses returns every business the caller owns.
func OwnerListBusinesses(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "business service unavailable"))
			return
		}

		ownerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListMine(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string][]businesses.BusinessDTO{"items": items})
	}
}

// OwnerUpdateBusiness edits profile and queue settings of an owned business.
func OwnerUpdateBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "business service unavailable"))
			return
		}

		ownerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		businessID, err := pathUUID(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateBusinessRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := businesses.UpdateInput{
			Name:                     body.Name,
			Description:              body.Description,
			EstimatedTimePerCustomer: body.EstimatedTimePerCustomer,
			MaxQueueSize:             body.MaxQueueSize,
		}
		if body.Category != nil {
			category, err := enums.ParseBusinessCategory(*body.Category)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			input.Category = &category
		}

		business, err := svc.Update(r.Context(), ownerID, businessID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, business)
	}
}

// OwnerToggleQueue opens or closes an owned business's queue.
func OwnerToggleQueue(svc businesses.Service, open bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "business service unavailable"))
			return
		}

		ownerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		businessID, err := pathUUID(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		business, err := svc.ToggleOpen(r.Context(), ownerID, businessID, open)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, business)
	}
}
