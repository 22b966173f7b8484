package materials

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/furniture-production-backend/api/middleware"
	"github.com/angelmondragon/furniture-production-backend/api/responses"
	"github.com/angelmondragon/furniture-production-backend/api/validators"
	"github.com/angelmondragon/furniture-production-backend/internal/forecast"
	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
)

// Forecaster builds the replenishment report for a material.
type Forecaster interface {
	Report(ctx context.Context, materialID uuid.UUID) (*forecast.Report, error)
}

type adjustRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
	Reason   string          `json:"reason"   validate:"notblank,max=500"`
}

// Detail returns the current stock levels of a material.
func Detail(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		materialID, err := validators.ParseUUIDParam(r, "materialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		material, err := svc.GetMaterial(r.Context(), materialID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, material)
	}
}

// Adjust applies a signed manual correction and records it in the usage ledger.
func Adjust(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		materialID, err := validators.ParseUUIDParam(r, "materialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body adjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithMaterialID(r.Context(), materialID.String())
		result, err := svc.Adjust(ctx, inventory.AdjustInput{
			MaterialID: materialID,
			Quantity:   body.Quantity,
			Reason:     body.Reason,
			Actor:      middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Forecast returns the usage trend and reorder recommendation for a material.
func Forecast(svc Forecaster, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "forecast service unavailable"))
			return
		}
		materialID, err := validators.ParseUUIDParam(r, "materialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Report(r.Context(), materialID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
