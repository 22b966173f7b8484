package batches

import (
	"net/http"
	"time"

	"github.com/angelmondragon/furniture-production-backend/api/middleware"
	"github.com/angelmondragon/furniture-production-backend/api/responses"
	"github.com/angelmondragon/furniture-production-backend/api/validators"
	internalbatches "github.com/angelmondragon/furniture-production-backend/internal/batches"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
)

type recordRequest struct {
	Quantity   int     `json:"quantity"    validate:"required,min=1"`
	ProducedOn string  `json:"produced_on" validate:"omitempty,datetime=2006-01-02"`
	Notes      *string `json:"notes"       validate:"omitempty,max=2000"`
}

// Record books a finished batch of a stocked product.
func Record(svc internalbatches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "batch service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body recordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var producedOn time.Time
		if body.ProducedOn != "" {
			// format already checked by the validator
			producedOn, _ = time.Parse(time.DateOnly, body.ProducedOn)
		}

		ctx := logg.WithField(r.Context(), "product_id", productID.String())
		result, err := svc.RecordBatchOutput(ctx, internalbatches.RecordInput{
			ProductID:  productID,
			Quantity:   body.Quantity,
			ProducedOn: producedOn,
			Notes:      body.Notes,
			Actor:      middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// List returns the most recent batches of a product.
func List(svc internalbatches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "batch service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 30, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), productID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
