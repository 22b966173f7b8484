package productions

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/furniture-production-backend/api/middleware"
	"github.com/angelmondragon/furniture-production-backend/api/responses"
	"github.com/angelmondragon/furniture-production-backend/api/validators"
	"github.com/angelmondragon/furniture-production-backend/internal/production"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
)

type patchRequest struct {
	CurrentStage *string `json:"current_stage"`
	Stage        *string `json:"stage"`
	Status       *string `json:"status"`
	Reason       string  `json:"reason" validate:"max=2000"`
}

type processRequest struct {
	Status      string  `json:"status"       validate:"required"`
	DelayReason *string `json:"delay_reason" validate:"omitempty,max=2000"`
	Remarks     *string `json:"remarks"      validate:"omitempty,max=2000"`
	Force       bool    `json:"force"`
}

// Detail returns a production job with its process steps. A lazy
// auto-advance may run first.
func Detail(svc production.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "production service unavailable"))
			return
		}
		productionID, err := validators.ParseUUIDParam(r, "productionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.Get(r.Context(), productionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// ListByOrder returns every production job spawned for an order.
func ListByOrder(svc production.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "production service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		jobs, err := svc.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": jobs})
	}
}

// Patch jumps a job to a stage, or puts it on hold when status is "Hold".
func Patch(svc production.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "production service unavailable"))
			return
		}
		productionID, err := validators.ParseUUIDParam(r, "productionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body patchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithProductionID(r.Context(), productionID.String())
		actor := middleware.ActorFromContext(ctx)

		if body.Status != nil {
			if !strings.EqualFold(strings.TrimSpace(*body.Status), string(enums.ProductionStatusHold)) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "status may only be set to Hold").
					WithDetails(map[string]string{"status": "must be Hold"}))
				return
			}
			snapshot, err := svc.Hold(ctx, production.HoldInput{ProductionID: productionID, Reason: body.Reason, Actor: actor})
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteSuccess(w, snapshot)
			return
		}

		rawStage := body.CurrentStage
		if rawStage == nil {
			rawStage = body.Stage
		}
		if rawStage == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "current_stage or status is required").
				WithDetails(map[string]string{"current_stage": "is required"}))
			return
		}
		stage, err := enums.ParseStage(*rawStage)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stage").
				WithDetails(map[string]string{"current_stage": "is invalid"}))
			return
		}

		snapshot, err := svc.JumpToStage(ctx, production.JumpInput{
			ProductionID: productionID,
			Stage:        stage,
			Reason:       body.Reason,
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// PatchProcess changes the status of one process step.
func PatchProcess(svc production.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "production service unavailable"))
			return
		}
		productionID, err := validators.ParseUUIDParam(r, "productionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		processID, err := validators.ParseUUIDParam(r, "processId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body processRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseProcessStatus(strings.TrimSpace(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid process status").
				WithDetails(map[string]string{"status": "is invalid"}))
			return
		}

		ctx := logg.WithFields(r.Context(), map[string]any{
			"production_id": productionID.String(),
			"process_id":    processID.String(),
		})
		snapshot, err := svc.UpdateProcess(ctx, production.UpdateProcessInput{
			ProductionID: productionID,
			ProcessID:    processID,
			Status:       status,
			DelayReason:  body.DelayReason,
			Remarks:      body.Remarks,
			Force:        body.Force,
			Actor:        middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
