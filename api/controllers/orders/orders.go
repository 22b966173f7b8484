package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/furniture-production-backend/api/middleware"
	"github.com/angelmondragon/furniture-production-backend/api/responses"
	"github.com/angelmondragon/furniture-production-backend/api/validators"
	internalorders "github.com/angelmondragon/furniture-production-backend/internal/orders"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
)

type acceptRequest struct {
	AdminNotes *string `json:"admin_notes" validate:"omitempty,max=2000"`
}

type rejectRequest struct {
	RejectionReason string  `json:"rejection_reason" validate:"notblank,max=2000"`
	AdminNotes      *string `json:"admin_notes"      validate:"omitempty,max=2000"`
}

// Accept consumes materials for a pending order and starts its production.
func Accept(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body acceptRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		snapshot, err := svc.AcceptOrder(ctx, internalorders.AcceptInput{
			OrderID:    orderID,
			Actor:      middleware.ActorFromContext(ctx),
			AdminNotes: body.AdminNotes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// Reject records a rejection reason on a pending order.
func Reject(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body rejectRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		snapshot, err := svc.RejectOrder(ctx, internalorders.RejectInput{
			OrderID:    orderID,
			Actor:      middleware.ActorFromContext(ctx),
			Reason:     body.RejectionReason,
			AdminNotes: body.AdminNotes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// ReadyForDelivery releases a processing order whose production is done.
func ReadyForDelivery(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return deliveryHandler(svc.MarkReadyForDelivery, logg)
}

// Delivered records the hand-over of an order to its customer.
func Delivered(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return deliveryHandler(svc.MarkDelivered, logg)
}

func deliveryHandler(move func(context.Context, internalorders.DeliveryInput) (*internalorders.OrderSnapshot, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		snapshot, err := move(ctx, internalorders.DeliveryInput{
			OrderID: orderID,
			Actor:   middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func unavailable(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
	}
}

// Detail returns the order with its tracking rows. Customers only see their own orders.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canView(r, snapshot) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// MaterialCheck previews whether stock covers a pending order.
func MaterialCheck(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		check, err := svc.MaterialCheck(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, check)
	}
}

func canView(r *http.Request, snapshot *internalorders.OrderSnapshot) bool {
	if enums.Role(middleware.RoleFromContext(r.Context())).CanOperateProduction() {
		return true
	}
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return false
	}
	return snapshot.CustomerID == userID
}
