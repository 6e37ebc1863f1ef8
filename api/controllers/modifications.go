package controllers

import (
	"net/http"

	"github.com/shoplinkhq/shoplink-backend/api/responses"
	"github.com/shoplinkhq/shoplink-backend/api/validators"
	"github.com/shoplinkhq/shoplink-backend/internal/modifications"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/logger"
	"github.com/shoplinkhq/shoplink-backend/pkg/types"
)

// RequestModification records a proposed order edit as pending approval. The
// order itself is untouched until an approver acts.
func RequestModification(svc modifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "modifications service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload requestModificationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestedBy, err := parseUUIDField(payload.RequestedBy, "requested by")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		change, err := buildModificationChange(payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		modification, err := svc.Request(r.Context(), modifications.RequestInput{
			OrderID:     orderID,
			Change:      change,
			RequestedBy: requestedBy,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, modification)
	}
}

// ApproveModification replays the recorded change against current order and
// stock state and applies it.
func ApproveModification(svc modifications.Service, logg *logger.Logger) http.HandlerFunc {
	return modificationDecision(svc, logg, func(r *http.Request, input modifications.DecisionInput) (any, error) {
		return svc.Approve(r.Context(), input)
	})
}

// RejectModification closes the request without touching the order.
func RejectModification(svc modifications.Service, logg *logger.Logger) http.HandlerFunc {
	return modificationDecision(svc, logg, func(r *http.Request, input modifications.DecisionInput) (any, error) {
		return svc.Reject(r.Context(), input)
	})
}

func modificationDecision(
	svc modifications.Service,
	logg *logger.Logger,
	decide func(r *http.Request, input modifications.DecisionInput) (any, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "modifications service unavailable"))
			return
		}

		modificationID, err := parseUUIDParam(r, "modificationId", "modification id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload modificationDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		approverID, err := parseUUIDField(payload.ApproverID, "approver id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		modification, err := decide(r, modifications.DecisionInput{
			ModificationID: modificationID,
			ApproverID:     approverID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, modification)
	}
}

func buildModificationChange(payload requestModificationRequest) (types.ModificationChange, error) {
	modType, err := enums.ParseModificationType(payload.Type)
	if err != nil {
		return types.ModificationChange{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid modification type")
	}

	change := types.ModificationChange{Type: modType}
	switch modType {
	case enums.ModificationTypeAddItem:
		if payload.AddItem == nil {
			return change, pkgerrors.New(pkgerrors.CodeValidation, "add_item payload required")
		}
		productID, err := parseUUIDField(payload.AddItem.ProductID, "product id")
		if err != nil {
			return change, err
		}
		change.AddItem = &types.AddItemChange{
			ProductID: productID,
			Quantity:  payload.AddItem.Quantity,
		}
	case enums.ModificationTypeRemoveItem:
		if payload.RemoveItem == nil {
			return change, pkgerrors.New(pkgerrors.CodeValidation, "remove_item payload required")
		}
		orderItemID, err := parseUUIDField(payload.RemoveItem.OrderItemID, "order item id")
		if err != nil {
			return change, err
		}
		change.RemoveItem = &types.RemoveItemChange{OrderItemID: orderItemID}
	case enums.ModificationTypeUpdateQuantity:
		if payload.UpdateQuantity == nil {
			return change, pkgerrors.New(pkgerrors.CodeValidation, "update_quantity payload required")
		}
		orderItemID, err := parseUUIDField(payload.UpdateQuantity.OrderItemID, "order item id")
		if err != nil {
			return change, err
		}
		change.UpdateQuantity = &types.UpdateQuantityChange{
			OrderItemID: orderItemID,
			NewQuantity: payload.UpdateQuantity.NewQuantity,
		}
	}
	return change, nil
}

type addItemPayload struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type removeItemPayload struct {
	OrderItemID string `json:"order_item_id" validate:"required,uuid4"`
}

type updateQuantityPayload struct {
	OrderItemID string `json:"order_item_id" validate:"required,uuid4"`
	NewQuantity int    `json:"new_quantity" validate:"required,min=1"`
}

type requestModificationRequest struct {
	Type           string                 `json:"type" validate:"required"`
	RequestedBy    string                 `json:"requested_by" validate:"required,uuid4"`
	AddItem        *addItemPayload        `json:"add_item,omitempty"`
	RemoveItem     *removeItemPayload     `json:"remove_item,omitempty"`
	UpdateQuantity *updateQuantityPayload `json:"update_quantity,omitempty"`
}

type modificationDecisionRequest struct {
	ApproverID string `json:"approver_id" validate:"required,uuid4"`
}
