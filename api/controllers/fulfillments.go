package controllers

import (
	"net/http"

	"github.com/shoplinkhq/shoplink-backend/api/responses"
	"github.com/shoplinkhq/shoplink-backend/api/validators"
	"github.com/shoplinkhq/shoplink-backend/internal/fulfillments"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/logger"
)

// CreateFulfillment allocates order item quantities to a new shipment.
func CreateFulfillment(svc fulfillments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillments service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createFulfillmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := fulfillments.CreateInput{OrderID: orderID}
		for _, item := range payload.Items {
			orderItemID, err := parseUUIDField(item.OrderItemID, "order item id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Items = append(input.Items, fulfillments.Allocation{
				OrderItemID: orderItemID,
				Quantity:    item.Quantity,
			})
		}

		fulfillment, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, fulfillment)
	}
}

// ShipFulfillment records the carrier handoff of a pending fulfillment.
func ShipFulfillment(svc fulfillments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillments service unavailable"))
			return
		}

		fulfillmentID, err := parseUUIDParam(r, "fulfillmentId", "fulfillment id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shipFulfillmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fulfillment, err := svc.Ship(r.Context(), fulfillments.ShipInput{
			FulfillmentID:  fulfillmentID,
			TrackingNumber: payload.TrackingNumber,
			Carrier:        payload.Carrier,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, fulfillment)
	}
}

// DeliverFulfillment marks a shipped fulfillment delivered and rolls the
// order to delivered when every line is fully covered.
func DeliverFulfillment(svc fulfillments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillments service unavailable"))
			return
		}

		fulfillmentID, err := parseUUIDParam(r, "fulfillmentId", "fulfillment id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fulfillment, err := svc.Deliver(r.Context(), fulfillmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, fulfillment)
	}
}

// ListOrderFulfillments returns every fulfillment for an order with items.
func ListOrderFulfillments(svc fulfillments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillments service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type fulfillmentItemRequest struct {
	OrderItemID string `json:"order_item_id" validate:"required,uuid4"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
}

type createFulfillmentRequest struct {
	Items []fulfillmentItemRequest `json:"items" validate:"required,min=1,dive"`
}

type shipFulfillmentRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required"`
	Carrier        string `json:"carrier" validate:"required"`
}
