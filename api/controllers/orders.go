package controllers

import (
	"net/http"
	"strings"

	"github.com/shoplinkhq/shoplink-backend/api/responses"
	"github.com/shoplinkhq/shoplink-backend/api/validators"
	"github.com/shoplinkhq/shoplink-backend/internal/orders"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/logger"
)

// CreateOrder places a new order, pricing every line from the catalog and
// reserving stock atomically.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, err := parseUUIDField(payload.CustomerID, "customer id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shopID, err := parseUUIDField(payload.ShopID, "shop id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.CreateInput{
			CustomerID: customerID,
			ShopID:     shopID,
		}
		if raw := strings.TrimSpace(payload.Currency); raw != "" {
			currency, err := enums.ParseCurrency(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
				return
			}
			input.Currency = currency
		}
		for _, item := range payload.Items {
			productID, err := parseUUIDField(item.ProductID, "product id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Items = append(input.Items, orders.CreateItemInput{
				ProductID: productID,
				Quantity:  item.Quantity,
			})
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderDetail returns the order aggregate with its status history.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type createOrderRequest struct {
	CustomerID string                   `json:"customer_id" validate:"required,uuid4"`
	ShopID     string                   `json:"shop_id" validate:"required,uuid4"`
	Currency   string                   `json:"currency,omitempty"`
	Items      []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}
