package controllers

import (
	"net/http"

	"github.com/shoplinkhq/shoplink-backend/api/responses"
	"github.com/shoplinkhq/shoplink-backend/api/validators"
	"github.com/shoplinkhq/shoplink-backend/internal/coupons"
	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/logger"
)

// ValidateCoupon runs the validation chain without touching any order.
func ValidateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		var payload validateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := parseUUIDField(payload.UserID, "user id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shopID, err := parseUUIDField(payload.ShopID, "shop id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderAmount, err := parseAmountField(payload.OrderAmount, "order amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := coupons.ValidateInput{
			Code:        payload.Code,
			UserID:      userID,
			OrderAmount: orderAmount,
			ShopID:      shopID,
		}
		for _, item := range payload.Items {
			productID, err := parseUUIDField(item.ProductID, "product id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Items = append(input.Items, models.OrderItem{
				ProductID: productID,
				Quantity:  item.Quantity,
			})
		}

		result, err := svc.Validate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ApplyCoupon writes a validated discount onto an order.
func ApplyCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload applyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discount, err := svc.Apply(r.Context(), orderID, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"discount_amount": discount})
	}
}

type validateCouponItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type validateCouponRequest struct {
	Code        string                      `json:"code" validate:"required"`
	UserID      string                      `json:"user_id" validate:"required,uuid4"`
	ShopID      string                      `json:"shop_id" validate:"required,uuid4"`
	OrderAmount string                      `json:"order_amount" validate:"required"`
	Items       []validateCouponItemRequest `json:"items,omitempty" validate:"dive"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}
