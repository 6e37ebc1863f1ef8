package coupons

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db"
	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/metrics"
	"github.com/shoplinkhq/shoplink-backend/pkg/money"
	"github.com/shoplinkhq/shoplink-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Validation failure reasons, returned verbatim to the caller.
const (
	ReasonNotFound       = "coupon not found"
	ReasonInactive       = "coupon is not active"
	ReasonNotYetValid    = "coupon is not yet valid"
	ReasonExpired        = "coupon has expired"
	ReasonUsageLimit     = "usage limit reached"
	ReasonMinOrderAmount = "order amount below coupon minimum"
	ReasonNotApplicable  = "coupon does not apply to this order"
)

// ValidateInput carries everything the validation chain inspects.
type ValidateInput struct {
	Code        string
	UserID      uuid.UUID
	OrderAmount decimal.Decimal
	ShopID      uuid.UUID
	Items       []models.OrderItem
}

// ValidationResult reports the first failing check, never a partial list.
type ValidationResult struct {
	OK     bool           `json:"ok"`
	Reason string         `json:"reason,omitempty"`
	Coupon *models.Coupon `json:"coupon,omitempty"`
}

// CouponAppliedEvent is emitted when a coupon lands on an order.
type CouponAppliedEvent struct {
	CouponID       uuid.UUID       `json:"coupon_id"`
	Code           string          `json:"code"`
	OrderID        uuid.UUID       `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Service defines the discount engine.
type Service interface {
	Validate(ctx context.Context, input ValidateInput) (*ValidationResult, error)
	Apply(ctx context.Context, orderID uuid.UUID, code string) (decimal.Decimal, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.MoneyMetrics
}

// NewService builds a coupon service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, moneyMetrics *metrics.MoneyMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, metrics: moneyMetrics}, nil
}

// Validate runs the fixed check chain and reports the first failure.
func (s *service) Validate(ctx context.Context, input ValidateInput) (*ValidationResult, error) {
	if input.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	coupon, err := s.repo.FindByCode(ctx, input.Code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &ValidationResult{OK: false, Reason: ReasonNotFound}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return s.check(ctx, coupon, input)
}

func (s *service) check(ctx context.Context, coupon *models.Coupon, input ValidateInput) (*ValidationResult, error) {
	fail := func(reason string) *ValidationResult {
		return &ValidationResult{OK: false, Reason: reason, Coupon: coupon}
	}

	if !coupon.IsActive {
		return fail(ReasonInactive), nil
	}
	now := time.Now()
	if now.Before(coupon.ValidFrom) {
		return fail(ReasonNotYetValid), nil
	}
	if now.After(coupon.ValidUntil) {
		return fail(ReasonExpired), nil
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return fail(ReasonUsageLimit), nil
	}
	if input.OrderAmount.LessThan(coupon.MinOrderAmount) {
		return fail(ReasonMinOrderAmount), nil
	}

	if coupon.ApplicableTo != enums.ApplicabilityAll {
		applies, err := s.matchesScope(ctx, coupon, input)
		if err != nil {
			return nil, err
		}
		if !applies {
			return fail(ReasonNotApplicable), nil
		}
	}

	return &ValidationResult{OK: true, Coupon: coupon}, nil
}

func (s *service) matchesScope(ctx context.Context, coupon *models.Coupon, input ValidateInput) (bool, error) {
	allowed := make(map[uuid.UUID]struct{}, len(coupon.ApplicableIDs))
	for _, id := range coupon.ApplicableIDs {
		allowed[id] = struct{}{}
	}

	switch coupon.ApplicableTo {
	case enums.ApplicabilityShops:
		_, ok := allowed[input.ShopID]
		return ok, nil

	case enums.ApplicabilityProducts:
		for _, item := range input.Items {
			if _, ok := allowed[item.ProductID]; ok {
				return true, nil
			}
		}
		return false, nil

	case enums.ApplicabilityCategories:
		ids := make([]uuid.UUID, 0, len(input.Items))
		for _, item := range input.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := s.repo.FindProductsByIDs(ctx, ids)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products for coupon scope")
		}
		for _, product := range products {
			if _, ok := allowed[product.CategoryID]; ok {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid coupon applicability %q", coupon.ApplicableTo))
	}
}

// CalculateDiscount computes the discount a coupon yields on an amount.
// Percentage discounts are capped by max_discount_amount when set; fixed
// discounts never exceed the amount itself.
func CalculateDiscount(coupon *models.Coupon, amount decimal.Decimal) decimal.Decimal {
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount := money.Percent(amount, coupon.DiscountValue)
		if coupon.MaxDiscountAmount != nil {
			discount = money.Min(discount, *coupon.MaxDiscountAmount)
		}
		return discount
	case enums.DiscountTypeFixed:
		return money.Min(coupon.DiscountValue, amount)
	default:
		return decimal.Zero
	}
}

// Apply re-validates under row locks, writes the discount onto the order,
// counts the usage and records one CouponUsage row. A failing validation
// leaves the order untouched.
func (s *service) Apply(ctx context.Context, orderID uuid.UUID, code string) (decimal.Decimal, error) {
	if orderID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if code == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}

	var discount decimal.Decimal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		coupon, err := repo.FindByCodeForUpdate(ctx, code)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return couponInvalid(ReasonNotFound)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock coupon")
		}

		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.CouponCode != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has a coupon").
				WithDetails(map[string]any{"order_id": order.ID, "coupon_code": *order.CouponCode})
		}

		items, err := repo.FindOrderItems(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}

		result, err := s.check(ctx, coupon, ValidateInput{
			Code:        code,
			UserID:      order.CustomerID,
			OrderAmount: order.SubtotalAmount,
			ShopID:      order.ShopID,
			Items:       items,
		})
		if err != nil {
			return err
		}
		if !result.OK {
			return couponInvalid(result.Reason)
		}

		discount = CalculateDiscount(coupon, order.SubtotalAmount)
		total := money.Round2(order.SubtotalAmount.Sub(discount).Add(order.TaxAmount))
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"discount_amount": discount,
			"coupon_code":     coupon.Code,
			"total_amount":    total,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write discount")
		}

		if err := repo.IncrementUsage(ctx, coupon.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usage")
		}

		usage := &models.CouponUsage{
			CouponID:       coupon.ID,
			OrderID:        order.ID,
			UserID:         order.CustomerID,
			DiscountAmount: discount,
		}
		if err := repo.CreateUsage(ctx, usage); err != nil {
			if db.IsUniqueViolation(err, "ux_coupon_usages_order") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has a coupon")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon usage")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventCouponApplied,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: CouponAppliedEvent{
				CouponID:       coupon.ID,
				Code:           coupon.Code,
				OrderID:        order.ID,
				DiscountAmount: discount,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.metrics.IncCouponApplied()
	return discount, nil
}

func couponInvalid(reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "coupon invalid").
		WithDetails(map[string]any{"reason": reason})
}
