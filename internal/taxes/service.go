package taxes

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TaxResult carries the grand total and the per-rate-name breakdown.
type TaxResult struct {
	TotalTax  decimal.Decimal            `json:"total_tax"`
	Breakdown map[string]decimal.Decimal `json:"breakdown"`
}

// Service defines the tax engine.
type Service interface {
	ResolveRate(ctx context.Context, product models.Product) (*models.TaxRate, error)
	CalculateOrderTax(ctx context.Context, orderID uuid.UUID) (*TaxResult, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a tax service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("taxes repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// ResolveRate picks the single rate for a product. Precedence is product
// override, then category, then shop, then a global all-scope rate; tiers
// never stack and the first active match wins.
func (s *service) ResolveRate(ctx context.Context, product models.Product) (*models.TaxRate, error) {
	return s.resolveRate(ctx, s.repo, product)
}

func (s *service) resolveRate(ctx context.Context, repo Repository, product models.Product) (*models.TaxRate, error) {
	override, err := repo.FindProductOverride(ctx, product.ID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product tax override")
	}
	if err == nil {
		rate, err := repo.FindRate(ctx, override.TaxRateID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load override rate")
		}
		// An inactive override falls through to the scoped tiers.
		if err == nil && rate.IsActive {
			return rate, nil
		}
	}

	rates, err := repo.ListActiveRates(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tax rates")
	}

	if rate := firstScopedMatch(rates, enums.ApplicabilityCategories, product.CategoryID); rate != nil {
		return rate, nil
	}
	if rate := firstScopedMatch(rates, enums.ApplicabilityShops, product.ShopID); rate != nil {
		return rate, nil
	}
	for i := range rates {
		if rates[i].ApplicableTo == enums.ApplicabilityAll {
			return &rates[i], nil
		}
	}
	return nil, nil
}

func firstScopedMatch(rates []models.TaxRate, scope enums.Applicability, id uuid.UUID) *models.TaxRate {
	for i := range rates {
		if rates[i].ApplicableTo == scope && rates[i].ApplicableIDs.Contains(id) {
			return &rates[i]
		}
	}
	return nil
}

// CalculateOrderTax resolves a rate per line item, sums per-rate-name
// amounts and writes the order's tax and total. The tax base is each item's
// pre-discount total price.
func (s *service) CalculateOrderTax(ctx context.Context, orderID uuid.UUID) (*TaxResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *TaxResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		items, err := repo.FindOrderItems(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}

		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		products, err := repo.FindProductsByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		byID := make(map[uuid.UUID]models.Product, len(products))
		for _, product := range products {
			byID[product.ID] = product
		}

		totalTax := decimal.Zero
		breakdown := make(map[string]decimal.Decimal)
		for _, item := range items {
			product, ok := byID[item.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item product missing").
					WithDetails(map[string]any{"product_id": item.ProductID})
			}
			rate, err := s.resolveRate(ctx, repo, product)
			if err != nil {
				return err
			}
			if rate == nil {
				continue
			}
			itemTax := money.Percent(item.TotalPrice, rate.Rate)
			totalTax = totalTax.Add(itemTax)
			breakdown[rate.Name] = breakdown[rate.Name].Add(itemTax)
		}

		total := money.Round2(order.SubtotalAmount.Sub(order.DiscountAmount).Add(totalTax))
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"tax_amount":   totalTax,
			"total_amount": total,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write order tax")
		}

		result = &TaxResult{TotalTax: totalTax, Breakdown: breakdown}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
