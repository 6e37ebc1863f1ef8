package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplinkhq/shoplink-backend/pkg/config"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/logger"
)

var errLoggerRequired = errors.New("gateway logger is required")

// Client simulates an external payment service provider. Charges settle
// instantly and never touch the network, which keeps the payment flow shaped
// like a real PSP integration without carrying its credentials.
type Client struct {
	cfg    config.GatewayConfig
	logger *logger.Logger
}

// NewClient initializes the simulated gateway.
func NewClient(cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Client{cfg: cfg, logger: logg}, nil
}

// ChargeRequest describes a charge to authorize and capture.
type ChargeRequest struct {
	OrderID  uuid.UUID
	Amount   decimal.Decimal
	Currency enums.Currency
	Method   enums.PaymentMethod
}

// ChargeResult is the gateway's settlement record for a captured charge.
type ChargeResult struct {
	TransactionID string
	PaidAt        time.Time
}

// Charge captures the requested amount and returns the gateway transaction
// reference. Runs before any DB transaction opens, so a slow or failing
// gateway never holds row locks.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}
	if !req.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", req.Method))
	}

	if c.cfg.SimulatedLatency > 0 {
		timer := time.NewTimer(c.cfg.SimulatedLatency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "gateway charge cancelled")
		case <-timer.C:
		}
	}

	if c.cfg.FailCharges {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway declined the charge")
	}

	result := &ChargeResult{
		TransactionID: newTransactionID(),
		PaidAt:        time.Now().UTC(),
	}

	logCtx := c.logger.WithFields(ctx, map[string]any{
		"order_id":       req.OrderID.String(),
		"amount":         req.Amount.String(),
		"currency":       req.Currency,
		"method":         req.Method,
		"transaction_id": result.TransactionID,
	})
	c.logger.Info(logCtx, "gateway charge captured")

	return result, nil
}

func newTransactionID() string {
	return "txn_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
