package controllers

import (
	"net/http"

	"github.com/shoplinkhq/shoplink-backend/api/responses"
	"github.com/shoplinkhq/shoplink-backend/api/validators"
	"github.com/shoplinkhq/shoplink-backend/internal/wallets"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/logger"
)

// WalletCredit adds funds to a user wallet, creating it on first use.
func WalletCredit(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		input, err := decodeEntryInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Credit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

// WalletDebit removes funds from a user wallet.
func WalletDebit(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		input, err := decodeEntryInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Debit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

// WalletTransfer moves funds between two user wallets atomically.
func WalletTransfer(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		var payload walletTransferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fromUserID, err := parseUUIDField(payload.FromUserID, "from user id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		toUserID, err := parseUUIDField(payload.ToUserID, "to user id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmountField(payload.Amount, "amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Transfer(r.Context(), wallets.TransferInput{
			FromUserID:  fromUserID,
			ToUserID:    toUserID,
			Amount:      amount,
			Description: payload.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// WalletDetail returns a user's wallet.
func WalletDetail(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		userID, err := parseUUIDParam(r, "userId", "user id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallet, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wallet)
	}
}

func decodeEntryInput(r *http.Request) (wallets.EntryInput, error) {
	var payload walletEntryRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return wallets.EntryInput{}, err
	}
	userID, err := parseUUIDField(payload.UserID, "user id")
	if err != nil {
		return wallets.EntryInput{}, err
	}
	amount, err := parseAmountField(payload.Amount, "amount")
	if err != nil {
		return wallets.EntryInput{}, err
	}
	return wallets.EntryInput{
		UserID:      userID,
		Amount:      amount,
		Description: payload.Description,
	}, nil
}

type walletEntryRequest struct {
	UserID      string `json:"user_id" validate:"required,uuid4"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"required"`
}

type walletTransferRequest struct {
	FromUserID  string `json:"from_user_id" validate:"required,uuid4"`
	ToUserID    string `json:"to_user_id" validate:"required,uuid4"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"required"`
}
