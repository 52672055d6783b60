package core

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

// RefundableBalance is what can still be refunded once processed refunds and
// in-flight (pending) reservations are taken into account.
func RefundableBalance(authorized, processed, pending int64) int64 {
	remaining := authorized - processed - pending
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ValidateRefund checks a refund request against the transaction and its
// refund history. No gateway call may be made when it fails.
func ValidateRefund(tx *model.Transaction, req model.RefundRequest, processed, pending int64) error {
	if len(req.Motive) > MaxMotiveLength {
		return model.NewValidationError(fmt.Sprintf("motive longer than %d characters", MaxMotiveLength))
	}

	rerr := &model.RefundAmountError{}
	switch {
	case IsTerminal(tx.Status):
		rerr.Problems = append(rerr.Problems, fmt.Sprintf("transaction in status %s is closed and cannot be refunded", tx.Status))
	case !IsRefundable(tx.Status):
		rerr.Problems = append(rerr.Problems, fmt.Sprintf("transaction in status %s is not authorized and cannot be refunded", tx.Status))
	}
	if req.Amount <= 0 {
		rerr.Problems = append(rerr.Problems, "amount must be positive")
	}
	remaining := RefundableBalance(tx.Amount, processed, pending)
	if req.Amount > remaining {
		rerr.Problems = append(rerr.Problems, fmt.Sprintf("amount %d exceeds refundable balance %d", req.Amount, remaining))
	}
	if len(rerr.Problems) > 0 {
		return rerr
	}
	return nil
}

// RestoreQuantity returns how many units of a line item go back to stock when
// the cumulative refunded sum moves from before to after. Restored units are
// floor(quantity * refunded / authorized) cumulatively, so a full refund
// always restores the whole quantity however it was split.
func RestoreQuantity(quantity int, authorized, before, after int64) int {
	if authorized <= 0 || after <= before {
		return 0
	}
	qty := decimal.NewFromInt(int64(quantity))
	auth := decimal.NewFromInt(authorized)
	cumulative := func(refunded int64) int64 {
		if refunded >= authorized {
			return int64(quantity)
		}
		return qty.Mul(decimal.NewFromInt(refunded)).Div(auth).Floor().IntPart()
	}
	return int(cumulative(after) - cumulative(before))
}
