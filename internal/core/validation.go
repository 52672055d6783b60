package core

import (
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

const (
	MaxBuyOrderLength  = 26
	MaxSessionIDLength = 61
	MaxMotiveLength    = 255
	MaxCurrencyLength  = 8
	MaxProductIDLength = 64
	MinInstallments    = 1
	MaxInstallments    = 24
)

type Limits struct {
	MinAmount int64
	MaxAmount int64
}

func DefaultLimits() Limits {
	return Limits{MinAmount: 50, MaxAmount: 999999999}
}

// ValidateCreate checks a create request in the documented order: amount
// bounds first, then line items, then the remaining fields. All problems are
// reported together.
func ValidateCreate(req model.CreateTransactionRequest, limits Limits) error {
	verr := model.NewValidationError()

	if req.Amount < limits.MinAmount || req.Amount > limits.MaxAmount {
		verr.Add("amount %d outside allowed range [%d, %d]", req.Amount, limits.MinAmount, limits.MaxAmount)
	}

	if len(req.Items) == 0 {
		verr.Add("at least one line item is required")
	}
	var total int64
	overflow := false
	for i, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			verr.Add("items[%d]: product_id is required", i)
		} else if len(it.ProductID) > MaxProductIDLength {
			verr.Add("items[%d]: product_id longer than %d characters", i, MaxProductIDLength)
		}
		if it.Quantity < 1 {
			verr.Add("items[%d]: quantity must be at least 1", i)
		}
		if it.UnitPrice <= 0 {
			verr.Add("items[%d]: unit_price must be positive", i)
		}
		if it.Quantity < 1 || it.UnitPrice <= 0 {
			continue
		}
		sub, ok := Subtotal(it.Quantity, it.UnitPrice)
		if !ok || total > math.MaxInt64-sub {
			overflow = true
			continue
		}
		total += sub
	}
	if overflow {
		verr.Add("line item subtotals overflow")
	} else if len(req.Items) > 0 && total > req.Amount {
		verr.Add("line item subtotals %d exceed amount %d", total, req.Amount)
	}

	if currency := strings.TrimSpace(req.Currency); currency == "" {
		verr.Add("currency is required")
	} else if len(currency) > MaxCurrencyLength {
		verr.Add("currency longer than %d characters", MaxCurrencyLength)
	}
	if req.ReturnURL == "" {
		verr.Add("return_url is required")
	} else if u, err := url.Parse(req.ReturnURL); err != nil || u.Scheme == "" || u.Host == "" {
		verr.Add("return_url must be an absolute URL")
	}
	if len(req.BuyOrder) > MaxBuyOrderLength {
		verr.Add("buy_order longer than %d characters", MaxBuyOrderLength)
	}
	if len(req.SessionID) > MaxSessionIDLength {
		verr.Add("session_id longer than %d characters", MaxSessionIDLength)
	}

	return verr.OrNil()
}

// ValidateRecord checks the persisted shape of a transaction before it is
// written: positive amount, at least one item, consistent subtotals whose sum
// does not exceed the amount, and an expiry in the future.
func ValidateRecord(tx *model.Transaction, now time.Time) error {
	verr := model.NewValidationError()
	if tx.Amount <= 0 {
		verr.Add("amount must be positive")
	}
	if len(tx.Items) == 0 {
		verr.Add("at least one line item is required")
	}
	var total int64
	for i, it := range tx.Items {
		sub, ok := Subtotal(it.Quantity, it.UnitPrice)
		if !ok || it.Quantity < 1 || it.UnitPrice <= 0 || sub != it.Subtotal {
			verr.Add("items[%d]: subtotal %d does not match quantity x unit price", i, it.Subtotal)
			continue
		}
		total += sub
	}
	if total > tx.Amount {
		verr.Add("line item subtotals %d exceed amount %d", total, tx.Amount)
	}
	if !tx.ExpiresAt.After(now) {
		verr.Add("expiry must be in the future")
	}
	if len(tx.BuyOrder) > MaxBuyOrderLength {
		verr.Add("buy_order longer than %d characters", MaxBuyOrderLength)
	}
	return verr.OrNil()
}

// Subtotal returns quantity x unit price, or false on overflow.
func Subtotal(quantity int, unitPrice int64) (int64, bool) {
	if quantity <= 0 || unitPrice <= 0 {
		return 0, quantity >= 0 && unitPrice >= 0
	}
	if int64(quantity) > math.MaxInt64/unitPrice {
		return 0, false
	}
	return int64(quantity) * unitPrice, true
}

// ClampInstallments maps the gateway's installment count into [1, 24];
// the gateway reports 0 for a single payment.
func ClampInstallments(n int) int {
	if n < MinInstallments {
		return MinInstallments
	}
	if n > MaxInstallments {
		return MaxInstallments
	}
	return n
}
