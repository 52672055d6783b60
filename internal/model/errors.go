package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrNotFound            = errors.New("not found")
	ErrStateConflict       = errors.New("state conflict")
	ErrInvalidRefundAmount = errors.New("invalid refund amount")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrGatewayUnavailable  = errors.New("gateway unavailable")
	ErrGatewayRejected     = errors.New("gateway rejected")
	ErrGatewayProtocol     = errors.New("gateway protocol error")
)

type ValidationError struct {
	Problems []string
}

func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// OrNil returns nil when no problem was recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type StockShortage struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type InsufficientStockError struct {
	Items []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("%s: requested %d, available %d", it.ProductID, it.Requested, it.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type RefundAmountError struct {
	Problems []string
}

func (e *RefundAmountError) Error() string {
	return "invalid refund amount: " + strings.Join(e.Problems, "; ")
}

func (e *RefundAmountError) Is(target error) bool { return target == ErrInvalidRefundAmount }

// GatewayError is a normalized failure of a call to the payment gateway.
// Kind is one of ErrGatewayUnavailable, ErrGatewayRejected, ErrGatewayProtocol or ErrNotFound.
type GatewayError struct {
	Kind       error
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Is(target error) bool { return target == e.Kind }

func (e *GatewayError) Unwrap() error { return e.Err }

// IsAmbiguous reports whether err leaves the remote outcome unknown.
// Callers must resolve it with a status query, never by guessing.
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) || errors.Is(err, ErrGatewayProtocol)
}
