package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

func TestRefundableBalance(t *testing.T) {
	if got := RefundableBalance(50000, 10000, 5000); got != 35000 {
		t.Errorf("got %d, want 35000", got)
	}
	if got := RefundableBalance(50000, 50000, 1); got != 0 {
		t.Errorf("balance must not go negative, got %d", got)
	}
}

func TestValidateRefund(t *testing.T) {
	authorized := &model.Transaction{Amount: 50000, Status: model.StatusAuthorized}
	rejected := &model.Transaction{Amount: 50000, Status: model.StatusRejected}
	created := &model.Transaction{Amount: 50000, Status: model.StatusCreated}

	tests := []struct {
		name      string
		tx        *model.Transaction
		req       model.RefundRequest
		processed int64
		pending   int64
		wantErr   error
	}{
		{"full", authorized, model.RefundRequest{Amount: 50000}, 0, 0, nil},
		{"partial", authorized, model.RefundRequest{Amount: 100}, 0, 0, nil},
		{"zero", authorized, model.RefundRequest{Amount: 0}, 0, 0, model.ErrInvalidRefundAmount},
		{"over amount", authorized, model.RefundRequest{Amount: 50001}, 0, 0, model.ErrInvalidRefundAmount},
		{"over remaining", authorized, model.RefundRequest{Amount: 30001}, 20000, 0, model.ErrInvalidRefundAmount},
		{"pending reserved", authorized, model.RefundRequest{Amount: 30001}, 0, 20000, model.ErrInvalidRefundAmount},
		{"not refundable", rejected, model.RefundRequest{Amount: 100}, 0, 0, model.ErrInvalidRefundAmount},
		{"not authorized yet", created, model.RefundRequest{Amount: 100}, 0, 0, model.ErrInvalidRefundAmount},
		{"motive too long", authorized, model.RefundRequest{Amount: 100, Motive: strings.Repeat("m", 256)}, 0, 0, model.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRefund(tt.tx, tt.req, tt.processed, tt.pending)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateRefundNamesClosedTransactions(t *testing.T) {
	closed := ValidateRefund(&model.Transaction{Amount: 50000, Status: model.StatusVoided}, model.RefundRequest{Amount: 100}, 0, 0)
	if closed == nil || !strings.Contains(closed.Error(), "is closed") {
		t.Errorf("expected closed message, got %v", closed)
	}
	pending := ValidateRefund(&model.Transaction{Amount: 50000, Status: model.StatusCreated}, model.RefundRequest{Amount: 100}, 0, 0)
	if pending == nil || !strings.Contains(pending.Error(), "not authorized") {
		t.Errorf("expected not authorized message, got %v", pending)
	}
}

func TestRestoreQuantity(t *testing.T) {
	tests := []struct {
		name          string
		quantity      int
		authorized    int64
		before, after int64
		want          int
	}{
		{"full refund", 3, 50000, 0, 50000, 3},
		{"half of even quantity", 2, 50000, 0, 25000, 1},
		{"floor", 3, 50000, 0, 25000, 1},
		{"second half completes", 3, 50000, 25000, 50000, 2},
		{"tiny refund", 3, 50000, 0, 100, 0},
		{"no progress", 3, 50000, 100, 100, 0},
		{"zero authorized", 3, 0, 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RestoreQuantity(tt.quantity, tt.authorized, tt.before, tt.after); got != tt.want {
				t.Errorf("RestoreQuantity = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRestoreQuantitySplitRefundsSumToQuantity(t *testing.T) {
	const quantity, authorized = 7, 49999
	steps := []int64{1, 10000, 3333, 20000, 16665}

	var refunded int64
	total := 0
	for _, amount := range steps {
		total += RestoreQuantity(quantity, authorized, refunded, refunded+amount)
		refunded += amount
	}
	if refunded != authorized {
		t.Fatalf("test steps must sum to authorized, got %d", refunded)
	}
	if total != quantity {
		t.Errorf("restored %d units, want %d", total, quantity)
	}
}
