package core

import (
	"errors"
	"testing"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.Status
		want     bool
	}{
		{model.StatusCreated, model.StatusAuthorized, true},
		{model.StatusCreated, model.StatusRejected, true},
		{model.StatusCreated, model.StatusExpired, true},
		{model.StatusCreated, model.StatusVoided, false},
		{model.StatusAuthorized, model.StatusRefundedPartial, true},
		{model.StatusAuthorized, model.StatusRefundedTotal, true},
		{model.StatusAuthorized, model.StatusVoided, true},
		{model.StatusAuthorized, model.StatusExpired, false},
		{model.StatusAuthorized, model.StatusRejected, false},
		{model.StatusRefundedPartial, model.StatusRefundedPartial, true},
		{model.StatusRefundedPartial, model.StatusRefundedTotal, true},
		{model.StatusRefundedPartial, model.StatusVoided, false},
		{model.StatusRejected, model.StatusAuthorized, false},
		{model.StatusExpired, model.StatusAuthorized, false},
		{model.StatusVoided, model.StatusRefundedTotal, false},
		{model.StatusRefundedTotal, model.StatusRefundedPartial, false},
		{model.Status("BOGUS"), model.StatusCreated, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestValidateTransitionWrapsConflict(t *testing.T) {
	err := ValidateTransition(model.StatusRejected, model.StatusAuthorized)
	if !errors.Is(err, model.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
	if err := ValidateTransition(model.StatusCreated, model.StatusAuthorized); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for status := range transitions {
		if IsTerminal(status) && len(transitions[status]) != 0 {
			t.Errorf("terminal status %s has outgoing transitions", status)
		}
	}
	if IsTerminal(model.StatusAuthorized) || IsTerminal(model.StatusRefundedPartial) {
		t.Error("refundable statuses must not be terminal")
	}
}

func TestIsRefundable(t *testing.T) {
	for _, s := range []model.Status{model.StatusAuthorized, model.StatusRefundedPartial} {
		if !IsRefundable(s) {
			t.Errorf("expected %s to be refundable", s)
		}
	}
	for _, s := range []model.Status{model.StatusCreated, model.StatusRejected, model.StatusExpired, model.StatusVoided, model.StatusRefundedTotal} {
		if IsRefundable(s) {
			t.Errorf("expected %s not to be refundable", s)
		}
	}
}

func TestStatusAfterRefund(t *testing.T) {
	if got := StatusAfterRefund(50000, 20000, model.RefundPartial); got != model.StatusRefundedPartial {
		t.Errorf("partial: got %s", got)
	}
	if got := StatusAfterRefund(50000, 50000, model.RefundTotal); got != model.StatusRefundedTotal {
		t.Errorf("total: got %s", got)
	}
	if got := StatusAfterRefund(50000, 50000, model.RefundVoidFull); got != model.StatusVoided {
		t.Errorf("void: got %s", got)
	}
}

func TestRefundTypeFor(t *testing.T) {
	if got := RefundTypeFor(model.RemoteReversed, 50000, 50000); got != model.RefundVoidFull {
		t.Errorf("reversed: got %s", got)
	}
	if got := RefundTypeFor(model.RemoteNullified, 50000, 50000); got != model.RefundTotal {
		t.Errorf("nullified full: got %s", got)
	}
	if got := RefundTypeFor(model.RemoteNullified, 50000, 10000); got != model.RefundPartial {
		t.Errorf("nullified partial: got %s", got)
	}
}
