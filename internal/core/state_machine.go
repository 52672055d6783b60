package core

import (
	"fmt"
	"slices"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

// transitions lists, per status, the statuses it may move to.
// REFUNDED_PARTIAL may repeat while a balance remains.
var transitions = map[model.Status][]model.Status{
	model.StatusCreated: {
		model.StatusAuthorized,
		model.StatusRejected,
		model.StatusExpired,
	},
	model.StatusAuthorized: {
		model.StatusRefundedPartial,
		model.StatusRefundedTotal,
		model.StatusVoided,
	},
	model.StatusRefundedPartial: {
		model.StatusRefundedPartial,
		model.StatusRefundedTotal,
	},
	model.StatusRejected:      {},
	model.StatusVoided:        {},
	model.StatusRefundedTotal: {},
	model.StatusExpired:       {},
}

func CanTransition(from, to model.Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

func ValidateTransition(from, to model.Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", model.ErrStateConflict, from, to)
	}
	return nil
}

// IsTerminal reports whether no further gateway interaction can change the
// authorization outcome of a transaction in status s.
func IsTerminal(s model.Status) bool {
	switch s {
	case model.StatusRejected, model.StatusVoided, model.StatusRefundedTotal, model.StatusExpired:
		return true
	}
	return false
}

// IsSettled reports whether the authorization outcome is known, i.e. the
// transaction has left CREATED.
func IsSettled(s model.Status) bool {
	return s != model.StatusCreated
}

func IsRefundable(s model.Status) bool {
	return s == model.StatusAuthorized || s == model.StatusRefundedPartial
}

// StatusAfterRefund returns the status a refundable transaction moves to once
// refunded (the processed sum, including the new refund) is applied.
func StatusAfterRefund(authorized, refunded int64, refundType model.RefundType) model.Status {
	if refundType == model.RefundVoidFull {
		return model.StatusVoided
	}
	if refunded >= authorized {
		return model.StatusRefundedTotal
	}
	return model.StatusRefundedPartial
}

// RefundTypeFor classifies a processed refund from the gateway's reported type
// and the amount refunded so far.
func RefundTypeFor(remoteType string, authorized, refunded int64) model.RefundType {
	if remoteType == model.RemoteReversed {
		return model.RefundVoidFull
	}
	if refunded >= authorized {
		return model.RefundTotal
	}
	return model.RefundPartial
}
