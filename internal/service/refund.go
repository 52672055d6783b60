package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/core"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

type RefundResult struct {
	Refund      *model.Refund
	Transaction *model.Transaction
}

// Refund reverses part or all of an authorized amount. Invalid requests are
// refused before any gateway call. A refund refused or failed at the gateway
// is kept with status rejected or error, and the transaction is unchanged.
// When the gateway outcome is unknown the refund is kept as unknown and its
// amount stays reserved.
func (s *TransactionService) Refund(ctx context.Context, token string, req model.RefundRequest) (*RefundResult, error) {
	tx, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	processed, pending, err := s.store.RefundTotals(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateRefund(tx, req, processed, pending); err != nil {
		s.denyRefund(ctx, tx, req, err)
		return nil, err
	}

	refund := &model.Refund{
		TransactionID: tx.ID,
		Amount:        req.Amount,
		Motive:        req.Motive,
		Token:         token,
	}
	if err := s.store.RecordRefund(ctx, refund); err != nil {
		if errors.Is(err, model.ErrInvalidRefundAmount) {
			s.denyRefund(ctx, tx, req, err)
		}
		return nil, err
	}

	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.GatewayTimeout)
	defer cancel()

	start := s.now()
	remote, gerr := s.gateway.Refund(gctx, token, req.Amount)
	var raw any
	if remote != nil {
		raw = remote.Raw
	}
	s.recordCall(gctx, &tx.ID, ActionGatewayRefund, map[string]any{"token": token, "amount": req.Amount}, raw, gerr, start)

	now := s.now()
	refund.ProcessedAt = &now

	if gerr != nil {
		switch {
		case errors.Is(gerr, model.ErrGatewayRejected):
			refund.Status = model.RefundRejected
		case model.IsAmbiguous(gerr):
			refund.Status = model.RefundUnknown
		default:
			refund.Status = model.RefundError
		}
		if err := s.store.CompleteRefund(gctx, refund); err != nil {
			s.logger.Error("recording failed refund", zap.String("refund_id", refund.ID), zap.Error(err))
		}
		s.logger.Warn("gateway refund failed",
			zap.Int64("transaction_id", tx.ID),
			zap.String("refund_id", refund.ID),
			zap.String("refund_status", string(refund.Status)),
			zap.Error(gerr),
		)
		return &RefundResult{Refund: refund, Transaction: tx}, fmt.Errorf("refunding %s: %w", token, gerr)
	}

	code := remote.ResponseCode
	balance := remote.Balance
	refund.Status = model.RefundProcessed
	refund.ResponseCode = &code
	refund.Balance = &balance
	refund.ResponsePayload = remote.Raw
	if remote.AuthorizationCode != "" {
		refund.AuthorizationCode = &remote.AuthorizationCode
	}
	refund.Type = core.RefundTypeFor(remote.Type, tx.Amount, processed+req.Amount)
	if err := s.store.CompleteRefund(gctx, refund); err != nil {
		// The money moved; the row must be fixed by reconciliation.
		s.logger.Error("recording processed refund", zap.String("refund_id", refund.ID), zap.Error(err))
		return nil, err
	}

	after, err := s.store.SumProcessedRefunds(gctx, tx.ID)
	if err != nil {
		return nil, err
	}
	before := after - req.Amount

	updated, err := s.applyRefund(gctx, tx, refund.Type, after)
	if err != nil {
		return nil, err
	}

	s.moveStock(gctx, updated, ActionStockRestore, model.MovementIn, func(it model.LineItem) int {
		return core.RestoreQuantity(it.Quantity, tx.Amount, before, after)
	})
	eventType := "transaction.refunded"
	if updated.Status == model.StatusVoided {
		eventType = "transaction.voided"
	}
	s.publish(gctx, eventType, updated)

	s.logger.Info("refund processed",
		zap.Int64("transaction_id", tx.ID),
		zap.String("refund_id", refund.ID),
		zap.Int64("amount", req.Amount),
		zap.Int64("refunded", after),
		zap.String("status", string(updated.Status)),
	)
	return &RefundResult{Refund: refund, Transaction: updated}, nil
}

// applyRefund moves the transaction to the status matching the refunded sum.
// A conflict with a concurrent refund is retried once from the fresh status.
func (s *TransactionService) applyRefund(ctx context.Context, tx *model.Transaction, refundType model.RefundType, refunded int64) (*model.Transaction, error) {
	current := tx
	for attempt := 0; attempt < 2; attempt++ {
		next := core.StatusAfterRefund(current.Amount, refunded, refundType)
		if !core.CanTransition(current.Status, next) && current.Status == model.StatusRefundedPartial {
			// A reversal after a partial refund settles by sum.
			next = core.StatusAfterRefund(current.Amount, refunded, model.RefundPartial)
		}
		if current.Status == next && next != model.StatusRefundedPartial {
			return current, nil
		}
		if !core.CanTransition(current.Status, next) {
			return current, nil
		}

		updated, err := s.transition(ctx, current, next, model.TransitionFields{})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, model.ErrStateConflict) {
			return nil, err
		}
		if current, err = s.store.FindByID(ctx, tx.ID); err != nil {
			return nil, err
		}
		if refunded, err = s.store.SumProcessedRefunds(ctx, tx.ID); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("transaction %d: refund status update lost twice: %w", tx.ID, model.ErrStateConflict)
}

func (s *TransactionService) denyRefund(ctx context.Context, tx *model.Transaction, req model.RefundRequest, reason error) {
	msg := reason.Error()
	input := fmt.Appendf(nil, `{"amount":%d}`, req.Amount)
	s.record(ctx, &model.LogEntry{
		TransactionID: &tx.ID,
		Action:        ActionRefundDenied,
		Description:   fmt.Sprintf("refund of %d refused in status %s", req.Amount, tx.Status),
		Input:         input,
		ErrorMessage:  &msg,
	})
}
