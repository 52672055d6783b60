package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/core"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

// Confirm commits the transaction behind token. It is idempotent: once the
// transaction has left CREATED the stored result is returned and neither the
// gateway nor the stock service is called again.
//
// An ambiguous gateway failure is returned as is (model.IsAmbiguous) and the
// transaction stays CREATED until a status query or a later confirm resolves it.
func (s *TransactionService) Confirm(ctx context.Context, token string) (*model.Transaction, error) {
	tx, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if core.IsSettled(tx.Status) {
		return tx, nil
	}
	if s.expired(tx) {
		return s.expire(ctx, tx)
	}

	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.GatewayTimeout)
	defer cancel()

	start := s.now()
	remote, gerr := s.gateway.ConfirmTransaction(gctx, token)
	s.recordCall(gctx, &tx.ID, ActionGatewayConfirm, map[string]string{"token": token}, authorizationRaw(remote), gerr, start)

	if gerr != nil {
		if model.IsAmbiguous(gerr) {
			s.logger.Warn("confirm outcome unknown, status query required",
				zap.Int64("transaction_id", tx.ID),
				zap.String("token", token),
				zap.Error(gerr),
			)
			return nil, fmt.Errorf("confirming %s: %w", token, gerr)
		}
		s.logger.Info("gateway declined confirm", zap.String("token", token), zap.Error(gerr))
		return s.settle(gctx, tx, model.StatusRejected, model.TransitionFields{})
	}
	if !remote.Final() {
		// Another commit may still be running at the gateway.
		err := &model.GatewayError{
			Kind:    model.ErrGatewayProtocol,
			Op:      "confirm",
			Message: fmt.Sprintf("gateway reports status %q without a final response code", remote.Status),
		}
		s.logger.Warn("confirm outcome not final yet",
			zap.Int64("transaction_id", tx.ID),
			zap.String("token", token),
			zap.Error(err),
		)
		return nil, fmt.Errorf("confirming %s: %w", token, err)
	}

	return s.applyAuthorization(gctx, tx, remote)
}

// Status returns the local state, refreshing a pending transaction from the
// gateway. A final remote outcome is applied through the same path as Confirm.
func (s *TransactionService) Status(ctx context.Context, token string) (*model.Transaction, error) {
	tx, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if core.IsSettled(tx.Status) {
		return tx, nil
	}
	if s.expired(tx) {
		return s.expire(ctx, tx)
	}

	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.GatewayTimeout)
	defer cancel()

	start := s.now()
	remote, gerr := s.gateway.TransactionStatus(gctx, token)
	s.recordCall(gctx, &tx.ID, ActionGatewayStatus, map[string]string{"token": token}, authorizationRaw(remote), gerr, start)
	if gerr != nil {
		s.logger.Warn("status refresh failed, returning local state", zap.String("token", token), zap.Error(gerr))
		return tx, nil
	}
	if !remote.Final() {
		return tx, nil
	}
	return s.applyAuthorization(gctx, tx, remote)
}

// applyAuthorization maps a final gateway answer onto AUTHORIZED or REJECTED.
// Callers must check remote.Final first.
func (s *TransactionService) applyAuthorization(ctx context.Context, tx *model.Transaction, remote *model.RemoteAuthorization) (*model.Transaction, error) {
	if remote.Approved() && remote.Amount != 0 && remote.Amount != tx.Amount {
		err := &model.GatewayError{
			Kind:    model.ErrGatewayProtocol,
			Op:      "confirm",
			Message: fmt.Sprintf("authorized amount %d differs from transaction amount %d", remote.Amount, tx.Amount),
		}
		s.logger.Error("gateway amount mismatch", zap.Int64("transaction_id", tx.ID), zap.Error(err))
		return nil, err
	}

	fields := model.TransitionFields{
		ResponseCode:    remote.ResponseCode,
		ResponsePayload: remote.Raw,
	}
	if !remote.Approved() {
		return s.settle(ctx, tx, model.StatusRejected, fields)
	}

	now := s.now()
	installments := core.ClampInstallments(remote.Installments)
	fields.Installments = &installments
	fields.AuthorizedAt = &now
	if remote.AuthorizationCode != "" {
		fields.AuthorizationCode = &remote.AuthorizationCode
	}
	if remote.CardType != "" {
		fields.CardType = &remote.CardType
	}
	if remote.CardNumber != "" {
		fields.CardLast4 = &remote.CardNumber
	}
	if !remote.TransactionDate.IsZero() {
		fields.TransactionDate = &remote.TransactionDate
	}
	return s.settle(ctx, tx, model.StatusAuthorized, fields)
}

// settle moves a CREATED transaction to its outcome. Losing the CAS race to a
// concurrent confirm is not an error: the winner's result is re-read and
// returned, and only the winner applies side effects.
func (s *TransactionService) settle(ctx context.Context, tx *model.Transaction, next model.Status, fields model.TransitionFields) (*model.Transaction, error) {
	updated, err := s.transition(ctx, tx, next, fields)
	if err != nil {
		if !errors.Is(err, model.ErrStateConflict) {
			return nil, err
		}
		fresh, ferr := s.store.FindByID(ctx, tx.ID)
		if ferr != nil {
			return nil, ferr
		}
		if core.IsSettled(fresh.Status) {
			return fresh, nil
		}
		return nil, err
	}

	switch next {
	case model.StatusAuthorized:
		s.moveStock(ctx, updated, ActionStockDecrement, model.MovementOut, func(it model.LineItem) int { return it.Quantity })
		s.publish(ctx, "transaction.authorized", updated)
	case model.StatusRejected:
		s.publish(ctx, "transaction.rejected", updated)
	}
	s.logger.Info("transaction settled",
		zap.Int64("transaction_id", updated.ID),
		zap.String("token", updated.TokenValue()),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *TransactionService) expired(tx *model.Transaction) bool {
	return tx.Status == model.StatusCreated && s.now().After(tx.ExpiresAt)
}

func (s *TransactionService) expire(ctx context.Context, tx *model.Transaction) (*model.Transaction, error) {
	updated, err := s.transition(ctx, tx, model.StatusExpired, model.TransitionFields{})
	if err != nil {
		if errors.Is(err, model.ErrStateConflict) {
			return s.store.FindByID(ctx, tx.ID)
		}
		return nil, err
	}
	s.publish(ctx, "transaction.expired", updated)
	return updated, nil
}

func authorizationRaw(remote *model.RemoteAuthorization) any {
	if remote == nil {
		return nil
	}
	return remote.Raw
}
