package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/core"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

const refundColumns = `id, transaction_id, type, amount, motive, token, authorization_code,
	response_code, balance, status, requested_at, processed_at, response_payload`

// RecordRefund locks the transaction row so concurrent reservations are
// checked against each other before a pending refund is inserted.
func (r *TransactionRepository) RecordRefund(ctx context.Context, refund *model.Refund) error {
	if refund.ID == "" {
		refund.ID = uuid.NewString()
	}
	if refund.RequestedAt.IsZero() {
		refund.RequestedAt = r.now()
	}
	refund.Status = model.RefundPending

	return r.WithTransaction(ctx, func(txRepo *TransactionRepository) error {
		var (
			amount int64
			status string
		)
		err := txRepo.db.QueryRow(ctx,
			`SELECT amount, status FROM transactions WHERE id = $1 FOR UPDATE`,
			refund.TransactionID,
		).Scan(&amount, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("transaction %d: %w", refund.TransactionID, model.ErrNotFound)
			}
			return fmt.Errorf("error locking transaction: %w", err)
		}
		if !core.IsRefundable(model.Status(status)) {
			return &model.RefundAmountError{Problems: []string{fmt.Sprintf("transaction in status %s cannot be refunded", status)}}
		}

		processed, pending, err := txRepo.RefundTotals(ctx, refund.TransactionID)
		if err != nil {
			return err
		}
		if remaining := core.RefundableBalance(amount, processed, pending); refund.Amount > remaining {
			return &model.RefundAmountError{Problems: []string{fmt.Sprintf("amount %d exceeds refundable balance %d", refund.Amount, remaining)}}
		}

		_, err = txRepo.db.Exec(ctx, `
			INSERT INTO refunds (id, transaction_id, amount, motive, token, status, requested_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			refund.ID, refund.TransactionID, refund.Amount, refund.Motive, refund.Token,
			string(model.RefundPending), refund.RequestedAt,
		)
		if err != nil {
			return fmt.Errorf("error inserting refund: %w", err)
		}
		return nil
	})
}

// CompleteRefund only updates a refund that is still pending; a processed or
// rejected refund is never rewritten.
func (r *TransactionRepository) CompleteRefund(ctx context.Context, refund *model.Refund) error {
	var refundType *string
	if refund.Type != "" {
		s := string(refund.Type)
		refundType = &s
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE refunds SET
			status = $2, type = $3, authorization_code = $4, response_code = $5,
			balance = $6, processed_at = $7, response_payload = $8
		WHERE id = $1 AND status = $9`,
		refund.ID, string(refund.Status), refundType, refund.AuthorizationCode, refund.ResponseCode,
		refund.Balance, refund.ProcessedAt, refund.ResponsePayload, string(model.RefundPending),
	)
	if err != nil {
		return fmt.Errorf("error completing refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refund %s is no longer pending: %w", refund.ID, model.ErrStateConflict)
	}
	return nil
}

func (r *TransactionRepository) SumProcessedRefunds(ctx context.Context, transactionID int64) (int64, error) {
	processed, _, err := r.RefundTotals(ctx, transactionID)
	return processed, err
}

// RefundTotals returns the processed sum and the sum still reserved by pending
// or unknown refunds.
func (r *TransactionRepository) RefundTotals(ctx context.Context, transactionID int64) (int64, int64, error) {
	var processed, pending int64
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = $2), 0),
			COALESCE(SUM(amount) FILTER (WHERE status IN ($3, $4)), 0)
		FROM refunds WHERE transaction_id = $1`,
		transactionID, string(model.RefundProcessed), string(model.RefundPending), string(model.RefundUnknown),
	).Scan(&processed, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("error summing refunds: %w", err)
	}
	return processed, pending, nil
}

func (r *TransactionRepository) ListRefunds(ctx context.Context, transactionID int64) ([]model.Refund, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE transaction_id = $1 ORDER BY requested_at`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying refunds: %w", err)
	}
	defer rows.Close()

	var refunds []model.Refund
	for rows.Next() {
		var (
			rf         model.Refund
			refundType *string
			status     string
		)
		if err := rows.Scan(
			&rf.ID,
			&rf.TransactionID,
			&refundType,
			&rf.Amount,
			&rf.Motive,
			&rf.Token,
			&rf.AuthorizationCode,
			&rf.ResponseCode,
			&rf.Balance,
			&status,
			&rf.RequestedAt,
			&rf.ProcessedAt,
			&rf.ResponsePayload,
		); err != nil {
			return nil, fmt.Errorf("error scanning refund: %w", err)
		}
		if refundType != nil {
			rf.Type = model.RefundType(*refundType)
		}
		rf.Status = model.RefundStatus(status)
		refunds = append(refunds, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return refunds, nil
}
