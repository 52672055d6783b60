package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

func (r *TransactionRepository) AppendLog(ctx context.Context, entry *model.LogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO transaction_logs
			(id, transaction_id, action, description, input, output, response_code, error_message, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.TransactionID, entry.Action, entry.Description, entry.Input, entry.Output,
		entry.ResponseCode, entry.ErrorMessage, entry.Duration.Milliseconds(), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error appending log: %w", err)
	}
	return nil
}

func (r *TransactionRepository) ListLogs(ctx context.Context, transactionID int64) ([]model.LogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, transaction_id, action, description, input, output, response_code, error_message, duration_ms, created_at
		FROM transaction_logs WHERE transaction_id = $1 ORDER BY created_at, id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("error querying logs: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var (
			e          model.LogEntry
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Action, &e.Description, &e.Input, &e.Output,
			&e.ResponseCode, &e.ErrorMessage, &durationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning log: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return entries, nil
}
