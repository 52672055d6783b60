package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/core"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

// Combines all needed interfaces
type Queryable interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type DB interface {
	Queryable
	Begin(ctx context.Context) (pgx.Tx, error)
}

const uniqueViolation = "23505"

const transactionColumns = `id, token, redirect_url, buy_order, session_id, amount, currency, status,
	return_url, response_code, authorization_code, card_type, card_last4, installments,
	transaction_date, authorized_at, expires_at, request_payload, response_payload,
	client_ip, user_agent, created_at, updated_at`

type TransactionRepository struct {
	db  DB
	now func() time.Time
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: pool, now: time.Now}
}

func (r *TransactionRepository) CreateTransaction(ctx context.Context, tx *model.Transaction) (*model.Transaction, error) {
	if err := core.ValidateRecord(tx, r.now()); err != nil {
		return nil, err
	}

	var created *model.Transaction
	err := r.WithTransaction(ctx, func(txRepo *TransactionRepository) error {
		buyOrder := tx.BuyOrder
		if buyOrder == "" {
			var seq int64
			if err := txRepo.db.QueryRow(ctx, `SELECT nextval('buy_order_seq')`).Scan(&seq); err != nil {
				return fmt.Errorf("error generating buy order: %w", err)
			}
			buyOrder = fmt.Sprintf("O-%d", seq)
		}

		row := txRepo.db.QueryRow(ctx, `
			INSERT INTO transactions
				(buy_order, session_id, amount, currency, status, return_url, installments,
				 expires_at, request_payload, client_ip, user_agent)
			VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9, $10)
			RETURNING `+transactionColumns,
			buyOrder, tx.SessionID, tx.Amount, tx.Currency, string(model.StatusCreated), tx.ReturnURL,
			tx.ExpiresAt, tx.RequestPayload, tx.ClientIP, tx.UserAgent,
		)
		t, err := scanTransaction(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return model.NewValidationError(fmt.Sprintf("buy_order %q already used", buyOrder))
			}
			return fmt.Errorf("error inserting transaction: %w", err)
		}

		rows := make([][]any, 0, len(tx.Items))
		for _, it := range tx.Items {
			rows = append(rows, []any{t.ID, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal})
		}
		if _, err := txRepo.db.CopyFrom(ctx,
			pgx.Identifier{"line_items"},
			[]string{"transaction_id", "product_id", "quantity", "unit_price", "subtotal"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("error inserting line items: %w", err)
		}

		if t.Items, err = txRepo.loadItems(ctx, t.ID); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id int64) (*model.Transaction, error) {
	return r.findOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *TransactionRepository) FindByToken(ctx context.Context, token string) (*model.Transaction, error) {
	return r.findOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE token = $1`, token)
}

func (r *TransactionRepository) findOne(ctx context.Context, query string, arg any) (*model.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %v: %w", arg, model.ErrNotFound)
		}
		return nil, fmt.Errorf("error getting transaction: %w", err)
	}
	if tx.Items, err = r.loadItems(ctx, tx.ID); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepository) AttachToken(ctx context.Context, id int64, token, redirectURL string, payload []byte) (*model.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE transactions
		SET token = $2, redirect_url = $3, response_payload = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5 AND token IS NULL
		RETURNING `+transactionColumns,
		id, token, redirectURL, payload, string(model.StatusCreated),
	)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missOrConflict(ctx, id, "token already attached or transaction not in CREATED")
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("token %s already assigned: %w", token, model.ErrStateConflict)
		}
		return nil, fmt.Errorf("error attaching token: %w", err)
	}
	if tx.Items, err = r.loadItems(ctx, tx.ID); err != nil {
		return nil, err
	}
	return tx, nil
}

// Transition is one conditional UPDATE. Two racing callers with the same
// expected status cannot both succeed.
func (r *TransactionRepository) Transition(ctx context.Context, id int64, expected, next model.Status, f model.TransitionFields) (*model.Transaction, error) {
	if err := core.ValidateTransition(expected, next); err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, `
		UPDATE transactions SET
			status             = $3,
			response_code      = COALESCE($4, response_code),
			authorization_code = COALESCE($5, authorization_code),
			card_type          = COALESCE($6, card_type),
			card_last4         = COALESCE($7, card_last4),
			installments       = COALESCE($8, installments),
			transaction_date   = COALESCE($9, transaction_date),
			authorized_at      = COALESCE($10, authorized_at),
			response_payload   = COALESCE($11, response_payload),
			updated_at         = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+transactionColumns,
		id, string(expected), string(next),
		f.ResponseCode, f.AuthorizationCode, f.CardType, f.CardLast4, f.Installments,
		f.TransactionDate, f.AuthorizedAt, f.ResponsePayload,
	)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missOrConflict(ctx, id, fmt.Sprintf("expected status %s", expected))
		}
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}
	if tx.Items, err = r.loadItems(ctx, tx.ID); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepository) ExpireCreated(ctx context.Context, now time.Time, limit int) ([]model.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE transactions SET status = $3, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM transactions
			WHERE status = $2 AND expires_at < $1
			ORDER BY expires_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		) AND status = $2
		RETURNING `+transactionColumns,
		now, string(model.StatusCreated), string(model.StatusExpired), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("error expiring transactions: %w", err)
	}
	defer rows.Close()

	var expired []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		expired = append(expired, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return expired, nil
}

func (r *TransactionRepository) missOrConflict(ctx context.Context, id int64, detail string) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("transaction %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("error reading transaction status: %w", err)
	}
	return fmt.Errorf("transaction %d is %s, %s: %w", id, status, detail, model.ErrStateConflict)
}

func (r *TransactionRepository) loadItems(ctx context.Context, transactionID int64) ([]model.LineItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, transaction_id, product_id, quantity, unit_price, subtotal
		FROM line_items WHERE transaction_id = $1 ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("error querying line items: %w", err)
	}
	defer rows.Close()

	var items []model.LineItem
	for rows.Next() {
		var it model.LineItem
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("error scanning line item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return items, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		tx     model.Transaction
		status string
	)
	err := row.Scan(
		&tx.ID,
		&tx.Token,
		&tx.RedirectURL,
		&tx.BuyOrder,
		&tx.SessionID,
		&tx.Amount,
		&tx.Currency,
		&status,
		&tx.ReturnURL,
		&tx.ResponseCode,
		&tx.AuthorizationCode,
		&tx.CardType,
		&tx.CardLast4,
		&tx.Installments,
		&tx.TransactionDate,
		&tx.AuthorizedAt,
		&tx.ExpiresAt,
		&tx.RequestPayload,
		&tx.ResponsePayload,
		&tx.ClientIP,
		&tx.UserAgent,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Status = model.Status(status)
	return &tx, nil
}

func (r *TransactionRepository) WithTransaction(ctx context.Context,
	fn func(*TransactionRepository) error,
) error {
	// Begin a transaction (default options)
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Create a transaction-scoped repository
	txRepo := &TransactionRepository{db: tx, now: r.now}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p) // Re-throw panic after cleanup
		}
	}()

	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback failed: %w", err, rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}
