package repository

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE SEQUENCE IF NOT EXISTS buy_order_seq`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id                 BIGSERIAL PRIMARY KEY,
		token              TEXT UNIQUE,
		redirect_url       TEXT,
		buy_order          VARCHAR(26) NOT NULL UNIQUE,
		session_id         VARCHAR(61) NOT NULL,
		amount             BIGINT NOT NULL CHECK (amount > 0),
		currency           VARCHAR(8) NOT NULL,
		status             VARCHAR(32) NOT NULL,
		return_url         TEXT NOT NULL,
		response_code      INT,
		authorization_code VARCHAR(16),
		card_type          VARCHAR(16),
		card_last4         VARCHAR(4),
		installments       INT NOT NULL DEFAULT 1 CHECK (installments BETWEEN 1 AND 24),
		transaction_date   TIMESTAMPTZ,
		authorized_at      TIMESTAMPTZ,
		expires_at         TIMESTAMPTZ NOT NULL,
		request_payload    BYTEA,
		response_payload   BYTEA,
		client_ip          VARCHAR(64) NOT NULL DEFAULT '',
		user_agent         TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_status_expires_idx ON transactions (status, expires_at)`,
	`CREATE TABLE IF NOT EXISTS line_items (
		id             BIGSERIAL PRIMARY KEY,
		transaction_id BIGINT NOT NULL REFERENCES transactions (id),
		product_id     VARCHAR(64) NOT NULL,
		quantity       INT NOT NULL CHECK (quantity >= 1),
		unit_price     BIGINT NOT NULL CHECK (unit_price > 0),
		subtotal       BIGINT NOT NULL,
		CHECK (subtotal = quantity * unit_price)
	)`,
	`CREATE INDEX IF NOT EXISTS line_items_transaction_idx ON line_items (transaction_id)`,
	`CREATE TABLE IF NOT EXISTS refunds (
		id                 UUID PRIMARY KEY,
		transaction_id     BIGINT NOT NULL REFERENCES transactions (id),
		type               VARCHAR(16),
		amount             BIGINT NOT NULL CHECK (amount > 0),
		motive             TEXT NOT NULL DEFAULT '',
		token              TEXT NOT NULL,
		authorization_code VARCHAR(16),
		response_code      INT,
		balance            BIGINT,
		status             VARCHAR(16) NOT NULL,
		requested_at       TIMESTAMPTZ NOT NULL,
		processed_at       TIMESTAMPTZ,
		response_payload   BYTEA
	)`,
	`CREATE INDEX IF NOT EXISTS refunds_transaction_idx ON refunds (transaction_id)`,
	`CREATE TABLE IF NOT EXISTS transaction_logs (
		id             UUID PRIMARY KEY,
		transaction_id BIGINT REFERENCES transactions (id),
		action         VARCHAR(64) NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		input          BYTEA,
		output         BYTEA,
		response_code  INT,
		error_message  TEXT,
		duration_ms    BIGINT NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS transaction_logs_transaction_idx ON transaction_logs (transaction_id, created_at)`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Queryable) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
