package ports

import (
	"context"
	"time"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

type ITransactionRepository interface {
	// CreateTransaction validates and persists the transaction and its line
	// items atomically, assigning ID, timestamps and a buy order when empty.
	CreateTransaction(ctx context.Context, tx *model.Transaction) (*model.Transaction, error)
	FindByID(ctx context.Context, id int64) (*model.Transaction, error)
	FindByToken(ctx context.Context, token string) (*model.Transaction, error)
	// AttachToken stores the gateway token on a CREATED transaction that has none yet.
	AttachToken(ctx context.Context, id int64, token, redirectURL string, payload []byte) (*model.Transaction, error)
	// Transition is a single conditional update: it applies next only if the
	// current status is still expected, and fails with model.ErrStateConflict otherwise.
	Transition(ctx context.Context, id int64, expected, next model.Status, fields model.TransitionFields) (*model.Transaction, error)
	// ExpireCreated moves CREATED transactions whose expiry is before now to EXPIRED
	// and returns the ones it changed.
	ExpireCreated(ctx context.Context, now time.Time, limit int) ([]model.Transaction, error)

	AppendLog(ctx context.Context, entry *model.LogEntry) error
	ListLogs(ctx context.Context, transactionID int64) ([]model.LogEntry, error)

	// RecordRefund reserves a pending refund; it fails with
	// model.ErrInvalidRefundAmount if the amount exceeds what is left after
	// processed and pending refunds.
	RecordRefund(ctx context.Context, refund *model.Refund) error
	// CompleteRefund writes the gateway outcome of a pending refund, once.
	CompleteRefund(ctx context.Context, refund *model.Refund) error
	SumProcessedRefunds(ctx context.Context, transactionID int64) (int64, error)
	RefundTotals(ctx context.Context, transactionID int64) (processed, pending int64, err error)
	ListRefunds(ctx context.Context, transactionID int64) ([]model.Refund, error)
}
