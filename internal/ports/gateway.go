package ports

import (
	"context"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

// IPaymentGateway is the remote card-payment provider. Failures are returned
// as *model.GatewayError. Only TransactionStatus may be retried by an
// implementation; the other calls mutate remote state.
type IPaymentGateway interface {
	CreateTransaction(ctx context.Context, buyOrder, sessionID string, amount int64, returnURL string) (*model.RemoteTransaction, error)
	ConfirmTransaction(ctx context.Context, token string) (*model.RemoteAuthorization, error)
	TransactionStatus(ctx context.Context, token string) (*model.RemoteAuthorization, error)
	Refund(ctx context.Context, token string, amount int64) (*model.RemoteRefund, error)
}

type IStockService interface {
	Check(ctx context.Context, productID, branchID string) (*model.StockLevel, error)
	Move(ctx context.Context, movement model.StockMovement) error
}

type IEventPublisher interface {
	Publish(ctx context.Context, event model.TransactionEvent) error
	Close() error
}
