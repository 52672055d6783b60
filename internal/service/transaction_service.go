package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/core"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/ports"
)

// Log actions recorded on the transaction audit trail.
const (
	ActionCreate         = "create"
	ActionTransition     = "transition"
	ActionGatewayCreate  = "gateway.create"
	ActionGatewayConfirm = "gateway.confirm"
	ActionGatewayStatus  = "gateway.status"
	ActionGatewayRefund  = "gateway.refund"
	ActionStockCheck     = "stock.check"
	ActionStockDecrement = "stock.decrement"
	ActionStockRestore   = "stock.restore"
	ActionRefundDenied   = "refund.denied"
	ActionWebhookDenied  = "webhook.denied"
)

type Options struct {
	Limits         core.Limits
	TTL            time.Duration
	BranchID       string
	GatewayTimeout time.Duration
	StockTimeout   time.Duration
	SweepBatch     int
}

func DefaultOptions() Options {
	return Options{
		Limits:         core.DefaultLimits(),
		TTL:            10 * time.Minute,
		GatewayTimeout: 30 * time.Second,
		StockTimeout:   5 * time.Second,
		SweepBatch:     100,
	}
}

// TransactionService drives the transaction lifecycle. It holds no
// per-transaction state; every decision is re-read from the store and every
// status change goes through the store's compare-and-set Transition.
type TransactionService struct {
	store   ports.ITransactionRepository
	gateway ports.IPaymentGateway
	stock   ports.IStockService
	events  ports.IEventPublisher
	logger  *zap.Logger
	opts    Options
	now     func() time.Time
}

func NewTransactionService(
	store ports.ITransactionRepository,
	gateway ports.IPaymentGateway,
	stock ports.IStockService,
	events ports.IEventPublisher,
	logger *zap.Logger,
	opts Options,
) *TransactionService {
	return &TransactionService{
		store:   store,
		gateway: gateway,
		stock:   stock,
		events:  events,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Create validates the request, checks stock, persists the transaction and
// opens it at the gateway. A gateway refusal leaves the row REJECTED; an
// ambiguous failure leaves it CREATED without token until it expires.
func (s *TransactionService) Create(ctx context.Context, req model.CreateTransactionRequest) (*model.Transaction, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.BuyOrder = strings.TrimSpace(req.BuyOrder)

	if err := core.ValidateCreate(req, s.opts.Limits); err != nil {
		return nil, err
	}
	if err := s.checkStock(ctx, req.Items); err != nil {
		return nil, err
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	payload, _ := json.Marshal(req)

	items := make([]model.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		sub, _ := core.Subtotal(it.Quantity, it.UnitPrice)
		items = append(items, model.LineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  sub,
		})
	}

	tx, err := s.store.CreateTransaction(ctx, &model.Transaction{
		BuyOrder:       req.BuyOrder,
		SessionID:      req.SessionID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         model.StatusCreated,
		ReturnURL:      req.ReturnURL,
		ExpiresAt:      s.now().Add(s.opts.TTL),
		RequestPayload: payload,
		ClientIP:       req.ClientIP,
		UserAgent:      req.UserAgent,
		Items:          items,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, &model.LogEntry{
		TransactionID: &tx.ID,
		Action:        ActionCreate,
		Description:   fmt.Sprintf("transaction %s created with status %s", tx.BuyOrder, tx.Status),
		Input:         payload,
	})

	// The gateway may accept the request even if our caller goes away.
	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.GatewayTimeout)
	defer cancel()

	start := s.now()
	remote, gerr := s.gateway.CreateTransaction(gctx, tx.BuyOrder, tx.SessionID, tx.Amount, tx.ReturnURL)
	s.recordCall(gctx, &tx.ID, ActionGatewayCreate, map[string]any{
		"buy_order":  tx.BuyOrder,
		"session_id": tx.SessionID,
		"amount":     tx.Amount,
		"return_url": tx.ReturnURL,
	}, remoteRaw(remote), gerr, start)

	if gerr != nil {
		s.logger.Error("gateway create failed",
			zap.Int64("transaction_id", tx.ID),
			zap.String("buy_order", tx.BuyOrder),
			zap.Bool("ambiguous", model.IsAmbiguous(gerr)),
			zap.Error(gerr),
		)
		if !model.IsAmbiguous(gerr) {
			rejected, terr := s.transition(gctx, tx, model.StatusRejected, model.TransitionFields{})
			if terr != nil {
				s.logger.Error("marking transaction rejected", zap.Int64("transaction_id", tx.ID), zap.Error(terr))
			} else {
				s.publish(gctx, "transaction.rejected", rejected)
			}
		}
		return nil, fmt.Errorf("creating transaction %s: %w", tx.BuyOrder, gerr)
	}

	updated, err := s.store.AttachToken(gctx, tx.ID, remote.Token, remote.URL, remote.Raw)
	if err != nil {
		s.logger.Error("storing gateway token", zap.Int64("transaction_id", tx.ID), zap.Error(err))
		return nil, fmt.Errorf("storing token for %s: %w", tx.BuyOrder, err)
	}

	s.publish(gctx, "transaction.created", updated)
	s.logger.Info("transaction created",
		zap.Int64("transaction_id", updated.ID),
		zap.String("buy_order", updated.BuyOrder),
		zap.String("token", remote.Token),
	)
	return updated, nil
}

// checkStock fails with *model.InsufficientStockError listing every short item.
func (s *TransactionService) checkStock(ctx context.Context, items []model.LineItemRequest) error {
	wanted := make(map[string]int)
	var order []string
	for _, it := range items {
		if _, ok := wanted[it.ProductID]; !ok {
			order = append(order, it.ProductID)
		}
		wanted[it.ProductID] += it.Quantity
	}

	var shortages []model.StockShortage
	for _, productID := range order {
		sctx, cancel := context.WithTimeout(ctx, s.opts.StockTimeout)
		start := s.now()
		level, err := s.stock.Check(sctx, productID, s.opts.BranchID)
		cancel()

		s.recordCall(ctx, nil, ActionStockCheck, map[string]any{
			"product_id": productID,
			"branch_id":  s.opts.BranchID,
			"requested":  wanted[productID],
		}, level, err, start)
		if err != nil {
			return fmt.Errorf("checking stock for %s: %w", productID, err)
		}
		if level.Available < wanted[productID] {
			shortages = append(shortages, model.StockShortage{
				ProductID: productID,
				Requested: wanted[productID],
				Available: level.Available,
			})
		}
	}
	if len(shortages) > 0 {
		return &model.InsufficientStockError{Items: shortages}
	}
	return nil
}

// transition applies a CAS status change from tx.Status and records it.
func (s *TransactionService) transition(ctx context.Context, tx *model.Transaction, next model.Status, fields model.TransitionFields) (*model.Transaction, error) {
	updated, err := s.store.Transition(ctx, tx.ID, tx.Status, next, fields)
	if err != nil {
		return nil, err
	}
	s.record(ctx, &model.LogEntry{
		TransactionID: &tx.ID,
		Action:        ActionTransition,
		Description:   fmt.Sprintf("%s -> %s", tx.Status, next),
		ResponseCode:  fields.ResponseCode,
	})
	return updated, nil
}

// moveStock applies one movement per line item. Failures are logged and left
// for out-of-band reconciliation; they never undo the financial state.
func (s *TransactionService) moveStock(ctx context.Context, tx *model.Transaction, action, movementType string, quantity func(model.LineItem) int) {
	for _, it := range tx.Items {
		qty := quantity(it)
		if qty <= 0 {
			continue
		}
		mv := model.StockMovement{ProductID: it.ProductID, BranchID: s.opts.BranchID, Type: movementType, Quantity: qty}

		sctx, cancel := context.WithTimeout(ctx, s.opts.StockTimeout)
		start := s.now()
		err := s.stock.Move(sctx, mv)
		cancel()

		s.recordCall(ctx, &tx.ID, action, mv, nil, err, start)
		if err != nil {
			s.logger.Warn("stock movement failed, reconcile out of band",
				zap.Int64("transaction_id", tx.ID),
				zap.String("product_id", it.ProductID),
				zap.String("type", movementType),
				zap.Int("quantity", qty),
				zap.Error(err),
			)
		}
	}
}

// record appends an audit entry. It never fails the operation it annotates.
func (s *TransactionService) record(ctx context.Context, entry *model.LogEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.store.AppendLog(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("appending transaction log", zap.String("action", entry.Action), zap.Error(err))
	}
}

// recordCall logs one external call with its input, output and outcome.
func (s *TransactionService) recordCall(ctx context.Context, txID *int64, action string, input, output any, callErr error, start time.Time) {
	entry := &model.LogEntry{
		TransactionID: txID,
		Action:        action,
		Description:   "ok",
		Duration:      s.now().Sub(start),
	}
	if input != nil {
		entry.Input, _ = json.Marshal(input)
	}
	switch out := output.(type) {
	case nil:
	case []byte:
		entry.Output = out
	default:
		entry.Output, _ = json.Marshal(out)
	}
	if callErr != nil {
		msg := callErr.Error()
		entry.ErrorMessage = &msg
		entry.Description = "failed"
		var gerr *model.GatewayError
		if errors.As(callErr, &gerr) && gerr.StatusCode != 0 {
			code := gerr.StatusCode
			entry.ResponseCode = &code
		}
	}
	s.record(ctx, entry)
}

func (s *TransactionService) publish(ctx context.Context, eventType string, tx *model.Transaction) {
	event := model.TransactionEvent{
		Type:          eventType,
		TransactionID: tx.ID,
		Token:         tx.TokenValue(),
		BuyOrder:      tx.BuyOrder,
		Status:        tx.Status,
		Amount:        tx.Amount,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("publishing event", zap.String("type", eventType), zap.Int64("transaction_id", tx.ID), zap.Error(err))
	}
}

func remoteRaw(remote *model.RemoteTransaction) any {
	if remote == nil {
		return nil
	}
	return remote.Raw
}
