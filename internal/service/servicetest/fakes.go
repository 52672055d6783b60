// Package servicetest provides in-memory implementations of the service ports
// for tests.
package servicetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/core"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/ports"
)

var (
	_ ports.ITransactionRepository = (*MockStore)(nil)
	_ ports.IPaymentGateway        = (*MockGateway)(nil)
	_ ports.IStockService          = (*MockStock)(nil)
	_ ports.IEventPublisher        = (*MockPublisher)(nil)
)

// Common test errors
var (
	ErrMockStore = errors.New("mock store error")
	ErrMockStock = errors.New("mock stock error")
	ErrMockKafka = errors.New("mock publish error")
)

// MockStore is an in-memory ITransactionRepository. Transition is a
// compare-and-set under a single mutex.
type MockStore struct {
	mu      sync.Mutex
	nextID  int64
	seq     int64
	txs     map[int64]*model.Transaction
	refunds []*model.Refund
	logs    []model.LogEntry

	TransitionCalls int
	FailAppendLog   bool
}

func NewMockStore() *MockStore {
	return &MockStore{txs: make(map[int64]*model.Transaction)}
}

func cloneTx(tx *model.Transaction) *model.Transaction {
	c := *tx
	c.Items = append([]model.LineItem(nil), tx.Items...)
	return &c
}

func (m *MockStore) CreateTransaction(ctx context.Context, tx *model.Transaction) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if err := core.ValidateRecord(tx, now); err != nil {
		return nil, err
	}
	for _, existing := range m.txs {
		if tx.BuyOrder != "" && existing.BuyOrder == tx.BuyOrder {
			return nil, model.NewValidationError("buy_order already used")
		}
	}

	m.nextID++
	c := cloneTx(tx)
	c.ID = m.nextID
	if c.BuyOrder == "" {
		m.seq++
		c.BuyOrder = fmt.Sprintf("O-%d", m.seq)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	for i := range c.Items {
		c.Items[i].ID = int64(i + 1)
		c.Items[i].TransactionID = c.ID
	}
	m.txs[c.ID] = c
	return cloneTx(c), nil
}

func (m *MockStore) FindByID(ctx context.Context, id int64) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneTx(tx), nil
}

func (m *MockStore) FindByToken(ctx context.Context, token string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs {
		if tx.Token != nil && *tx.Token == token {
			return cloneTx(tx), nil
		}
	}
	return nil, fmt.Errorf("transaction with token %s: %w", token, model.ErrNotFound)
}

func (m *MockStore) AttachToken(ctx context.Context, id int64, token, redirectURL string, payload []byte) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if tx.Status != model.StatusCreated || tx.Token != nil {
		return nil, model.ErrStateConflict
	}
	tx.Token = &token
	tx.RedirectURL = &redirectURL
	tx.ResponsePayload = payload
	return cloneTx(tx), nil
}

func (m *MockStore) Transition(ctx context.Context, id int64, expected, next model.Status, f model.TransitionFields) (*model.Transaction, error) {
	if err := core.ValidateTransition(expected, next); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionCalls++

	tx, ok := m.txs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if tx.Status != expected {
		return nil, fmt.Errorf("%w: transaction %d is %s, expected %s", model.ErrStateConflict, id, tx.Status, expected)
	}
	tx.Status = next
	if f.ResponseCode != nil {
		tx.ResponseCode = f.ResponseCode
	}
	if f.AuthorizationCode != nil {
		tx.AuthorizationCode = f.AuthorizationCode
	}
	if f.CardType != nil {
		tx.CardType = f.CardType
	}
	if f.CardLast4 != nil {
		tx.CardLast4 = f.CardLast4
	}
	if f.Installments != nil {
		tx.Installments = *f.Installments
	}
	if f.TransactionDate != nil {
		tx.TransactionDate = f.TransactionDate
	}
	if f.AuthorizedAt != nil {
		tx.AuthorizedAt = f.AuthorizedAt
	}
	if f.ResponsePayload != nil {
		tx.ResponsePayload = f.ResponsePayload
	}
	tx.UpdatedAt = time.Now()
	return cloneTx(tx), nil
}

func (m *MockStore) ExpireCreated(ctx context.Context, now time.Time, limit int) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.txs))
	for id := range m.txs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []model.Transaction
	for _, id := range ids {
		tx := m.txs[id]
		if len(out) == limit {
			break
		}
		if tx.Status == model.StatusCreated && tx.ExpiresAt.Before(now) {
			tx.Status = model.StatusExpired
			out = append(out, *cloneTx(tx))
		}
	}
	return out, nil
}

func (m *MockStore) AppendLog(ctx context.Context, entry *model.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppendLog {
		return ErrMockStore
	}
	entry.ID = uuid.NewString()
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *MockStore) ListLogs(ctx context.Context, transactionID int64) ([]model.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LogEntry
	for _, e := range m.logs {
		if e.TransactionID != nil && *e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Logs returns every entry with the given action, attached or not.
func (m *MockStore) Logs(action string) []model.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LogEntry
	for _, e := range m.logs {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockStore) LogCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func (m *MockStore) totalsLocked(transactionID int64) (processed, pending int64) {
	for _, r := range m.refunds {
		if r.TransactionID != transactionID {
			continue
		}
		switch r.Status {
		case model.RefundProcessed:
			processed += r.Amount
		case model.RefundPending, model.RefundUnknown:
			pending += r.Amount
		}
	}
	return processed, pending
}

func (m *MockStore) RecordRefund(ctx context.Context, refund *model.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[refund.TransactionID]
	if !ok {
		return model.ErrNotFound
	}
	processed, pending := m.totalsLocked(tx.ID)
	if !core.IsRefundable(tx.Status) || refund.Amount > core.RefundableBalance(tx.Amount, processed, pending) {
		return &model.RefundAmountError{Problems: []string{"refund exceeds balance"}}
	}
	refund.ID = uuid.NewString()
	refund.Status = model.RefundPending
	refund.RequestedAt = time.Now()
	c := *refund
	m.refunds = append(m.refunds, &c)
	return nil
}

func (m *MockStore) CompleteRefund(ctx context.Context, refund *model.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refunds {
		if r.ID != refund.ID {
			continue
		}
		if r.Status != model.RefundPending {
			return model.ErrStateConflict
		}
		*r = *refund
		return nil
	}
	return model.ErrNotFound
}

func (m *MockStore) SumProcessedRefunds(ctx context.Context, transactionID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	processed, _ := m.totalsLocked(transactionID)
	return processed, nil
}

func (m *MockStore) RefundTotals(ctx context.Context, transactionID int64) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	processed, pending := m.totalsLocked(transactionID)
	return processed, pending, nil
}

func (m *MockStore) ListRefunds(ctx context.Context, transactionID int64) ([]model.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Refund
	for _, r := range m.refunds {
		if r.TransactionID == transactionID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// MockGateway implements IPaymentGateway. Nil funcs return canned successes.
type MockGateway struct {
	mu          sync.Mutex
	CreateFunc  func(ctx context.Context, buyOrder, sessionID string, amount int64, returnURL string) (*model.RemoteTransaction, error)
	ConfirmFunc func(ctx context.Context, token string) (*model.RemoteAuthorization, error)
	StatusFunc  func(ctx context.Context, token string) (*model.RemoteAuthorization, error)
	RefundFunc  func(ctx context.Context, token string, amount int64) (*model.RemoteRefund, error)

	CreateCalls  int
	ConfirmCalls int
	StatusCalls  int
	RefundCalls  int
	tokens       int
}

func (m *MockGateway) CreateTransaction(ctx context.Context, buyOrder, sessionID string, amount int64, returnURL string) (*model.RemoteTransaction, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.tokens++
	n := m.tokens
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, buyOrder, sessionID, amount, returnURL)
	}
	token := fmt.Sprintf("tok-%d", n)
	return &model.RemoteTransaction{
		Token: token,
		URL:   "https://webpay.example.com/init",
		Raw:   []byte(`{"token":"` + token + `"}`),
	}, nil
}

func (m *MockGateway) ConfirmTransaction(ctx context.Context, token string) (*model.RemoteAuthorization, error) {
	m.mu.Lock()
	m.ConfirmCalls++
	m.mu.Unlock()
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, token)
	}
	return Approved(0), nil
}

func (m *MockGateway) TransactionStatus(ctx context.Context, token string) (*model.RemoteAuthorization, error) {
	m.mu.Lock()
	m.StatusCalls++
	m.mu.Unlock()
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, token)
	}
	code := 0
	return &model.RemoteAuthorization{Status: model.RemoteInitialized, ResponseCode: &code}, nil
}

func (m *MockGateway) Refund(ctx context.Context, token string, amount int64) (*model.RemoteRefund, error) {
	m.mu.Lock()
	m.RefundCalls++
	m.mu.Unlock()
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, token, amount)
	}
	return &model.RemoteRefund{Type: model.RemoteNullified, AuthorizationCode: "R1", Raw: []byte(`{}`)}, nil
}

func (m *MockGateway) Calls() (create, confirm, status, refund int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateCalls, m.ConfirmCalls, m.StatusCalls, m.RefundCalls
}

// Approved builds an authorization with the given amount; 0 means "not echoed".
func Approved(amount int64) *model.RemoteAuthorization {
	code := model.ResponseCodeApproved
	return &model.RemoteAuthorization{
		Status:            model.RemoteAuthorized,
		ResponseCode:      &code,
		Amount:            amount,
		AuthorizationCode: "1213",
		CardType:          "VD",
		CardNumber:        "6623",
		Installments:      0,
		TransactionDate:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Raw:               []byte(`{"response_code":0}`),
	}
}

func Declined(code int) *model.RemoteAuthorization {
	return &model.RemoteAuthorization{
		Status:       model.RemoteFailed,
		ResponseCode: &code,
		Raw:          []byte(`{"response_code":-1}`),
	}
}

// MockStock implements IStockService with a fixed availability per product.
type MockStock struct {
	mu        sync.Mutex
	Available map[string]int
	CheckErr  error
	MoveErr   error
	Checks    []string
	Moves     []model.StockMovement
}

func NewMockStock(available map[string]int) *MockStock {
	return &MockStock{Available: available}
}

func (m *MockStock) Check(ctx context.Context, productID, branchID string) (*model.StockLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Checks = append(m.Checks, productID)
	if m.CheckErr != nil {
		return nil, m.CheckErr
	}
	return &model.StockLevel{ProductID: productID, BranchID: branchID, Available: m.Available[productID]}, nil
}

func (m *MockStock) Move(ctx context.Context, movement model.StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Moves = append(m.Moves, movement)
	return m.MoveErr
}

func (m *MockStock) MovesOf(movementType string) []model.StockMovement {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.StockMovement
	for _, mv := range m.Moves {
		if mv.Type == movementType {
			out = append(out, mv)
		}
	}
	return out
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	Err    error
	Events []model.TransactionEvent
}

func (m *MockPublisher) Publish(ctx context.Context, event model.TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return m.Err
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}
