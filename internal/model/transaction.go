package model

import (
	"time"
)

type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusAuthorized      Status = "AUTHORIZED"
	StatusRejected        Status = "REJECTED"
	StatusRefundedPartial Status = "REFUNDED_PARTIAL"
	StatusRefundedTotal   Status = "REFUNDED_TOTAL"
	StatusVoided          Status = "VOIDED"
	StatusExpired         Status = "EXPIRED"
)

// Transaction is one purchase attempt brokered through the gateway.
// Amount is in integral currency units and never changes after creation.
type Transaction struct {
	ID                int64
	Token             *string
	RedirectURL       *string
	BuyOrder          string
	SessionID         string
	Amount            int64
	Currency          string
	Status            Status
	ReturnURL         string
	ResponseCode      *int
	AuthorizationCode *string
	CardType          *string
	CardLast4         *string
	Installments      int
	TransactionDate   *time.Time
	AuthorizedAt      *time.Time
	ExpiresAt         time.Time
	RequestPayload    []byte
	ResponsePayload   []byte
	ClientIP          string
	UserAgent         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Items             []LineItem
}

func (t *Transaction) TokenValue() string {
	if t.Token == nil {
		return ""
	}
	return *t.Token
}

type LineItem struct {
	ID            int64
	TransactionID int64
	ProductID     string
	Quantity      int
	UnitPrice     int64
	Subtotal      int64
}

type RefundType string

const (
	RefundVoidFull RefundType = "void-full"
	RefundPartial  RefundType = "refund-partial"
	RefundTotal    RefundType = "refund-total"
)

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundProcessed RefundStatus = "processed"
	RefundRejected  RefundStatus = "rejected"
	RefundError     RefundStatus = "error"
	// RefundUnknown marks a refund the gateway may have applied; it keeps
	// its reservation until reconciled.
	RefundUnknown RefundStatus = "unknown"
)

type Refund struct {
	ID                string
	TransactionID     int64
	Type              RefundType
	Amount            int64
	Motive            string
	Token             string
	AuthorizationCode *string
	ResponseCode      *int
	Balance           *int64
	Status            RefundStatus
	RequestedAt       time.Time
	ProcessedAt       *time.Time
	ResponsePayload   []byte
}

// LogEntry is an append-only audit record. TransactionID is nil when the
// event could not be tied to a known transaction (e.g. a forged webhook).
type LogEntry struct {
	ID            string
	TransactionID *int64
	Action        string
	Description   string
	Input         []byte
	Output        []byte
	ResponseCode  *int
	ErrorMessage  *string
	Duration      time.Duration
	CreatedAt     time.Time
}

// TransitionFields are written together with a status change.
// Nil fields are left untouched.
type TransitionFields struct {
	ResponseCode      *int
	AuthorizationCode *string
	CardType          *string
	CardLast4         *string
	Installments      *int
	TransactionDate   *time.Time
	AuthorizedAt      *time.Time
	ResponsePayload   []byte
}

type LineItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type CreateTransactionRequest struct {
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Items     []LineItemRequest `json:"items"`
	ReturnURL string            `json:"return_url"`
	BuyOrder  string            `json:"buy_order"`
	SessionID string            `json:"session_id"`
	ClientIP  string            `json:"-"`
	UserAgent string            `json:"-"`
}

type RefundRequest struct {
	Amount int64  `json:"amount"`
	Motive string `json:"motive"`
}
