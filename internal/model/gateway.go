package model

import (
	"time"
)

// Remote transaction statuses reported by the gateway status endpoint.
const (
	RemoteInitialized = "INITIALIZED"
	RemoteAuthorized  = "AUTHORIZED"
	RemoteFailed      = "FAILED"
	RemoteReversed    = "REVERSED"
	RemoteNullified   = "NULLIFIED"
)

// ResponseCodeApproved is the only gateway response code that authorizes a payment.
const ResponseCodeApproved = 0

type RemoteTransaction struct {
	Token string
	URL   string
	Raw   []byte
}

type RemoteAuthorization struct {
	Status            string
	ResponseCode      *int
	BuyOrder          string
	SessionID         string
	Amount            int64
	AuthorizationCode string
	CardType          string
	CardNumber        string
	Installments      int
	TransactionDate   time.Time
	Raw               []byte
}

// Final reports whether the gateway has decided the authorization outcome.
func (a *RemoteAuthorization) Final() bool {
	if a.ResponseCode == nil {
		return false
	}
	return a.Status != RemoteInitialized
}

func (a *RemoteAuthorization) Approved() bool {
	return a.ResponseCode != nil && *a.ResponseCode == ResponseCodeApproved
}

type RemoteRefund struct {
	Type              string
	AuthorizationCode string
	ResponseCode      int
	Balance           int64
	Raw               []byte
}

type StockLevel struct {
	ProductID string `json:"product_id"`
	BranchID  string `json:"branch_id"`
	Available int    `json:"available"`
	Total     int    `json:"total"`
	Reserved  int    `json:"reserved"`
}

const (
	MovementOut = "out"
	MovementIn  = "in"
)

type StockMovement struct {
	ProductID string `json:"product_id"`
	BranchID  string `json:"branch_id"`
	Type      string `json:"type"`
	Quantity  int    `json:"quantity"`
}

// WebhookNotification is the body of an asynchronous gateway callback.
type WebhookNotification struct {
	Token             string `json:"token"`
	Status            string `json:"status"`
	Amount            int64  `json:"amount"`
	AuthorizationCode string `json:"authorization_code"`
}

// TransactionEvent is published after a durable lifecycle change.
type TransactionEvent struct {
	Type          string    `json:"type"`
	TransactionID int64     `json:"transaction_id"`
	Token         string    `json:"token,omitempty"`
	BuyOrder      string    `json:"buy_order"`
	Status        Status    `json:"status"`
	Amount        int64     `json:"amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}
