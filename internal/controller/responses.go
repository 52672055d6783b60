package controller

import (
	"time"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

type lineItemView struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type transactionResponse struct {
	ID                int64          `json:"id"`
	Token             *string        `json:"token"`
	URL               *string        `json:"url"`
	BuyOrder          string         `json:"buy_order"`
	SessionID         string         `json:"session_id"`
	Amount            int64          `json:"amount"`
	Currency          string         `json:"currency"`
	Status            model.Status   `json:"status"`
	ResponseCode      *int           `json:"response_code,omitempty"`
	AuthorizationCode *string        `json:"authorization_code,omitempty"`
	CardType          *string        `json:"card_type,omitempty"`
	CardLast4         *string        `json:"card_last4,omitempty"`
	Installments      int            `json:"installments"`
	TransactionDate   *time.Time     `json:"transaction_date,omitempty"`
	AuthorizedAt      *time.Time     `json:"authorized_at,omitempty"`
	ExpiresAt         time.Time      `json:"expires_at"`
	CreatedAt         time.Time      `json:"created_at"`
	Items             []lineItemView `json:"items"`
}

func newTransactionResponse(tx *model.Transaction) transactionResponse {
	res := transactionResponse{
		ID:                tx.ID,
		Token:             tx.Token,
		URL:               tx.RedirectURL,
		BuyOrder:          tx.BuyOrder,
		SessionID:         tx.SessionID,
		Amount:            tx.Amount,
		Currency:          tx.Currency,
		Status:            tx.Status,
		ResponseCode:      tx.ResponseCode,
		AuthorizationCode: tx.AuthorizationCode,
		CardType:          tx.CardType,
		CardLast4:         tx.CardLast4,
		Installments:      tx.Installments,
		TransactionDate:   tx.TransactionDate,
		AuthorizedAt:      tx.AuthorizedAt,
		ExpiresAt:         tx.ExpiresAt,
		CreatedAt:         tx.CreatedAt,
		Items:             make([]lineItemView, 0, len(tx.Items)),
	}
	for _, it := range tx.Items {
		res.Items = append(res.Items, lineItemView{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return res
}

type refundView struct {
	ID                string             `json:"id"`
	Type              model.RefundType   `json:"type,omitempty"`
	Amount            int64              `json:"amount"`
	Status            model.RefundStatus `json:"status"`
	AuthorizationCode *string            `json:"authorization_code,omitempty"`
	ResponseCode      *int               `json:"response_code,omitempty"`
	Balance           *int64             `json:"balance,omitempty"`
	RequestedAt       time.Time          `json:"requested_at"`
	ProcessedAt       *time.Time         `json:"processed_at,omitempty"`
}

func newRefundView(rf *model.Refund) refundView {
	return refundView{
		ID:                rf.ID,
		Type:              rf.Type,
		Amount:            rf.Amount,
		Status:            rf.Status,
		AuthorizationCode: rf.AuthorizationCode,
		ResponseCode:      rf.ResponseCode,
		Balance:           rf.Balance,
		RequestedAt:       rf.RequestedAt,
		ProcessedAt:       rf.ProcessedAt,
	}
}

type refundResponse struct {
	Refund      refundView          `json:"refund"`
	Transaction transactionResponse `json:"transaction"`
}
