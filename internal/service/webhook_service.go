package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

const SignatureHeader = "X-Webpay-Signature"

// WebhookService authenticates gateway callbacks and feeds them into the same
// Confirm used by the synchronous commit call.
type WebhookService struct {
	secret       []byte
	transactions *TransactionService
	logger       *zap.Logger
}

func NewWebhookService(secret string, transactions *TransactionService, logger *zap.Logger) *WebhookService {
	return &WebhookService{secret: []byte(secret), transactions: transactions, logger: logger}
}

// Verify checks a hex HMAC-SHA256 of payload, optionally prefixed "sha256=".
func (w *WebhookService) Verify(payload []byte, signature string) error {
	if len(w.secret) == 0 {
		return fmt.Errorf("%w: webhook secret not configured", model.ErrInvalidSignature)
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return fmt.Errorf("%w: missing signature", model.ErrInvalidSignature)
	}
	given, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", model.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, w.secret)
	mac.Write(payload)
	if !hmac.Equal(given, mac.Sum(nil)) {
		return fmt.Errorf("%w: signature mismatch", model.ErrInvalidSignature)
	}
	return nil
}

// Sign returns the signature Verify accepts for payload.
func (w *WebhookService) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, w.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Handle verifies and applies one notification. A rejected delivery, whether
// for its signature or its body, changes nothing and leaves a single audit entry.
func (w *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (*model.Transaction, error) {
	if err := w.Verify(payload, signature); err != nil {
		w.deny(ctx, payload, "webhook signature rejected", err)
		return nil, err
	}

	var n model.WebhookNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		verr := model.NewValidationError("webhook body is not valid JSON")
		w.deny(ctx, payload, "webhook body rejected", verr)
		return nil, verr
	}
	if strings.TrimSpace(n.Token) == "" {
		verr := model.NewValidationError("webhook token is required")
		w.deny(ctx, payload, "webhook body rejected", verr)
		return nil, verr
	}

	tx, err := w.transactions.Confirm(ctx, n.Token)
	if err != nil {
		return nil, err
	}
	if n.Amount != 0 && n.Amount != tx.Amount {
		w.logger.Warn("webhook amount differs from transaction",
			zap.String("token", n.Token),
			zap.Int64("notified", n.Amount),
			zap.Int64("amount", tx.Amount),
		)
	}
	return tx, nil
}

func (w *WebhookService) deny(ctx context.Context, payload []byte, description string, reason error) {
	entry := &model.LogEntry{
		Action:      ActionWebhookDenied,
		Description: description,
		Input:       payload,
	}
	msg := reason.Error()
	entry.ErrorMessage = &msg

	// Tie the entry to the transaction the body names, if any, for auditing.
	var n model.WebhookNotification
	if json.Unmarshal(payload, &n) == nil && n.Token != "" {
		if tx, err := w.transactions.store.FindByToken(ctx, n.Token); err == nil {
			entry.TransactionID = &tx.ID
		}
	}
	w.transactions.record(ctx, entry)
	w.logger.Warn(description, zap.Error(reason))
}
