package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

const (
	headerKeyID      = "Tbk-Api-Key-Id"
	headerKeySecret  = "Tbk-Api-Key-Secret"
	transactionsPath = "/rswebpaytransaction/api/webpay/v1.2/transactions"
	maxResponseBytes = 1 << 20
)

type WebpayAdapter struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
	logger    *zap.Logger
}

// NewWebpayAdapter builds a gateway client. timeout bounds every single HTTP
// attempt and should stay below any caller-facing deadline.
func NewWebpayAdapter(baseURL, keyID, keySecret string, timeout time.Duration, logger *zap.Logger) *WebpayAdapter {
	return &WebpayAdapter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type createRequest struct {
	BuyOrder  string `json:"buy_order"`
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
	ReturnURL string `json:"return_url"`
}

type createResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type cardDetail struct {
	CardType   string `json:"card_type"`
	CardNumber string `json:"card_number"`
}

type authorizationResponse struct {
	VCI                string          `json:"vci"`
	Amount             decimal.Decimal `json:"amount"`
	Status             string          `json:"status"`
	BuyOrder           string          `json:"buy_order"`
	SessionID          string          `json:"session_id"`
	CardDetail         *cardDetail     `json:"card_detail"`
	AccountingDate     string          `json:"accounting_date"`
	TransactionDate    string          `json:"transaction_date"`
	AuthorizationCode  string          `json:"authorization_code"`
	PaymentTypeCode    string          `json:"payment_type_code"`
	ResponseCode       *int            `json:"response_code"`
	InstallmentsNumber int             `json:"installments_number"`
}

type refundRequest struct {
	Amount int64 `json:"amount"`
}

type refundResponse struct {
	Type              string          `json:"type"`
	AuthorizationCode string          `json:"authorization_code"`
	AuthorizationDate string          `json:"authorization_date"`
	NullifiedAmount   decimal.Decimal `json:"nullified_amount"`
	Balance           decimal.Decimal `json:"balance"`
	ResponseCode      *int            `json:"response_code"`
}

type errorResponse struct {
	ErrorMessage string `json:"error_message"`
}

func (a *WebpayAdapter) CreateTransaction(ctx context.Context, buyOrder, sessionID string, amount int64, returnURL string) (*model.RemoteTransaction, error) {
	const op = "create"
	req := createRequest{BuyOrder: buyOrder, SessionID: sessionID, Amount: amount, ReturnURL: returnURL}

	var res createResponse
	raw, err := a.do(ctx, op, http.MethodPost, transactionsPath, req, &res)
	if err != nil {
		return nil, err
	}
	if res.Token == "" || res.URL == "" {
		return nil, &model.GatewayError{Kind: model.ErrGatewayProtocol, Op: op, Message: "response without token or url"}
	}

	return &model.RemoteTransaction{Token: res.Token, URL: res.URL, Raw: raw}, nil
}

// ConfirmTransaction commits the token. A token the gateway already committed
// is answered from the status endpoint so repeated confirms see the same data.
func (a *WebpayAdapter) ConfirmTransaction(ctx context.Context, token string) (*model.RemoteAuthorization, error) {
	const op = "confirm"

	var res authorizationResponse
	raw, err := a.do(ctx, op, http.MethodPut, tokenPath(token), nil, &res)
	if err != nil {
		if alreadyCommitted(err) {
			a.logger.Info("token already committed, reading status", zap.String("token", token))
			return a.TransactionStatus(ctx, token)
		}
		return nil, err
	}
	if res.ResponseCode == nil {
		return nil, &model.GatewayError{Kind: model.ErrGatewayProtocol, Op: op, Message: "response without response_code"}
	}

	return res.toModel(raw), nil
}

// TransactionStatus is a read and is retried once on an unavailable gateway.
func (a *WebpayAdapter) TransactionStatus(ctx context.Context, token string) (*model.RemoteAuthorization, error) {
	const op = "status"

	var (
		res authorizationResponse
		raw []byte
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		res = authorizationResponse{}
		raw, err = a.do(ctx, op, http.MethodGet, tokenPath(token), nil, &res)
		if err == nil || !errors.Is(err, model.ErrGatewayUnavailable) || ctx.Err() != nil {
			break
		}
		a.logger.Warn("status query failed, retrying", zap.String("token", token), zap.Error(err))
	}
	if err != nil {
		return nil, err
	}

	return res.toModel(raw), nil
}

func (a *WebpayAdapter) Refund(ctx context.Context, token string, amount int64) (*model.RemoteRefund, error) {
	const op = "refund"

	var res refundResponse
	raw, err := a.do(ctx, op, http.MethodPost, tokenPath(token)+"/refunds", refundRequest{Amount: amount}, &res)
	if err != nil {
		return nil, err
	}
	if res.Type == "" {
		return nil, &model.GatewayError{Kind: model.ErrGatewayProtocol, Op: op, Message: "response without type"}
	}

	out := &model.RemoteRefund{
		Type:              res.Type,
		AuthorizationCode: res.AuthorizationCode,
		Balance:           res.Balance.IntPart(),
		Raw:               raw,
	}
	if res.ResponseCode != nil {
		out.ResponseCode = *res.ResponseCode
	}
	if out.ResponseCode != model.ResponseCodeApproved {
		return nil, &model.GatewayError{Kind: model.ErrGatewayRejected, Op: op, Message: fmt.Sprintf("response_code %d", out.ResponseCode)}
	}
	return out, nil
}

func (r *authorizationResponse) toModel(raw []byte) *model.RemoteAuthorization {
	out := &model.RemoteAuthorization{
		Status:            r.Status,
		ResponseCode:      r.ResponseCode,
		BuyOrder:          r.BuyOrder,
		SessionID:         r.SessionID,
		Amount:            r.Amount.IntPart(),
		AuthorizationCode: r.AuthorizationCode,
		Installments:      r.InstallmentsNumber,
		Raw:               raw,
	}
	if r.CardDetail != nil {
		out.CardType = r.CardDetail.CardType
		out.CardNumber = lastFour(r.CardDetail.CardNumber)
	}
	if t, err := time.Parse(time.RFC3339Nano, r.TransactionDate); err == nil {
		out.TransactionDate = t
	}
	return out
}

// do issues one signed request and normalizes the outcome. It returns the raw
// response body for audit on success.
func (a *WebpayAdapter) do(ctx context.Context, op, method, path string, body any, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerKeyID, a.keyID)
	req.Header.Set(headerKeySecret, a.keySecret)

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &model.GatewayError{Kind: model.ErrGatewayUnavailable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &model.GatewayError{Kind: model.ErrGatewayUnavailable, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	a.logger.Debug("gateway call",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 300 {
		gerr := &model.GatewayError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw)}
		switch {
		case resp.StatusCode >= 500:
			gerr.Kind = model.ErrGatewayUnavailable
		case resp.StatusCode == http.StatusNotFound:
			gerr.Kind = model.ErrNotFound
		case resp.StatusCode >= 400:
			gerr.Kind = model.ErrGatewayRejected
		default:
			gerr.Kind = model.ErrGatewayProtocol
		}
		return nil, gerr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, &model.GatewayError{Kind: model.ErrGatewayProtocol, Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return raw, nil
}

func tokenPath(token string) string {
	return transactionsPath + "/" + url.PathEscape(token)
}

func errorMessage(raw []byte) string {
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return strings.TrimSpace(string(raw))
}

func alreadyCommitted(err error) bool {
	var gerr *model.GatewayError
	if !errors.As(err, &gerr) || gerr.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	msg := strings.ToLower(gerr.Message)
	return strings.Contains(msg, "already") || strings.Contains(msg, "locked")
}

func lastFour(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
