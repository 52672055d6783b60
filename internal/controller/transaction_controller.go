package controller

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/service"
	"github.com/danielmoisemontezima/zw-webpay-service/pkg/utils"
)

// requestTimeout bounds a whole request; it stays above the gateway budget.
const (
	requestTimeout = 45 * time.Second
	maxBodyBytes   = 1 << 20
)

type TransactionController struct {
	service          *service.TransactionService
	webhooks         *service.WebhookService
	defaultReturnURL string
	logger           *zap.Logger
}

func NewTransactionController(svc *service.TransactionService, webhooks *service.WebhookService, defaultReturnURL string, logger *zap.Logger) *TransactionController {
	return &TransactionController{
		service:          svc,
		webhooks:         webhooks,
		defaultReturnURL: defaultReturnURL,
		logger:           logger,
	}
}

// Routes mounts the transaction API on r.
func (c *TransactionController) Routes(r chi.Router) {
	r.Get("/health", c.GetHealthCheck)
	r.Post("/transactions", c.CreateTransaction)
	r.Get("/transactions/{token}", c.GetTransaction)
	r.Post("/transactions/{token}/commit", c.CommitTransaction)
	r.Post("/transactions/{token}/refunds", c.RefundTransaction)
	r.Post("/webhooks/webpay", c.ParseWebhook)
}

func (c *TransactionController) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req model.CreateTransactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.ReturnURL == "" {
		req.ReturnURL = c.defaultReturnURL
	}
	req.ClientIP = clientIP(r)
	req.UserAgent = r.UserAgent()

	tx, err := c.service.Create(ctx, req)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, newTransactionResponse(tx))
}

func (c *TransactionController) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	tx, err := c.service.Status(ctx, chi.URLParam(r, "token"))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (c *TransactionController) CommitTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	tx, err := c.service.Confirm(ctx, chi.URLParam(r, "token"))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (c *TransactionController) RefundTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req model.RefundRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	res, err := c.service.Refund(ctx, chi.URLParam(r, "token"), req)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, refundResponse{
		Refund:      newRefundView(res.Refund),
		Transaction: newTransactionResponse(res.Transaction),
	})
}

func (c *TransactionController) ParseWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	tx, err := c.webhooks.Handle(ctx, rawBody, utils.GetHeader(r.Header, service.SignatureHeader))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (c *TransactionController) GetHealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (c *TransactionController) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := utils.StatusFor(err)
	if code >= http.StatusInternalServerError {
		c.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
	}
	utils.RespondWithServiceError(w, err)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
