package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/service"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/service/servicetest"
	"github.com/danielmoisemontezima/zw-webpay-service/pkg/utils"
)

const webhookSecret = "s3cret"

type testAPI struct {
	router   http.Handler
	gateway  *servicetest.MockGateway
	webhooks *service.WebhookService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gateway := &servicetest.MockGateway{}
	opts := service.DefaultOptions()
	opts.BranchID = "1"
	svc := service.NewTransactionService(
		servicetest.NewMockStore(),
		gateway,
		servicetest.NewMockStock(map[string]int{"P1": 10}),
		&servicetest.MockPublisher{},
		zap.NewNop(),
		opts,
	)
	webhooks := service.NewWebhookService(webhookSecret, svc, zap.NewNop())

	r := chi.NewRouter()
	NewTransactionController(svc, webhooks, "https://shop.example.com/return", zap.NewNop()).Routes(r)
	return &testAPI{router: r, gateway: gateway, webhooks: webhooks}
}

func (a *testAPI) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func (a *testAPI) create(t *testing.T) transactionResponse {
	t.Helper()
	body := []byte(`{"amount":50000,"currency":"CLP","items":[{"product_id":"P1","quantity":2,"unit_price":25000}]}`)
	rec := a.do(t, http.MethodPost, "/transactions", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[transactionResponse](t, rec)
}

func TestHealthCheck(t *testing.T) {
	a := newTestAPI(t)
	if rec := a.do(t, http.MethodGet, "/health", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateTransactionHandler(t *testing.T) {
	a := newTestAPI(t)

	res := a.create(t)
	if res.Token == nil || *res.Token != "tok-1" {
		t.Errorf("unexpected token %v", res.Token)
	}
	if res.Status != model.StatusCreated || res.Amount != 50000 || len(res.Items) != 1 {
		t.Errorf("unexpected response %+v", res)
	}
}

func TestCreateTransactionBadRequests(t *testing.T) {
	a := newTestAPI(t)

	if rec := a.do(t, http.MethodPost, "/transactions", []byte(`{`), nil); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed json: expected 400, got %d", rec.Code)
	}

	rec := a.do(t, http.MethodPost, "/transactions", []byte(`{"amount":49,"currency":"CLP","items":[{"product_id":"P1","quantity":1,"unit_price":10}]}`), nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := decode[utils.ErrorBody](t, rec)
	if len(body.Details) == 0 {
		t.Error("expected validation details")
	}

	rec = a.do(t, http.MethodPost, "/transactions", []byte(`{"amount":50000,"currency":"CLP","items":[{"product_id":"P1","quantity":11,"unit_price":100}]}`), nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("insufficient stock: expected 422, got %d", rec.Code)
	}
}

func TestCommitAndRefundHandlers(t *testing.T) {
	a := newTestAPI(t)
	tx := a.create(t)

	rec := a.do(t, http.MethodPost, "/transactions/"+*tx.Token+"/commit", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[transactionResponse](t, rec); got.Status != model.StatusAuthorized {
		t.Fatalf("expected AUTHORIZED, got %s", got.Status)
	}

	rec = a.do(t, http.MethodPost, "/transactions/"+*tx.Token+"/refunds", []byte(`{"amount":60000}`), nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("over-refund: expected 422, got %d", rec.Code)
	}

	rec = a.do(t, http.MethodPost, "/transactions/"+*tx.Token+"/refunds", []byte(`{"amount":10000,"motive":"damaged"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refund: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[refundResponse](t, rec)
	if res.Transaction.Status != model.StatusRefundedPartial || res.Refund.Status != model.RefundProcessed {
		t.Errorf("unexpected refund response %+v", res)
	}

	rec = a.do(t, http.MethodGet, "/transactions/"+*tx.Token, nil, nil)
	if got := decode[transactionResponse](t, rec); rec.Code != http.StatusOK || got.Status != model.StatusRefundedPartial {
		t.Errorf("get: unexpected %d %s", rec.Code, got.Status)
	}
}

func TestGetUnknownTransaction(t *testing.T) {
	a := newTestAPI(t)
	if rec := a.do(t, http.MethodGet, "/transactions/missing", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCommitAmbiguousOutcome(t *testing.T) {
	a := newTestAPI(t)
	a.gateway.ConfirmFunc = func(ctx context.Context, token string) (*model.RemoteAuthorization, error) {
		return nil, &model.GatewayError{Kind: model.ErrGatewayUnavailable, Op: "confirm", StatusCode: 504}
	}
	tx := a.create(t)

	rec := a.do(t, http.MethodPost, "/transactions/"+*tx.Token+"/commit", nil, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if body := decode[utils.ErrorBody](t, rec); !body.Ambiguous {
		t.Error("expected ambiguous flag")
	}
}

func TestWebhookHandler(t *testing.T) {
	a := newTestAPI(t)
	tx := a.create(t)
	payload := []byte(`{"token":"` + *tx.Token + `"}`)

	rec := a.do(t, http.MethodPost, "/webhooks/webpay", payload, map[string]string{service.SignatureHeader: "deadbeef"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature: expected 401, got %d", rec.Code)
	}

	rec = a.do(t, http.MethodPost, "/webhooks/webpay", payload, map[string]string{service.SignatureHeader: a.webhooks.Sign(payload)})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[transactionResponse](t, rec); got.Status != model.StatusAuthorized {
		t.Errorf("expected AUTHORIZED, got %s", got.Status)
	}
}
