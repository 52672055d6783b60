package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

func newTestWebpay(t *testing.T, handler http.HandlerFunc) *WebpayAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWebpayAdapter(srv.URL+"/", "597055555532", "secret", 2*time.Second, zap.NewNop())
}

const authorizedBody = `{
	"vci": "TSY",
	"amount": 50000,
	"status": "AUTHORIZED",
	"buy_order": "O-1",
	"session_id": "s-1",
	"card_detail": {"card_number": "XXXXXXXXXXXX6623"},
	"accounting_date": "0102",
	"transaction_date": "2026-01-02T03:04:05.123Z",
	"authorization_code": "1213",
	"payment_type_code": "VN",
	"response_code": 0,
	"installments_number": 0
}`

func TestWebpayCreateTransaction(t *testing.T) {
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != transactionsPath {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(headerKeyID) != "597055555532" || r.Header.Get(headerKeySecret) != "secret" {
			t.Error("missing api key headers")
		}
		var body createRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body.BuyOrder != "O-1" || body.Amount != 50000 || body.ReturnURL != "https://shop/return" {
			t.Errorf("unexpected body %+v", body)
		}
		w.Write([]byte(`{"token":"tok-abc","url":"https://webpay/init"}`))
	})

	remote, err := a.CreateTransaction(context.Background(), "O-1", "s-1", 50000, "https://shop/return")
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if remote.Token != "tok-abc" || remote.URL != "https://webpay/init" || len(remote.Raw) == 0 {
		t.Errorf("unexpected result %+v", remote)
	}
}

func TestWebpayCreateMissingToken(t *testing.T) {
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url":"https://webpay/init"}`))
	})

	_, err := a.CreateTransaction(context.Background(), "O-1", "s-1", 50000, "https://shop/return")
	if !errors.Is(err, model.ErrGatewayProtocol) {
		t.Fatalf("expected ErrGatewayProtocol, got %v", err)
	}
}

func TestWebpayErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusBadGateway, `oops`, model.ErrGatewayUnavailable},
		{"bad request", http.StatusBadRequest, `{"error_message":"amount is invalid"}`, model.ErrGatewayRejected},
		{"unauthorized", http.StatusUnauthorized, `{"error_message":"Not Authorized"}`, model.ErrGatewayRejected},
		{"not found", http.StatusNotFound, ``, model.ErrNotFound},
		{"garbage", http.StatusOK, `<html>`, model.ErrGatewayProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := a.CreateTransaction(context.Background(), "O-1", "s-1", 50000, "https://shop/return")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWebpayRejectedCarriesMessage(t *testing.T) {
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_message":"amount is invalid"}`))
	})

	_, err := a.CreateTransaction(context.Background(), "O-1", "s-1", 50000, "https://shop/return")
	var gerr *model.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GatewayError, got %T", err)
	}
	if gerr.StatusCode != http.StatusBadRequest || gerr.Message != "amount is invalid" || gerr.Op != "create" {
		t.Errorf("unexpected error %+v", gerr)
	}
}

func TestWebpayUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := NewWebpayAdapter(url, "id", "secret", time.Second, zap.NewNop())
	_, err := a.ConfirmTransaction(context.Background(), "tok")
	if !errors.Is(err, model.ErrGatewayUnavailable) || !model.IsAmbiguous(err) {
		t.Fatalf("expected ambiguous ErrGatewayUnavailable, got %v", err)
	}
}

func TestWebpayConfirm(t *testing.T) {
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != transactionsPath+"/tok-abc" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(authorizedBody))
	})

	auth, err := a.ConfirmTransaction(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("ConfirmTransaction failed: %v", err)
	}
	if !auth.Approved() || !auth.Final() {
		t.Error("expected a final approval")
	}
	if auth.Amount != 50000 || auth.AuthorizationCode != "1213" || auth.CardNumber != "6623" {
		t.Errorf("unexpected authorization %+v", auth)
	}
	if auth.TransactionDate.IsZero() {
		t.Error("expected parsed transaction date")
	}
}

func TestWebpayConfirmWithoutResponseCode(t *testing.T) {
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"AUTHORIZED","amount":50000}`))
	})

	_, err := a.ConfirmTransaction(context.Background(), "tok")
	if !errors.Is(err, model.ErrGatewayProtocol) {
		t.Fatalf("expected ErrGatewayProtocol, got %v", err)
	}
}

func TestWebpayConfirmAlreadyCommittedFallsBackToStatus(t *testing.T) {
	var gets atomic.Int32
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error_message":"Transaction already locked by another process"}`))
		case http.MethodGet:
			gets.Add(1)
			w.Write([]byte(authorizedBody))
		}
	})

	auth, err := a.ConfirmTransaction(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ConfirmTransaction failed: %v", err)
	}
	if !auth.Approved() || gets.Load() != 1 {
		t.Errorf("expected status fallback, approved=%v gets=%d", auth.Approved(), gets.Load())
	}
}

func TestWebpayStatusRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"INITIALIZED","amount":50000}`))
	})

	auth, err := a.TransactionStatus(context.Background(), "tok")
	if err != nil {
		t.Fatalf("TransactionStatus failed: %v", err)
	}
	if auth.Final() {
		t.Error("INITIALIZED without response code is not final")
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestWebpayStatusDoesNotRetryRejection(t *testing.T) {
	var calls atomic.Int32
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error_message":"Invalid token"}`))
	})

	if _, err := a.TransactionStatus(context.Background(), "tok"); !errors.Is(err, model.ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestWebpayRefund(t *testing.T) {
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/tok/refunds") {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body refundRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.Amount != 1000 {
			t.Errorf("unexpected amount %d", body.Amount)
		}
		w.Write([]byte(`{"type":"NULLIFIED","authorization_code":"123456","nullified_amount":1000.00,"balance":49000,"response_code":0}`))
	})

	refund, err := a.Refund(context.Background(), "tok", 1000)
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if refund.Type != model.RemoteNullified || refund.Balance != 49000 || refund.AuthorizationCode != "123456" {
		t.Errorf("unexpected refund %+v", refund)
	}
}

func TestWebpayRefundReversed(t *testing.T) {
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"REVERSED"}`))
	})

	refund, err := a.Refund(context.Background(), "tok", 50000)
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if refund.Type != model.RemoteReversed {
		t.Errorf("expected REVERSED, got %s", refund.Type)
	}
}

func TestWebpayRefundDeclined(t *testing.T) {
	a := newTestWebpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"NULLIFIED","response_code":-1}`))
	})

	if _, err := a.Refund(context.Background(), "tok", 1000); !errors.Is(err, model.ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}
}

func TestTokenPathEscapes(t *testing.T) {
	if got := tokenPath("a/b"); got != transactionsPath+"/a%2Fb" {
		t.Errorf("unexpected path %s", got)
	}
}

func TestLastFour(t *testing.T) {
	for in, want := range map[string]string{"XXXX6623": "6623", "123": "123", " 1234 ": "1234"} {
		if got := lastFour(in); got != want {
			t.Errorf("lastFour(%q) = %q, want %q", in, got, want)
		}
	}
}
