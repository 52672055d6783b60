package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

type ErrorBody struct {
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
	Ambiguous bool     `json:"ambiguous,omitempty"`
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorBody{Error: message})
}

// RespondWithServiceError writes the HTTP form of a service error. Business
// errors keep their itemized reasons; gateway and internal errors are reduced
// to a generic message.
func RespondWithServiceError(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	body := ErrorBody{Error: err.Error()}

	var (
		verr *model.ValidationError
		rerr *model.RefundAmountError
		serr *model.InsufficientStockError
	)
	switch {
	case errors.As(err, &verr):
		body = ErrorBody{Error: model.ErrValidation.Error(), Details: verr.Problems}
	case errors.As(err, &rerr):
		body = ErrorBody{Error: model.ErrInvalidRefundAmount.Error(), Details: rerr.Problems}
	case errors.As(err, &serr):
		body = ErrorBody{Error: model.ErrInsufficientStock.Error()}
		for _, it := range serr.Items {
			body.Details = append(body.Details, it.ProductID)
		}
	case model.IsAmbiguous(err):
		body = ErrorBody{Error: "payment gateway outcome unknown, query transaction status", Ambiguous: true}
	case errors.Is(err, model.ErrGatewayRejected):
		body = ErrorBody{Error: "payment rejected by gateway"}
	case errors.Is(err, model.ErrInvalidSignature):
		body = ErrorBody{Error: model.ErrInvalidSignature.Error()}
	case code == http.StatusInternalServerError:
		body = ErrorBody{Error: "internal error"}
	}
	RespondWithJSON(w, code, body)
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrInsufficientStock),
		errors.Is(err, model.ErrInvalidRefundAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrStateConflict):
		return http.StatusConflict
	case model.IsAmbiguous(err):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrGatewayRejected):
		return http.StatusPaymentRequired
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func GetHeader(headers map[string][]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
