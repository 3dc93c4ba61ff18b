package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
)

const (
	codeOutOfStock          = "OUT_OF_STOCK"
	codeInsufficientBalance = "INSUFFICIENT_BALANCE"
	codeUnauthenticated     = "UNAUTHENTICATED"
	codeBoxNotFound         = "BOX_NOT_FOUND"
	codeBoxInactive         = "BOX_INACTIVE"
	codeOrderNotFound       = "ORDER_NOT_FOUND"
	codeUnavailable         = "SERVICE_UNAVAILABLE"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

// writeDomainError maps domain errors to responses. Anything unknown is
// reported as unavailable without leaking internals.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, &domain.OutOfStockError{}):
		writeError(w, http.StatusBadRequest, codeOutOfStock, err.Error())
	case errors.Is(err, &domain.InsufficientBalanceError{}):
		writeError(w, http.StatusBadRequest, codeInsufficientBalance, err.Error())
	case errors.Is(err, &domain.UserNotFoundError{}):
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unknown user")
	case errors.Is(err, &domain.BoxNotFoundError{}):
		writeError(w, http.StatusNotFound, codeBoxNotFound, err.Error())
	case errors.Is(err, &domain.BoxInactiveError{}), errors.Is(err, &domain.ProbabilityTableInvalidError{}):
		writeError(w, http.StatusNotFound, codeBoxInactive, "blind box is not available")
	case errors.Is(err, &domain.OrderNotFoundError{}):
		writeError(w, http.StatusNotFound, codeOrderNotFound, "order not found")
	default:
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "try again later")
	}
}
