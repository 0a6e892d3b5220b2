package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcclellann/microLoan/pkg/allocation"
	"github.com/mcclellann/microLoan/pkg/ledger"
	"github.com/mcclellann/microLoan/pkg/products"
	"github.com/mcclellann/microLoan/pkg/store"
	"github.com/mcclellann/microLoan/pkg/terms"
	"github.com/shopspring/decimal"
)

// errBadRequest marks malformed input rejected before it reaches the ledger.
var errBadRequest = errors.New("bad request")

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error       string           `json:"error"`
	Code        string           `json:"code"`
	MaxTenure   int              `json:"max_tenure,omitempty"`
	Outstanding *decimal.Decimal `json:"outstanding,omitempty"`
}

// classify maps an error onto a status code and response body.
func classify(err error) (int, ErrorResponse) {
	var (
		unknownProduct *products.UnknownProductError
		exceeded       *terms.TenureExceededError
		overpayment    *allocation.OverpaymentError
	)

	switch {
	case errors.As(err, &exceeded):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "tenure_exceeded", MaxTenure: exceeded.Max}
	case errors.As(err, &overpayment):
		outstanding := overpayment.Outstanding
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "overpayment", Outstanding: &outstanding}
	case errors.As(err, &unknownProduct):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "unknown_product"}
	case errors.Is(err, terms.ErrInvalidPrincipal):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "invalid_principal"}
	case errors.Is(err, terms.ErrInvalidTenure):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "invalid_tenure"}
	case errors.Is(err, allocation.ErrInvalidPayment):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "invalid_payment"}
	case errors.Is(err, ledger.ErrPaymentNotAllowed):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "payment_not_allowed"}
	case errors.Is(err, ledger.ErrInvalidTransition):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "invalid_transition"}
	case errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"}
	case errors.Is(err, store.ErrLoanNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "loan not found", Code: "not_found"}
	case errors.Is(err, errBadRequest), errors.Is(err, ledger.ErrCustomerRequired):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "bad_request"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal"}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
