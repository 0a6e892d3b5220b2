package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/microLoan/pkg/metrics"
	"github.com/mcclellann/microLoan/pkg/models"
	"github.com/mcclellann/microLoan/pkg/products"
	"github.com/shopspring/decimal"
)

type quoteRequest struct {
	Product   string          `json:"product"`
	Principal decimal.Decimal `json:"principal"`
	Tenure    int             `json:"tenure"`
	StartDate string          `json:"start_date,omitempty"`
}

type createLoanRequest struct {
	CustomerKey string          `json:"customer_key"`
	Product     string          `json:"product"`
	Principal   decimal.Decimal `json:"principal"`
	Tenure      int             `json:"tenure"`
}

type disburseRequest struct {
	StartDate string `json:"start_date,omitempty"`
}

type repaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, products.All())
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := products.ParseKind(req.Product)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key := quoteKey(kind, req.Principal, req.Tenure, start)
	if cached, ok := s.cache.Get(r.Context(), key); ok {
		metrics.QuoteCache.WithLabelValues("hit").Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, cached)
		return
	}
	metrics.QuoteCache.WithLabelValues("miss").Inc()

	t, err := s.ledger.Quote(kind, req.Principal, req.Tenure, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body, err := json.Marshal(t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.cache.Set(r.Context(), key, string(body), s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache quote", "key", key, "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func quoteKey(kind products.Kind, principal decimal.Decimal, tenure int, start *time.Time) string {
	day := "-"
	if start != nil {
		day = start.Format(time.DateOnly)
	}
	return fmt.Sprintf("quote:%s:%s:%d:%s", kind, principal.String(), tenure, day)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := products.ParseKind(req.Product)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	loan, err := s.ledger.CreateLoan(r.Context(), req.CustomerKey, kind, req.Principal, req.Tenure)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetAllLoans(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if loans == nil {
		loans = []*models.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loan, err := s.ledger.GetLoan(r.Context(), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteLoan(r.Context(), loanID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) approveLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loan, err := s.ledger.ApproveLoan(r.Context(), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) rejectLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loan, err := s.ledger.RejectLoan(r.Context(), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) disburseLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req disburseRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	loan, err := s.ledger.DisburseLoan(r.Context(), loanID, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	schedule, err := s.ledger.LoanSchedule(r.Context(), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) recordRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req repaymentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	receipt, err := s.ledger.RecordPayment(r.Context(), loanID, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) listRepaymentsHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txs, err := s.ledger.GetTransactions(r.Context(), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	repayments := []*models.Transaction{}
	for _, tx := range txs {
		if tx.Type == models.TransactionTypeRepayment {
			repayments = append(repayments, tx)
		}
	}
	writeJSON(w, http.StatusOK, repayments)
}

func (s *Server) portfolioHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.PortfolioSummary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) overdueScanHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.ledger.FlagOverdueLoans(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"flagged": n})
}

func loanIDFromPath(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid loan ID", errBadRequest)
	}
	return id, nil
}

// decodeJSON reads the request body into v. An empty body is accepted only
// when optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

// parseDate reads an optional YYYY-MM-DD date as midnight UTC.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date must be YYYY-MM-DD", errBadRequest)
	}
	return &d, nil
}
