package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcclellann/microLoan/pkg/cache"
	"github.com/mcclellann/microLoan/pkg/ledger"
	"github.com/mcclellann/microLoan/pkg/models"
	"github.com/mcclellann/microLoan/pkg/products"
	"github.com/mcclellann/microLoan/pkg/store"
	"github.com/mcclellann/microLoan/pkg/terms"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:5173"

type testAPI struct {
	t       *testing.T
	server  *Server
	cache   *cache.MemoryCache
	handler http.Handler
}

func setupTestServer(t *testing.T) *testAPI {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test_api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := cache.NewMemoryCache()
	server := NewServer(s, c, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &testAPI{
		t:       t,
		server:  server,
		cache:   c,
		handler: server.routes([]string{testOrigin}),
	}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s = %s, want %s", field, got, want)
}

// activeLoan creates, approves and disburses a loan via the API.
func (a *testAPI) activeLoan(product, principal string, tenure int) models.Loan {
	a.t.Helper()
	rr := a.do("POST", "/api/loans", map[string]any{
		"customer_key": "test_cust",
		"product":      product,
		"principal":    principal,
		"tenure":       tenure,
	})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	loan := decodeBody[models.Loan](a.t, rr)

	rr = a.do("POST", "/api/loans/"+loan.ID.String()+"/approve", nil)
	require.Equal(a.t, http.StatusOK, rr.Code, rr.Body.String())

	rr = a.do("POST", "/api/loans/"+loan.ID.String()+"/disburse", map[string]string{"start_date": "2025-01-15"})
	require.Equal(a.t, http.StatusOK, rr.Code, rr.Body.String())
	return decodeBody[models.Loan](a.t, rr)
}

func TestAPI_ListProducts(t *testing.T) {
	api := setupTestServer(t)

	rr := api.do("GET", "/api/products", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	got := decodeBody[[]products.LoanProduct](t, rr)
	require.Len(t, got, 3)
	assert.Equal(t, products.Monthly, got[0].Kind)
	assert.Equal(t, 6, got[0].MaxTenure)
	assert.Equal(t, 24, got[1].MaxTenure)
	assert.Equal(t, 20, got[2].MaxTenure)
}

func TestAPI_Quote(t *testing.T) {
	api := setupTestServer(t)

	body := map[string]any{"product": "monthly", "principal": "100000", "tenure": 3, "start_date": "2025-01-15"}
	rr := api.do("POST", "/api/terms/quote", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	quote := decodeBody[terms.LoanTerms](t, rr)
	assert.Equal(t, products.Monthly, quote.Product)
	assertAmount(t, "25000", quote.InterestAmount, "InterestAmount")
	assertAmount(t, "125000", quote.TotalPayable, "TotalPayable")
	assertAmount(t, "41666.67", quote.InstallmentAmount, "InstallmentAmount")
	require.NotNil(t, quote.EndDate)
	assert.Equal(t, "2025-04-15", quote.EndDate.Format(time.DateOnly))
	assert.Equal(t, 1, api.cache.Len())

	// A repeated quote is served from the cache with the same body.
	again := api.do("POST", "/api/terms/quote", body)
	require.Equal(t, http.StatusOK, again.Code)
	assert.JSONEq(t, rr.Body.String(), again.Body.String())
	assert.Equal(t, 1, api.cache.Len())
}

func TestAPI_QuoteRejections(t *testing.T) {
	api := setupTestServer(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"tenure over cap", map[string]any{"product": "Weekly", "principal": "10000", "tenure": 25}, http.StatusUnprocessableEntity, "tenure_exceeded"},
		{"unknown product", map[string]any{"product": "Hourly", "principal": "10000", "tenure": 2}, http.StatusUnprocessableEntity, "unknown_product"},
		{"zero principal", map[string]any{"product": "Daily", "principal": "0", "tenure": 2}, http.StatusUnprocessableEntity, "invalid_principal"},
		{"zero tenure", map[string]any{"product": "Daily", "principal": "100", "tenure": 0}, http.StatusUnprocessableEntity, "invalid_tenure"},
		{"bad start date", map[string]any{"product": "Daily", "principal": "100", "tenure": 2, "start_date": "15/01/2025"}, http.StatusBadRequest, "bad_request"},
		{"bad principal", map[string]any{"product": "Daily", "principal": "lots", "tenure": 2}, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do("POST", "/api/terms/quote", tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			resp := decodeBody[ErrorResponse](t, rr)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}

	rr := api.do("POST", "/api/terms/quote", map[string]any{"product": "Weekly", "principal": "10000", "tenure": 25})
	resp := decodeBody[ErrorResponse](t, rr)
	assert.Equal(t, 24, resp.MaxTenure)
	assert.Equal(t, 0, api.cache.Len(), "rejected quotes are not cached")
}

func TestAPI_LoanLifecycle(t *testing.T) {
	api := setupTestServer(t)

	rr := api.do("POST", "/api/loans", map[string]any{
		"customer_key": "test_cust", "product": "Monthly", "principal": "100000", "tenure": 3,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	loan := decodeBody[models.Loan](t, rr)
	assert.Equal(t, models.StatusPending, loan.Status)
	loanPath := "/api/loans/" + loan.ID.String()

	rr = api.do("POST", loanPath+"/repayments", map[string]string{"amount": "100"})
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "payment_not_allowed", decodeBody[ErrorResponse](t, rr).Code)

	rr = api.do("POST", loanPath+"/disburse", nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "invalid_transition", decodeBody[ErrorResponse](t, rr).Code)

	rr = api.do("POST", loanPath+"/approve", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, models.StatusApproved, decodeBody[models.Loan](t, rr).Status)

	rr = api.do("POST", loanPath+"/disburse", map[string]string{"start_date": "2025-01-15"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	loan = decodeBody[models.Loan](t, rr)
	assert.Equal(t, models.StatusActive, loan.Status)
	require.NotNil(t, loan.EndDate)
	assert.Equal(t, "2025-04-15", loan.EndDate.Format(time.DateOnly))

	rr = api.do("POST", loanPath+"/repayments", map[string]string{"amount": "50000"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	receipt := decodeBody[ledger.Receipt](t, rr)
	assertAmount(t, "25000", receipt.Allocation.InterestPortion, "InterestPortion")
	assertAmount(t, "25000", receipt.Allocation.PrincipalPortion, "PrincipalPortion")
	assertAmount(t, "75000", receipt.Loan.Balance, "Balance")

	rr = api.do("POST", loanPath+"/repayments", map[string]string{"amount": "80000"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	errResp := decodeBody[ErrorResponse](t, rr)
	assert.Equal(t, "overpayment", errResp.Code)
	require.NotNil(t, errResp.Outstanding)
	assertAmount(t, "75000", *errResp.Outstanding, "Outstanding")

	rr = api.do("POST", loanPath+"/repayments", map[string]string{"amount": "10.005"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "invalid_payment", decodeBody[ErrorResponse](t, rr).Code)

	rr = api.do("POST", loanPath+"/repayments", map[string]string{"amount": "75000"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	receipt = decodeBody[ledger.Receipt](t, rr)
	assert.Equal(t, models.StatusCompleted, receipt.Loan.Status)
	assert.True(t, receipt.Loan.Balance.IsZero())

	rr = api.do("GET", loanPath+"/repayments", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	repayments := decodeBody[[]models.Transaction](t, rr)
	require.Len(t, repayments, 2)
	assertAmount(t, "50000", repayments[0].Amount, "first repayment")
	assertAmount(t, "75000", repayments[1].Amount, "second repayment")

	rr = api.do("GET", loanPath, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	fetched := decodeBody[models.Loan](t, rr)
	assertAmount(t, "25000", fetched.InterestPaid, "InterestPaid")
	assertAmount(t, "100000", fetched.PrincipalPaid, "PrincipalPaid")
	assert.Equal(t, models.StatusCompleted, fetched.Status)
}

func TestAPI_Schedule(t *testing.T) {
	api := setupTestServer(t)
	loan := api.activeLoan("Monthly", "100000", 3)

	rr := api.do("GET", "/api/loans/"+loan.ID.String()+"/schedule", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	schedule := decodeBody[[]terms.Installment](t, rr)
	require.Len(t, schedule, 3)
	assert.Equal(t, "2025-02-15", schedule[0].DueDate.Format(time.DateOnly))
	assertAmount(t, "41666.67", schedule[0].Amount, "first installment")
	assertAmount(t, "41666.66", schedule[2].Amount, "last installment")
}

func TestAPI_RejectAndDelete(t *testing.T) {
	api := setupTestServer(t)

	rr := api.do("POST", "/api/loans", map[string]any{
		"customer_key": "test_cust", "product": "Daily", "principal": "500", "tenure": 5,
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	loan := decodeBody[models.Loan](t, rr)
	loanPath := "/api/loans/" + loan.ID.String()

	rr = api.do("POST", loanPath+"/reject", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.StatusRejected, decodeBody[models.Loan](t, rr).Status)

	rr = api.do("DELETE", loanPath, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = api.do("GET", loanPath, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, rr).Code)

	active := api.activeLoan("Daily", "500", 5)
	rr = api.do("DELETE", "/api/loans/"+active.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAPI_CreateLoanValidation(t *testing.T) {
	api := setupTestServer(t)

	rr := api.do("POST", "/api/loans", map[string]any{"product": "Daily", "principal": "500", "tenure": 5})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do("POST", "/api/loans", map[string]any{
		"customer_key": "c", "product": "Monthly", "principal": "1000", "tenure": 7,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, 6, decodeBody[ErrorResponse](t, rr).MaxTenure)

	rr = api.do("GET", "/api/loans/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do("GET", "/api/loans", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[[]models.Loan](t, rr), "rejected applications are not stored")
}

func TestAPI_PortfolioReport(t *testing.T) {
	api := setupTestServer(t)

	a := api.activeLoan("Monthly", "100000", 3)
	api.activeLoan("Daily", "50000", 10)
	rr := api.do("POST", "/api/loans/"+a.ID.String()+"/repayments", map[string]string{"amount": "50000"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do("GET", "/api/reports/portfolio", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decodeBody[ledger.PortfolioSummary](t, rr)

	assert.Equal(t, 2, summary.LoansByStatus[models.StatusActive])
	assertAmount(t, "150000", summary.PrincipalDisbursed, "PrincipalDisbursed")
	assertAmount(t, "134000", summary.OutstandingBalance, "OutstandingBalance")
	assertAmount(t, "25000", summary.InterestCollected, "InterestCollected")
}

func TestAPI_OverdueScan(t *testing.T) {
	api := setupTestServer(t)
	loan := api.activeLoan("Daily", "1000", 5)

	// The loan matured in January 2025, so it is overdue today.
	rr := api.do("POST", "/api/admin/overdue-scan", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]int{"flagged": 1}, decodeBody[map[string]int](t, rr))

	rr = api.do("GET", "/api/loans/"+loan.ID.String(), nil)
	assert.Equal(t, models.StatusOverdue, decodeBody[models.Loan](t, rr).Status)

	rr = api.do("POST", "/api/loans/"+loan.ID.String()+"/repayments", map[string]string{"amount": "1180"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, models.StatusCompleted, decodeBody[ledger.Receipt](t, rr).Loan.Status)
}

func TestAPI_MetricsAndCORS(t *testing.T) {
	api := setupTestServer(t)
	api.do("POST", "/api/terms/quote", map[string]any{"product": "Daily", "principal": "100", "tenure": 2})

	rr := api.do("GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "microloan_terms_quotes_total")

	req := httptest.NewRequest("GET", "/api/products", nil)
	req.Header.Set("Origin", testOrigin)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/api/products", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
