package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/mcclellann/microLoan/pkg/cache"
	"github.com/mcclellann/microLoan/pkg/ledger"
	"github.com/mcclellann/microLoan/pkg/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the ledger instance and the HTTP dependencies.
type Server struct {
	ledger   *ledger.Ledger
	storage  store.Storage // Keep a reference to the storage to close it
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewServer(s store.Storage, c cache.Cache, cacheTTL time.Duration, logger *slog.Logger) *Server {
	return &Server{
		ledger:   ledger.NewLedger(s, logger),
		storage:  s,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// routes builds the router with every endpoint and its middleware.
func (s *Server) routes(allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", s.listProductsHandler).Methods("GET")
	api.HandleFunc("/terms/quote", s.quoteHandler).Methods("POST")

	api.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	api.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	api.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	api.HandleFunc("/loans/{id}/approve", s.approveLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/reject", s.rejectLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/disburse", s.disburseLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/schedule", s.scheduleHandler).Methods("GET")
	api.HandleFunc("/loans/{id}/repayments", s.recordRepaymentHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/repayments", s.listRepaymentsHandler).Methods("GET")

	api.HandleFunc("/reports/portfolio", s.portfolioHandler).Methods("GET")
	api.HandleFunc("/admin/overdue-scan", s.overdueScanHandler).Methods("POST")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})(router)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
