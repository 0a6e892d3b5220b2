package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TermsQuotes counts terms calculations by product and outcome.
	TermsQuotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microloan_terms_quotes_total",
			Help: "Terms calculations served, by product and result",
		},
		[]string{"product", "result"},
	)

	// Repayments counts repayment attempts by outcome.
	Repayments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microloan_repayments_total",
			Help: "Repayment attempts, by result",
		},
		[]string{"result"},
	)

	// RepaidAmount accumulates applied repayment money by portion.
	RepaidAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microloan_repaid_amount_total",
			Help: "Money applied to loans, split into interest and principal",
		},
		[]string{"portion"},
	)

	// LoanTransitions counts lifecycle transitions by target status.
	LoanTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microloan_loan_transitions_total",
			Help: "Loan lifecycle transitions, by new status",
		},
		[]string{"status"},
	)

	// QuoteCache counts quote cache lookups.
	QuoteCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microloan_quote_cache_lookups_total",
			Help: "Quote cache lookups, by hit or miss",
		},
		[]string{"outcome"},
	)
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)
