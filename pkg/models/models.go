package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microLoan/pkg/allocation"
	"github.com/mcclellann/microLoan/pkg/products"
	"github.com/mcclellann/microLoan/pkg/terms"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusActive    Status = "active" // disbursed and repaying
	StatusOverdue   Status = "overdue"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// AcceptsRepayments reports whether payments may be applied in this status.
func (s Status) AcceptsRepayments() bool {
	return s == StatusActive || s == StatusOverdue
}

type Loan struct {
	ID                  uuid.UUID           `json:"id"`
	CustomerKey         string              `json:"customer_key"` // Link to external customer system
	Product             products.Kind       `json:"product"`
	Principal           decimal.Decimal     `json:"principal"`
	InterestRatePercent decimal.Decimal     `json:"interest_rate_percent"`
	InterestAmount      decimal.Decimal     `json:"interest_amount"`
	TotalPayable        decimal.Decimal     `json:"total_payable"`
	Tenure              int                 `json:"tenure"`
	TenureUnit          products.TenureUnit `json:"tenure_unit"`
	InstallmentAmount   decimal.Decimal     `json:"installment_amount"`
	StartDate           *time.Time          `json:"start_date,omitempty"` // Set on disbursement
	EndDate             *time.Time          `json:"end_date,omitempty"`
	TotalPaid           decimal.Decimal     `json:"total_paid"`
	InterestPaid        decimal.Decimal     `json:"interest_paid"`
	PrincipalPaid       decimal.Decimal     `json:"principal_paid"`
	Balance             decimal.Decimal     `json:"balance"` // TotalPayable - TotalPaid
	Status              Status              `json:"status"`
	Version             int                 `json:"version"` // Optimistic concurrency token
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// ApplyTerms copies computed terms onto the loan and resets its balance.
func (l *Loan) ApplyTerms(t terms.LoanTerms) {
	l.Product = t.Product
	l.Principal = t.Principal
	l.InterestRatePercent = t.InterestRatePercent
	l.InterestAmount = t.InterestAmount
	l.TotalPayable = t.TotalPayable
	l.Tenure = t.Tenure
	l.TenureUnit = t.TenureUnit
	l.InstallmentAmount = t.InstallmentAmount
	l.StartDate = t.StartDate
	l.EndDate = t.EndDate
	l.Balance = t.TotalPayable.Sub(l.TotalPaid)
}

// Terms rebuilds the loan's terms.
func (l *Loan) Terms() terms.LoanTerms {
	return terms.LoanTerms{
		Product:             l.Product,
		Principal:           l.Principal,
		InterestRatePercent: l.InterestRatePercent,
		InterestAmount:      l.InterestAmount,
		TotalPayable:        l.TotalPayable,
		Tenure:              l.Tenure,
		TenureUnit:          l.TenureUnit,
		InstallmentAmount:   l.InstallmentAmount,
		StartDate:           l.StartDate,
		EndDate:             l.EndDate,
	}
}

// AccountState is the snapshot handed to the repayment allocator.
func (l *Loan) AccountState() allocation.AccountState {
	return allocation.AccountState{
		TotalPayable:    l.TotalPayable,
		InterestAmount:  l.InterestAmount,
		PrincipalAmount: l.Principal,
		TotalPaid:       l.TotalPaid,
		InterestPaid:    l.InterestPaid,
		PrincipalPaid:   l.PrincipalPaid,
	}
}

// ApplyAllocation records an allocation's cumulative totals on the loan.
func (l *Loan) ApplyAllocation(a allocation.Allocation) {
	l.TotalPaid = a.NewTotalPaid
	l.InterestPaid = a.NewInterestPaid
	l.PrincipalPaid = a.NewPrincipalPaid
	l.Balance = a.NewRemainingBalance
}

type TransactionType string

const (
	TransactionTypeDisbursement TransactionType = "disbursement"
	TransactionTypeRepayment    TransactionType = "repayment"
)

// Transaction is a ledger line for a loan. Repayment lines double as receipts.
type Transaction struct {
	ID               uuid.UUID       `json:"id"`
	LoanID           uuid.UUID       `json:"loan_id"`
	Amount           decimal.Decimal `json:"amount"`
	Type             TransactionType `json:"type"`
	InterestPortion  decimal.Decimal `json:"interest_portion"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	Timestamp        time.Time       `json:"timestamp"`
}
