package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microLoan/pkg/allocation"
	"github.com/mcclellann/microLoan/pkg/metrics"
	"github.com/mcclellann/microLoan/pkg/models"
	"github.com/mcclellann/microLoan/pkg/products"
	"github.com/mcclellann/microLoan/pkg/store"
	"github.com/mcclellann/microLoan/pkg/terms"
	"github.com/shopspring/decimal"
)

// Ledger handles the business logic for loans and transactions.
//
// Every write to a loan happens under that loan's lock and is persisted with
// a version check, so read-snapshot, allocate, persist is atomic per loan
// within a process and detected as a conflict across processes.
type Ledger struct {
	storage store.Storage
	locks   *loanLocks
	now     func() time.Time
	logger  *slog.Logger
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		storage: s,
		locks:   newLoanLocks(),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// Receipt is the outcome of a recorded repayment.
type Receipt struct {
	Transaction *models.Transaction   `json:"transaction"`
	Allocation  allocation.Allocation `json:"allocation"`
	Loan        *models.Loan          `json:"loan"`
}

// Quote computes terms without creating a loan.
func (l *Ledger) Quote(kind products.Kind, principal decimal.Decimal, tenure int, start *time.Time) (terms.LoanTerms, error) {
	t, err := terms.ComputeTerms(kind, principal, tenure, start)
	if err != nil {
		metrics.TermsQuotes.WithLabelValues(string(kind), metrics.ResultRejected).Inc()
		return terms.LoanTerms{}, err
	}
	metrics.TermsQuotes.WithLabelValues(string(kind), metrics.ResultOK).Inc()
	return t, nil
}

// CreateLoan records a pending loan application with computed terms.
func (l *Ledger) CreateLoan(ctx context.Context, customerKey string, kind products.Kind, principal decimal.Decimal, tenure int) (*models.Loan, error) {
	customerKey = strings.TrimSpace(customerKey)
	if customerKey == "" {
		return nil, ErrCustomerRequired
	}
	t, err := l.Quote(kind, principal, tenure, nil)
	if err != nil {
		return nil, err
	}

	now := l.now()
	loan := &models.Loan{
		ID:            uuid.New(),
		CustomerKey:   customerKey,
		TotalPaid:     decimal.Zero,
		InterestPaid:  decimal.Zero,
		PrincipalPaid: decimal.Zero,
		Status:        models.StatusPending,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	loan.ApplyTerms(t)

	if err := l.storage.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	l.logger.Info("loan created", "loan_id", loan.ID, "product", loan.Product,
		"principal", loan.Principal.StringFixed(2), "tenure", loan.Tenure)
	return loan, nil
}

// ApproveLoan moves a pending loan to approved.
func (l *Ledger) ApproveLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return l.transition(ctx, id, "approve", []models.Status{models.StatusPending}, models.StatusApproved, nil)
}

// RejectLoan moves a pending loan to rejected.
func (l *Ledger) RejectLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return l.transition(ctx, id, "reject", []models.Status{models.StatusPending}, models.StatusRejected, nil)
}

// DisburseLoan activates an approved loan. Terms are recomputed from the
// start date, which defaults to today, and a disbursement is recorded.
func (l *Ledger) DisburseLoan(ctx context.Context, id uuid.UUID, start *time.Time) (*models.Loan, error) {
	return l.transition(ctx, id, "disburse", []models.Status{models.StatusApproved}, models.StatusActive,
		func(loan *models.Loan, now time.Time) (*models.Transaction, error) {
			day := now.Truncate(24 * time.Hour)
			if start != nil {
				day = *start
			}
			t, err := terms.ComputeTerms(loan.Product, loan.Principal, loan.Tenure, &day)
			if err != nil {
				return nil, err
			}
			loan.ApplyTerms(t)
			return &models.Transaction{
				ID:               uuid.New(),
				LoanID:           loan.ID,
				Amount:           loan.Principal,
				Type:             models.TransactionTypeDisbursement,
				InterestPortion:  decimal.Zero,
				PrincipalPortion: decimal.Zero,
				BalanceAfter:     loan.Balance,
				Timestamp:        now,
			}, nil
		})
}

type mutation func(loan *models.Loan, now time.Time) (*models.Transaction, error)

func (l *Ledger) transition(ctx context.Context, id uuid.UUID, action string, from []models.Status, to models.Status, mutate mutation) (*models.Loan, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	loan, err := l.storage.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, loan.Status) {
		return nil, &TransitionError{From: loan.Status, Action: action}
	}

	now := l.now()
	var tx *models.Transaction
	if mutate != nil {
		if tx, err = mutate(loan, now); err != nil {
			return nil, err
		}
	}
	prev := loan.Status
	loan.Status = to
	loan.UpdatedAt = now

	if tx != nil {
		err = l.storage.RecordTransaction(ctx, loan, tx)
	} else {
		err = l.storage.UpdateLoan(ctx, loan)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s loan: %w", action, err)
	}

	metrics.LoanTransitions.WithLabelValues(string(to)).Inc()
	l.logger.Info("loan status changed", "loan_id", loan.ID, "from", prev, "to", to)
	return loan, nil
}

// RecordPayment allocates a repayment interest first and persists the new
// balances together with a repayment transaction. A loan that reaches a zero
// balance is completed.
func (l *Ledger) RecordPayment(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal) (*Receipt, error) {
	unlock := l.locks.lock(loanID)
	defer unlock()

	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.Status.AcceptsRepayments() {
		metrics.Repayments.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, fmt.Errorf("%w: loan is %s", ErrPaymentNotAllowed, loan.Status)
	}

	alloc, err := allocation.Allocate(loan.AccountState(), amount)
	if err != nil {
		if errors.Is(err, allocation.ErrInvalidState) {
			metrics.Repayments.WithLabelValues(metrics.ResultError).Inc()
			l.logger.Error("loan ledger state is inconsistent", "loan_id", loan.ID, "err", err)
			return nil, err
		}
		metrics.Repayments.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, err
	}

	now := l.now()
	prev := loan.Status
	loan.ApplyAllocation(alloc)
	loan.UpdatedAt = now
	if loan.Balance.IsZero() {
		loan.Status = models.StatusCompleted
	}

	tx := &models.Transaction{
		ID:               uuid.New(),
		LoanID:           loan.ID,
		Amount:           amount,
		Type:             models.TransactionTypeRepayment,
		InterestPortion:  alloc.InterestPortion,
		PrincipalPortion: alloc.PrincipalPortion,
		BalanceAfter:     alloc.NewRemainingBalance,
		Timestamp:        now,
	}
	if err := l.storage.RecordTransaction(ctx, loan, tx); err != nil {
		if errors.Is(err, store.ErrConcurrentModification) {
			metrics.Repayments.WithLabelValues(metrics.ResultConflict).Inc()
		} else {
			metrics.Repayments.WithLabelValues(metrics.ResultError).Inc()
		}
		return nil, fmt.Errorf("failed to store repayment: %w", err)
	}

	metrics.Repayments.WithLabelValues(metrics.ResultOK).Inc()
	metrics.RepaidAmount.WithLabelValues("interest").Add(alloc.InterestPortion.InexactFloat64())
	metrics.RepaidAmount.WithLabelValues("principal").Add(alloc.PrincipalPortion.InexactFloat64())
	l.logger.Info("repayment recorded", "loan_id", loan.ID, "amount", amount.StringFixed(2),
		"interest", alloc.InterestPortion.StringFixed(2), "principal", alloc.PrincipalPortion.StringFixed(2),
		"balance", loan.Balance.StringFixed(2))
	if loan.Status != prev {
		metrics.LoanTransitions.WithLabelValues(string(loan.Status)).Inc()
		l.logger.Info("loan status changed", "loan_id", loan.ID, "from", prev, "to", loan.Status)
	}

	return &Receipt{Transaction: tx, Allocation: alloc, Loan: loan}, nil
}

// FlagOverdueLoans marks active loans whose maturity date has passed with a
// balance still owing as overdue. It returns how many loans were flagged.
func (l *Ledger) FlagOverdueLoans(ctx context.Context) (int, error) {
	loans, err := l.storage.GetLoansByStatus(ctx, models.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to get active loans: %w", err)
	}

	today := l.now().Truncate(24 * time.Hour)
	flagged := 0
	for _, loan := range loans {
		if !isPastDue(loan, today) {
			continue
		}
		ok, err := l.markOverdue(ctx, loan.ID, today)
		if err != nil {
			l.logger.Error("failed to flag overdue loan", "loan_id", loan.ID, "err", err)
			continue
		}
		if ok {
			flagged++
		}
	}
	return flagged, nil
}

func isPastDue(loan *models.Loan, today time.Time) bool {
	return loan.EndDate != nil && loan.Balance.IsPositive() && today.After(loan.EndDate.Truncate(24*time.Hour))
}

func (l *Ledger) markOverdue(ctx context.Context, id uuid.UUID, today time.Time) (bool, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	// Re-read under the lock; a repayment may have landed since the scan.
	loan, err := l.storage.GetLoan(ctx, id)
	if err != nil {
		return false, err
	}
	if loan.Status != models.StatusActive || !isPastDue(loan, today) {
		return false, nil
	}

	loan.Status = models.StatusOverdue
	loan.UpdatedAt = l.now()
	if err := l.storage.UpdateLoan(ctx, loan); err != nil {
		return false, err
	}
	metrics.LoanTransitions.WithLabelValues(string(models.StatusOverdue)).Inc()
	l.logger.Warn("loan overdue", "loan_id", loan.ID, "end_date", loan.EndDate.Format(time.DateOnly),
		"balance", loan.Balance.StringFixed(2))
	return true, nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(ctx, id)
}

// GetAllLoans retrieves all loans.
func (l *Ledger) GetAllLoans(ctx context.Context) ([]*models.Loan, error) {
	return l.storage.GetAllLoans(ctx)
}

// GetTransactions lists a loan's disbursement and repayment lines.
func (l *Ledger) GetTransactions(ctx context.Context, id uuid.UUID) ([]*models.Transaction, error) {
	if _, err := l.storage.GetLoan(ctx, id); err != nil {
		return nil, err
	}
	return l.storage.GetTransactionsForLoan(ctx, id)
}

// LoanSchedule returns the installment schedule of a disbursed loan.
func (l *Ledger) LoanSchedule(ctx context.Context, id uuid.UUID) ([]terms.Installment, error) {
	loan, err := l.storage.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if loan.StartDate == nil {
		return nil, &TransitionError{From: loan.Status, Action: "schedule"}
	}
	return terms.Schedule(loan.Terms())
}

// DeleteLoan removes a loan that never went live.
func (l *Ledger) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	unlock := l.locks.lock(id)
	defer unlock()

	loan, err := l.storage.GetLoan(ctx, id)
	if err != nil {
		return err
	}
	if loan.Status != models.StatusPending && loan.Status != models.StatusRejected {
		return &TransitionError{From: loan.Status, Action: "delete"}
	}
	return l.storage.DeleteLoan(ctx, id)
}
