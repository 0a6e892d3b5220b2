package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcclellann/microLoan/pkg/models"
)

var (
	// ErrLoanNotFound is returned when no loan has the requested ID.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrConcurrentModification is returned when a loan changed between being
	// read and being written back. The caller should re-read and retry.
	ErrConcurrentModification = errors.New("loan was modified concurrently")
)

// Storage defines the interface for database operations related to loans and transactions.
//
// Writes that take a loan compare loan.Version with the stored version and
// fail with ErrConcurrentModification on mismatch. On success the stored
// version and loan.Version are both incremented.
type Storage interface {
	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	DeleteLoan(ctx context.Context, id uuid.UUID) error
	GetAllLoans(ctx context.Context) ([]*models.Loan, error)
	GetLoansByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Loan, error)

	// RecordTransaction updates the loan and appends tx in one atomic write.
	RecordTransaction(ctx context.Context, loan *models.Loan, tx *models.Transaction) error
	GetTransactionsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Transaction, error)

	Close() error
}
