package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microLoan/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// Writers are serialized per loan by version checks; a single connection
	// also keeps ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		customer_key TEXT NOT NULL,
		product TEXT NOT NULL,
		principal TEXT NOT NULL,
		interest_rate_percent TEXT NOT NULL,
		interest_amount TEXT NOT NULL,
		total_payable TEXT NOT NULL,
		tenure INTEGER NOT NULL,
		tenure_unit TEXT NOT NULL,
		installment_amount TEXT NOT NULL,
		start_date DATETIME,
		end_date DATETIME,
		total_paid TEXT NOT NULL DEFAULT '0',
		interest_paid TEXT NOT NULL DEFAULT '0',
		principal_paid TEXT NOT NULL DEFAULT '0',
		balance TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status);
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		type TEXT NOT NULL,
		interest_portion TEXT NOT NULL DEFAULT '0',
		principal_portion TEXT NOT NULL DEFAULT '0',
		balance_after TEXT NOT NULL DEFAULT '0',
		timestamp DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_loan ON transactions(loan_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const loanColumns = `id, customer_key, product, principal, interest_rate_percent, interest_amount, total_payable,
	tenure, tenure_unit, installment_amount, start_date, end_date, total_paid, interest_paid, principal_paid,
	balance, status, version, created_at, updated_at`

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.CustomerKey, loan.Product, loan.Principal, loan.InterestRatePercent, loan.InterestAmount, loan.TotalPayable,
		loan.Tenure, loan.TenureUnit, loan.InstallmentAmount, loan.StartDate, loan.EndDate, loan.TotalPaid, loan.InterestPaid, loan.PrincipalPaid,
		loan.Balance, loan.Status, loan.Version, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// UpdateLoan writes the loan back if its version is unchanged.
func (s *SQLiteStore) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateLoanTx(ctx, tx, loan); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit loan update: %w", err)
	}
	loan.Version++
	return nil
}

// RecordTransaction writes the loan back and appends the transaction atomically.
func (s *SQLiteStore) RecordTransaction(ctx context.Context, loan *models.Loan, transaction *models.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateLoanTx(ctx, tx, loan); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, loan_id, amount, type, interest_portion, principal_portion, balance_after, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		transaction.ID.String(), transaction.LoanID.String(), transaction.Amount, transaction.Type,
		transaction.InterestPortion, transaction.PrincipalPortion, transaction.BalanceAfter, transaction.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	loan.Version++
	return nil
}

func updateLoanTx(ctx context.Context, tx *sql.Tx, loan *models.Loan) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE loans SET customer_key = ?, product = ?, principal = ?, interest_rate_percent = ?, interest_amount = ?,
			total_payable = ?, tenure = ?, tenure_unit = ?, installment_amount = ?, start_date = ?, end_date = ?,
			total_paid = ?, interest_paid = ?, principal_paid = ?, balance = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		loan.CustomerKey, loan.Product, loan.Principal, loan.InterestRatePercent, loan.InterestAmount,
		loan.TotalPayable, loan.Tenure, loan.TenureUnit, loan.InstallmentAmount, loan.StartDate, loan.EndDate,
		loan.TotalPaid, loan.InterestPaid, loan.PrincipalPaid, loan.Balance, loan.Status, loan.UpdatedAt,
		loan.ID.String(), loan.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM loans WHERE id = ?`, loan.ID.String()).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check loan existence: %w", err)
	}
	if exists == 0 {
		return ErrLoanNotFound
	}
	return ErrConcurrentModification
}

// DeleteLoan removes a loan and its transactions from the database within a transaction.
func (s *SQLiteStore) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM transactions WHERE loan_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete associated transactions: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrLoanNotFound
	}

	return tx.Commit()
}

// GetAllLoans retrieves all loans, oldest first.
func (s *SQLiteStore) GetAllLoans(ctx context.Context) ([]*models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// GetLoansByStatus retrieves the loans in any of the given statuses.
func (s *SQLiteStore) GetLoansByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Loan, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE status IN (`+placeholders+`) ORDER BY created_at ASC, rowid ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get loans by status: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var loanIDStr string
	var startDate, endDate sql.NullTime
	err := row.Scan(&loanIDStr, &loan.CustomerKey, &loan.Product, &loan.Principal, &loan.InterestRatePercent, &loan.InterestAmount, &loan.TotalPayable,
		&loan.Tenure, &loan.TenureUnit, &loan.InstallmentAmount, &startDate, &endDate, &loan.TotalPaid, &loan.InterestPaid, &loan.PrincipalPaid,
		&loan.Balance, &loan.Status, &loan.Version, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(loanIDStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt loan id %q: %w", loanIDStr, err)
	}
	loan.ID = id
	if startDate.Valid {
		loan.StartDate = &startDate.Time
	}
	if endDate.Valid {
		loan.EndDate = &endDate.Time
	}
	return &loan, nil
}

func scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// GetTransactionsForLoan retrieves all transactions for a given loan ID.
func (s *SQLiteStore) GetTransactionsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, loan_id, amount, type, interest_portion, principal_portion, balance_after, timestamp
		FROM transactions WHERE loan_id = ? ORDER BY timestamp ASC, rowid ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var transaction models.Transaction
		var txIDStr, loanIDStr string
		var timestamp time.Time
		if err := rows.Scan(&txIDStr, &loanIDStr, &transaction.Amount, &transaction.Type,
			&transaction.InterestPortion, &transaction.PrincipalPortion, &transaction.BalanceAfter, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transaction.ID = uuid.MustParse(txIDStr)
		transaction.LoanID = uuid.MustParse(loanIDStr)
		transaction.Timestamp = timestamp
		transactions = append(transactions, &transaction)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for loan transactions: %w", err)
	}
	return transactions, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
