package allocation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPayment is returned for payments that are not a positive
	// whole number of cents.
	ErrInvalidPayment = errors.New("invalid payment amount")

	// ErrOverpayment is returned when a payment is larger than the outstanding balance.
	ErrOverpayment = errors.New("payment exceeds outstanding balance")

	// ErrInvalidState is returned when an account snapshot breaks its own invariants.
	ErrInvalidState = errors.New("inconsistent loan account state")
)

type InvalidPaymentError struct {
	Amount decimal.Decimal
}

func (e *InvalidPaymentError) Error() string {
	return fmt.Sprintf("invalid payment amount %s: must be a positive amount in whole cents", e.Amount)
}

func (e *InvalidPaymentError) Unwrap() error {
	return ErrInvalidPayment
}

// OverpaymentError carries the outstanding balance so the caller can tell
// the user how much is still owed.
type OverpaymentError struct {
	Amount      decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment %s exceeds outstanding balance %s",
		e.Amount.StringFixed(2), e.Outstanding.StringFixed(2))
}

func (e *OverpaymentError) Unwrap() error {
	return ErrOverpayment
}

type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "inconsistent loan account state: " + e.Reason
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}
