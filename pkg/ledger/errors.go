package ledger

import (
	"errors"
	"fmt"

	"github.com/mcclellann/microLoan/pkg/allocation"
	"github.com/mcclellann/microLoan/pkg/models"
	"github.com/mcclellann/microLoan/pkg/products"
	"github.com/mcclellann/microLoan/pkg/store"
	"github.com/mcclellann/microLoan/pkg/terms"
)

var (
	// ErrInvalidTransition is returned when a lifecycle action does not apply
	// to the loan's current status.
	ErrInvalidTransition = errors.New("invalid loan status transition")

	// ErrPaymentNotAllowed is returned for repayments on loans that are not
	// disbursed, or already completed.
	ErrPaymentNotAllowed = errors.New("loan does not accept repayments")

	// ErrCustomerRequired is returned when a loan is created without a customer key.
	ErrCustomerRequired = errors.New("customer key is required")
)

type TransitionError struct {
	From   models.Status
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a loan in status %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsClientError returns true if the error is due to invalid caller input or
// a business-rule rejection, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, products.ErrUnknownProduct) ||
		errors.Is(err, terms.ErrInvalidPrincipal) ||
		errors.Is(err, terms.ErrInvalidTenure) ||
		errors.Is(err, terms.ErrTenureExceeded) ||
		errors.Is(err, allocation.ErrInvalidPayment) ||
		errors.Is(err, allocation.ErrOverpayment) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPaymentNotAllowed) ||
		errors.Is(err, ErrCustomerRequired)
}

// IsNotFound returns true if the error indicates a missing loan.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrLoanNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, store.ErrConcurrentModification)
}
