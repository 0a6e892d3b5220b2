package terms

import (
	"errors"
	"fmt"

	"github.com/mcclellann/microLoan/pkg/products"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPrincipal is returned when the principal is not a positive
	// whole number of cents.
	ErrInvalidPrincipal = errors.New("invalid principal")

	// ErrInvalidTenure is returned when the tenure is not a positive integer.
	ErrInvalidTenure = errors.New("invalid tenure")

	// ErrTenureExceeded is returned when the tenure is above the product's cap.
	ErrTenureExceeded = errors.New("tenure exceeds product maximum")

	// ErrMissingStartDate is returned when a schedule is requested for terms
	// computed without a start date.
	ErrMissingStartDate = errors.New("terms have no start date")
)

type InvalidPrincipalError struct {
	Principal decimal.Decimal
}

func (e *InvalidPrincipalError) Error() string {
	return fmt.Sprintf("invalid principal %s: must be a positive amount in whole cents", e.Principal)
}

func (e *InvalidPrincipalError) Unwrap() error {
	return ErrInvalidPrincipal
}

type InvalidTenureError struct {
	Tenure int
}

func (e *InvalidTenureError) Error() string {
	return fmt.Sprintf("invalid tenure %d: must be a positive whole number", e.Tenure)
}

func (e *InvalidTenureError) Unwrap() error {
	return ErrInvalidTenure
}

// TenureExceededError carries the product cap so callers can show the
// maximum allowed tenure.
type TenureExceededError struct {
	Kind   products.Kind
	Unit   products.TenureUnit
	Tenure int
	Max    int
}

func (e *TenureExceededError) Error() string {
	return fmt.Sprintf("tenure %d %s exceeds the %s product maximum of %d %s",
		e.Tenure, e.Unit, e.Kind, e.Max, e.Unit)
}

func (e *TenureExceededError) Unwrap() error {
	return ErrTenureExceeded
}
