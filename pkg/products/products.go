package products

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind identifies one of the fixed loan products.
type Kind string

const (
	Monthly Kind = "Monthly"
	Weekly  Kind = "Weekly"
	Daily   Kind = "Daily"
)

// TenureUnit is the unit a product's tenure is counted in.
type TenureUnit string

const (
	Months TenureUnit = "months"
	Weeks  TenureUnit = "weeks"
	Days   TenureUnit = "days"
)

// LoanProduct is a catalog entry. Rates are flat (simple interest) over the
// whole tenure, not annualised.
type LoanProduct struct {
	Kind                Kind            `json:"kind"`
	InterestRatePercent decimal.Decimal `json:"interest_rate_percent"`
	TenureUnit          TenureUnit      `json:"tenure_unit"`
	MaxTenure           int             `json:"max_tenure"`
}

// ErrUnknownProduct is returned for product kinds outside the catalog.
var ErrUnknownProduct = errors.New("unknown loan product")

// UnknownProductError carries the rejected product name.
type UnknownProductError struct {
	Kind string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("unknown loan product %q", e.Kind)
}

func (e *UnknownProductError) Unwrap() error {
	return ErrUnknownProduct
}

var (
	monthly = mustProduct(Monthly, 25, Months, 6)
	weekly  = mustProduct(Weekly, 27, Weeks, 24)
	daily   = mustProduct(Daily, 18, Days, 20)
)

func mustProduct(kind Kind, rate int64, unit TenureUnit, maxTenure int) LoanProduct {
	if rate <= 0 || maxTenure <= 0 {
		panic(fmt.Sprintf("products: malformed catalog entry for %s", kind))
	}
	return LoanProduct{
		Kind:                kind,
		InterestRatePercent: decimal.NewFromInt(rate),
		TenureUnit:          unit,
		MaxTenure:           maxTenure,
	}
}

// Lookup returns the catalog entry for kind.
func Lookup(kind Kind) (LoanProduct, error) {
	switch kind {
	case Monthly:
		return monthly, nil
	case Weekly:
		return weekly, nil
	case Daily:
		return daily, nil
	default:
		return LoanProduct{}, &UnknownProductError{Kind: string(kind)}
	}
}

// All returns every product in catalog order.
func All() []LoanProduct {
	return []LoanProduct{monthly, weekly, daily}
}

// ParseKind maps a product name to its Kind, ignoring case and surrounding
// whitespace.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return Monthly, nil
	case "weekly":
		return Weekly, nil
	case "daily":
		return Daily, nil
	default:
		return "", &UnknownProductError{Kind: s}
	}
}

func (k Kind) String() string {
	return string(k)
}
