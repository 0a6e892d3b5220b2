package ledger

import (
	"context"
	"fmt"

	"github.com/mcclellann/microLoan/pkg/models"
	"github.com/shopspring/decimal"
)

// PortfolioSummary aggregates the loan book. Money totals cover disbursed
// loans only (active, overdue and completed).
type PortfolioSummary struct {
	LoansByStatus      map[models.Status]int `json:"loans_by_status"`
	PrincipalDisbursed decimal.Decimal       `json:"principal_disbursed"`
	TotalPayable       decimal.Decimal       `json:"total_payable"`
	OutstandingBalance decimal.Decimal       `json:"outstanding_balance"`
	InterestCollected  decimal.Decimal       `json:"interest_collected"`
	PrincipalCollected decimal.Decimal       `json:"principal_collected"`
	OverdueBalance     decimal.Decimal       `json:"overdue_balance"`
}

// PortfolioSummary builds a report over every loan.
func (l *Ledger) PortfolioSummary(ctx context.Context) (*PortfolioSummary, error) {
	loans, err := l.storage.GetAllLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load loans for portfolio summary: %w", err)
	}

	s := &PortfolioSummary{
		LoansByStatus:      make(map[models.Status]int),
		PrincipalDisbursed: decimal.Zero,
		TotalPayable:       decimal.Zero,
		OutstandingBalance: decimal.Zero,
		InterestCollected:  decimal.Zero,
		PrincipalCollected: decimal.Zero,
		OverdueBalance:     decimal.Zero,
	}
	for _, loan := range loans {
		s.LoansByStatus[loan.Status]++

		switch loan.Status {
		case models.StatusActive, models.StatusOverdue, models.StatusCompleted:
		default:
			continue
		}
		s.PrincipalDisbursed = s.PrincipalDisbursed.Add(loan.Principal)
		s.TotalPayable = s.TotalPayable.Add(loan.TotalPayable)
		s.OutstandingBalance = s.OutstandingBalance.Add(loan.Balance)
		s.InterestCollected = s.InterestCollected.Add(loan.InterestPaid)
		s.PrincipalCollected = s.PrincipalCollected.Add(loan.PrincipalPaid)
		if loan.Status == models.StatusOverdue {
			s.OverdueBalance = s.OverdueBalance.Add(loan.Balance)
		}
	}
	return s, nil
}
