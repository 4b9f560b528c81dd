package lending

import (
	"context"
	"errors"
	"fmt"

	"bitguardian/internal/domain/loan"
)

// Directory lists the current snapshot of open loan offers.
type Directory struct{ contract Contract }

func NewDirectory(c Contract) *Directory { return &Directory{contract: c} }

func (d *Directory) ListOpenLoans(ctx context.Context) ([]loan.Loan, error) {
	loans, err := d.contract.ListOpenLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	out := make([]loan.Loan, 0, len(loans))
	for _, l := range loans {
		if l.Status == loan.StatusOpen {
			out = append(out, l)
		}
	}
	return out, nil
}

// GetLoan reads one loan in any status.
func (d *Directory) GetLoan(ctx context.Context, loanID uint64) (loan.Loan, error) {
	l, err := d.contract.GetLoan(ctx, loanID)
	if errors.Is(err, ErrLoanNotFound) {
		return loan.Loan{}, fmt.Errorf("loan %d: %w", loanID, ErrLoanNotFound)
	}
	if err != nil {
		return loan.Loan{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return l, nil
}
