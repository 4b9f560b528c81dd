package contractmock

import (
	"context"
	"errors"

	"bitguardian/internal/domain/loan"
	"bitguardian/internal/usecase/lending"

	"github.com/shopspring/decimal"
)

// Ensure compile-time compliance
var _ lending.Contract = (*Contract)(nil)

var errUnimplemented = errors.New("contractmock: method not implemented")

// Contract is a function-backed mock that satisfies lending.Contract.
// Unfilled function fields return errUnimplemented.
type Contract struct {
	CreateLoanFn    func(ctx context.Context, lender string, principal, collateral decimal.Decimal) (uint64, error)
	TakeLoanFn      func(ctx context.Context, borrower string, loanID uint64, collateral decimal.Decimal) error
	RepayLoanFn     func(ctx context.Context, borrower string, loanID uint64, amount decimal.Decimal) error
	ListOpenLoansFn func(ctx context.Context) ([]loan.Loan, error)
	GetLoanFn       func(ctx context.Context, loanID uint64) (loan.Loan, error)
}

func (m *Contract) CreateLoan(ctx context.Context, lender string, principal, collateral decimal.Decimal) (uint64, error) {
	if m.CreateLoanFn != nil {
		return m.CreateLoanFn(ctx, lender, principal, collateral)
	}
	return 0, errUnimplemented
}

func (m *Contract) TakeLoan(ctx context.Context, borrower string, loanID uint64, collateral decimal.Decimal) error {
	if m.TakeLoanFn != nil {
		return m.TakeLoanFn(ctx, borrower, loanID, collateral)
	}
	return errUnimplemented
}

func (m *Contract) RepayLoan(ctx context.Context, borrower string, loanID uint64, amount decimal.Decimal) error {
	if m.RepayLoanFn != nil {
		return m.RepayLoanFn(ctx, borrower, loanID, amount)
	}
	return errUnimplemented
}

func (m *Contract) ListOpenLoans(ctx context.Context) ([]loan.Loan, error) {
	if m.ListOpenLoansFn != nil {
		return m.ListOpenLoansFn(ctx)
	}
	return nil, errUnimplemented
}

func (m *Contract) GetLoan(ctx context.Context, loanID uint64) (loan.Loan, error) {
	if m.GetLoanFn != nil {
		return m.GetLoanFn(ctx, loanID)
	}
	return loan.Loan{}, errUnimplemented
}
