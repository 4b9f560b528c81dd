package uow

import (
	"context"

	"bitguardian/internal/domain/loan"
)

type Repos struct {
	Loans loan.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock loan first, then pass it in
	WithinLoanTx(ctx context.Context, loanID uint64, fn func(r Repos, l *loan.Loan) error) error
}
