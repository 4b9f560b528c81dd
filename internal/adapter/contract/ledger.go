package contract

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitguardian/internal/domain/loan"
	"bitguardian/internal/domain/uow"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ledger is the contract layer backed by the loans table. State transitions
// run under a row lock: open → active (take) → repaid (repay).
type Ledger struct {
	loans loan.Repository
	uow   uow.UnitOfWork
}

func NewLedger(loans loan.Repository, tx uow.UnitOfWork) *Ledger {
	return &Ledger{loans: loans, uow: tx}
}

func (l *Ledger) CreateLoan(ctx context.Context, lender string, principal, collateral decimal.Decimal) (uint64, error) {
	rec := &loan.Loan{
		Lender:          lender,
		Principal:       principal,
		Collateral:      collateral,
		Status:          loan.StatusOpen,
		StatusUpdatedAt: time.Now().UTC(),
	}
	err := l.uow.WithinTx(ctx, func(r uow.Repos) error {
		return r.Loans.Create(ctx, rec)
	})
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

func (l *Ledger) GetLoan(ctx context.Context, loanID uint64) (loan.Loan, error) {
	rec, err := l.loans.GetByID(ctx, loanID)
	if err != nil {
		return loan.Loan{}, notFound(err)
	}
	return *rec, nil
}

func (l *Ledger) TakeLoan(ctx context.Context, borrower string, loanID uint64, collateral decimal.Decimal) error {
	err := l.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, ln *loan.Loan) error {
		// State guard: only open → active
		if ln.Status != loan.StatusOpen {
			return loan.ErrNotOpen
		}
		if sameAddress(ln.Lender, borrower) {
			return loan.ErrSelfTake
		}
		if collateral.LessThan(ln.Collateral) {
			return loan.ErrInsufficientCollateral
		}
		b := borrower
		ln.Borrower = &b
		ln.Status = loan.StatusActive
		ln.StatusUpdatedAt = time.Now().UTC()
		return r.Loans.Save(ctx, ln)
	})
	return notFound(err)
}

func (l *Ledger) RepayLoan(ctx context.Context, borrower string, loanID uint64, amount decimal.Decimal) error {
	err := l.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, ln *loan.Loan) error {
		if ln.Status != loan.StatusActive {
			return loan.ErrNotActive
		}
		if ln.Borrower == nil || !sameAddress(*ln.Borrower, borrower) {
			return loan.ErrNotBorrower
		}
		if amount.LessThan(ln.Principal) {
			return loan.ErrInsufficientRepayment
		}
		ln.Status = loan.StatusRepaid
		ln.StatusUpdatedAt = time.Now().UTC()
		return r.Loans.Save(ctx, ln)
	})
	return notFound(err)
}

func (l *Ledger) ListOpenLoans(ctx context.Context) ([]loan.Loan, error) {
	return l.loans.ListByStatus(ctx, loan.StatusOpen)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return loan.ErrNotFound
	}
	return err
}

// addresses may arrive checksummed or lowercased
func sameAddress(a, b string) bool { return strings.EqualFold(a, b) }
