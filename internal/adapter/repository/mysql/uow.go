package mysql

import (
	"context"

	"bitguardian/internal/domain/loan"
	"bitguardian/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(uow.Repos{Loans: &LoanRepository{db: tx}})
	})
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanID uint64, fn func(r uow.Repos, l *loan.Loan) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := uow.Repos{Loans: &LoanRepository{db: tx}}
		// lock the loan row up-front to prevent races
		l, err := r.Loans.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
}
