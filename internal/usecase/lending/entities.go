package lending

import (
	"context"
	"errors"
	"time"

	"bitguardian/internal/domain/loan"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount    = loan.ErrInvalidAmount
	ErrLoanNotFound     = loan.ErrNotFound
	ErrSubmissionFailed = errors.New("submission failed")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrNotConnected     = errors.New("wallet not connected")
)

// Contract is the contract-layer boundary the gateway and directory submit to.
type Contract interface {
	CreateLoan(ctx context.Context, lender string, principal, collateral decimal.Decimal) (uint64, error)
	TakeLoan(ctx context.Context, borrower string, loanID uint64, collateral decimal.Decimal) error
	RepayLoan(ctx context.Context, borrower string, loanID uint64, amount decimal.Decimal) error
	ListOpenLoans(ctx context.Context) ([]loan.Loan, error)
	GetLoan(ctx context.Context, loanID uint64) (loan.Loan, error)
}

type EventType string

const (
	EventLoanCreated EventType = "loan.created"
	EventLoanTaken   EventType = "loan.taken"
	EventLoanRepaid  EventType = "loan.repaid"
)

// Event is emitted after the contract accepted a submission.
type Event struct {
	Type    EventType `json:"type"`
	LoanID  uint64    `json:"loan_id"`
	Account string    `json:"account"`
	Amount  string    `json:"amount"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
