package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitguardian/internal/domain/loan"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Gateway validates amounts and submits loan operations to the contract layer.
// Submissions are not deduplicated here.
type Gateway struct {
	contract Contract
	events   Publisher
}

func NewGateway(c Contract, p Publisher) *Gateway {
	if p == nil {
		p = NopPublisher{}
	}
	return &Gateway{contract: c, events: p}
}

func (g *Gateway) CreateLoan(ctx context.Context, account, principal, collateral string) (uint64, error) {
	p, err := loan.ParseAmount(principal)
	if err != nil {
		return 0, fmt.Errorf("principal %q: %w", principal, err)
	}
	c, err := loan.ParseAmount(collateral)
	if err != nil {
		return 0, fmt.Errorf("collateral %q: %w", collateral, err)
	}
	if account == "" {
		return 0, fmt.Errorf("%w: %w", ErrSubmissionFailed, ErrNotConnected)
	}

	id, err := g.contract.CreateLoan(ctx, account, p, c)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	g.publish(ctx, EventLoanCreated, id, account, p)
	return id, nil
}

func (g *Gateway) TakeLoan(ctx context.Context, account string, loanID uint64, collateral string) (bool, error) {
	c, err := loan.ParseAmount(collateral)
	if err != nil {
		return false, fmt.Errorf("collateral %q: %w", collateral, err)
	}
	if account == "" {
		return false, fmt.Errorf("%w: %w", ErrSubmissionFailed, ErrNotConnected)
	}

	if err := g.contract.TakeLoan(ctx, account, loanID, c); err != nil {
		return false, submissionErr(loanID, err)
	}
	g.publish(ctx, EventLoanTaken, loanID, account, c)
	return true, nil
}

func (g *Gateway) RepayLoan(ctx context.Context, account string, loanID uint64, principal string) (bool, error) {
	p, err := loan.ParseAmount(principal)
	if err != nil {
		return false, fmt.Errorf("principal %q: %w", principal, err)
	}
	if account == "" {
		return false, fmt.Errorf("%w: %w", ErrSubmissionFailed, ErrNotConnected)
	}

	if err := g.contract.RepayLoan(ctx, account, loanID, p); err != nil {
		return false, submissionErr(loanID, err)
	}
	g.publish(ctx, EventLoanRepaid, loanID, account, p)
	return true, nil
}

func submissionErr(loanID uint64, err error) error {
	if errors.Is(err, ErrLoanNotFound) {
		return fmt.Errorf("loan %d: %w", loanID, ErrLoanNotFound)
	}
	return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
}

// publish never fails the submission: the contract has already accepted it.
func (g *Gateway) publish(ctx context.Context, typ EventType, loanID uint64, account string, amount decimal.Decimal) {
	ev := Event{Type: typ, LoanID: loanID, Account: account, Amount: amount.String(), At: time.Now().UTC()}
	if err := g.events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", string(typ)).Uint64("loan_id", loanID).Msg("publish loan event failed")
	}
}
