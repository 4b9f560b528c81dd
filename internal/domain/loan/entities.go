package loan

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits a BTC amount may carry (satoshi precision).
const AmountScale = 8

// maxAmount is the exclusive upper bound that fits decimal(20,8).
var maxAmount = decimal.New(1, 20-AmountScale)

type Status string

const (
	StatusOpen   Status = "open"
	StatusActive Status = "active"
	StatusRepaid Status = "repaid"
)

var (
	ErrNotFound      = errors.New("loan not found")
	ErrInvalidAmount = errors.New("invalid amount")

	// contract rejections
	ErrNotOpen                = errors.New("loan is not open")
	ErrNotActive              = errors.New("loan is not active")
	ErrSelfTake               = errors.New("lender cannot take own loan")
	ErrNotBorrower            = errors.New("only the borrower can repay")
	ErrInsufficientCollateral = errors.New("collateral below required amount")
	ErrInsufficientRepayment  = errors.New("repayment below principal")
)

// Table: loans
type Loan struct {
	ID              uint64          `gorm:"primaryKey;column:id;autoIncrement" json:"id"`
	Lender          string          `gorm:"column:lender;size:64;not null;index:idx_loans_lender" json:"lender"`
	Borrower        *string         `gorm:"column:borrower;size:64;index:idx_loans_borrower" json:"borrower,omitempty"`
	Principal       decimal.Decimal `gorm:"column:principal;type:decimal(20,8);not null" json:"principal"`
	Collateral      decimal.Decimal `gorm:"column:collateral;type:decimal(20,8);not null" json:"collateral"`
	Status          Status          `gorm:"column:status;type:enum('open','active','repaid');default:'open';index:idx_loans_status" json:"status"`
	StatusUpdatedAt time.Time       `gorm:"column:status_updated_at" json:"status_updated_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

// ParseAmount parses a plain BTC decimal string (no exponent). The value must
// be positive, below 1e12 and fit in AmountScale fractional digits.
func ParseAmount(raw string) (decimal.Decimal, error) {
	if strings.ContainsAny(raw, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() || d.GreaterThanOrEqual(maxAmount) || !d.Equal(d.Truncate(AmountScale)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
