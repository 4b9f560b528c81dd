package http

import (
	"context"
	"net/http"

	"bitguardian/internal/domain/loan"

	"github.com/labstack/echo/v4"
)

type LoanDirectory interface {
	ListOpenLoans(ctx context.Context) ([]loan.Loan, error)
	GetLoan(ctx context.Context, loanID uint64) (loan.Loan, error)
}

// LoanHandler serves the session-independent open-loan directory.
type LoanHandler struct{ dir LoanDirectory }

func NewLoanHandler(d LoanDirectory) *LoanHandler { return &LoanHandler{dir: d} }

func (h *LoanHandler) ListOpen(c echo.Context) error {
	loans, err := h.dir.ListOpenLoans(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	if loans == nil {
		loans = []loan.Loan{}
	}
	return c.JSON(http.StatusOK, map[string]any{"loans": loans})
}

func (h *LoanHandler) Get(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	l, err := h.dir.GetLoan(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}
