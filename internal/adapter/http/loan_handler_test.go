package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"bitguardian/internal/domain/loan"
	"bitguardian/internal/testutil/contractmock"
	"bitguardian/internal/usecase/lending"

	"github.com/labstack/echo/v4"
)

func TestListOpen_OnlyOpenLoans(t *testing.T) {
	e := echo.New()
	c := &contractmock.Contract{
		ListOpenLoansFn: func(ctx context.Context) ([]loan.Loan, error) {
			return []loan.Loan{
				{ID: 1, Status: loan.StatusOpen},
				{ID: 2, Status: loan.StatusActive},
				{ID: 3, Status: loan.StatusOpen},
			}, nil
		},
	}
	h := NewLoanHandler(lending.NewDirectory(c))

	req := httptest.NewRequest(stdhttp.MethodGet, "/loans", nil)
	rec := httptest.NewRecorder()
	if err := h.ListOpen(e.NewContext(req, rec)); err != nil {
		t.Fatalf("ListOpen error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Loans []loan.Loan `json:"loans"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(body.Loans) != 2 || body.Loans[0].ID != 1 || body.Loans[1].ID != 3 {
		t.Fatalf("unexpected loans: %+v", body.Loans)
	}
}

func TestListOpen_FetchFailedIs502(t *testing.T) {
	e := echo.New()
	c := &contractmock.Contract{
		ListOpenLoansFn: func(ctx context.Context) ([]loan.Loan, error) {
			return nil, errors.New("node down")
		},
	}
	h := NewLoanHandler(lending.NewDirectory(c))

	req := httptest.NewRequest(stdhttp.MethodGet, "/loans", nil)
	rec := httptest.NewRecorder()
	if err := h.ListOpen(e.NewContext(req, rec)); err != nil {
		t.Fatalf("ListOpen error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestGetLoan_StatusCodes(t *testing.T) {
	e := echo.New()
	c := &contractmock.Contract{
		GetLoanFn: func(ctx context.Context, id uint64) (loan.Loan, error) {
			if id == 42 {
				return loan.Loan{ID: 42, Lender: lender, Status: loan.StatusOpen}, nil
			}
			return loan.Loan{}, loan.ErrNotFound
		},
	}
	h := NewLoanHandler(lending.NewDirectory(c))

	for _, tc := range []struct {
		id   string
		want int
	}{
		{"42", stdhttp.StatusOK},
		{"999", stdhttp.StatusNotFound},
		{"abc", stdhttp.StatusBadRequest},
	} {
		req := httptest.NewRequest(stdhttp.MethodGet, "/loans/"+tc.id, nil)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)
		ctx.SetParamNames("id")
		ctx.SetParamValues(tc.id)
		if err := h.Get(ctx); err != nil {
			t.Fatalf("Get(%s) error: %v", tc.id, err)
		}
		if rec.Code != tc.want {
			t.Fatalf("Get(%s) status = %d, want %d", tc.id, rec.Code, tc.want)
		}
	}
}
