package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitguardian/internal/domain/loan"
	"bitguardian/internal/testutil/contractmock"
	"bitguardian/internal/usecase/lending"
	"bitguardian/internal/usecase/session"
	"bitguardian/internal/usecase/wallet"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// -------- helpers --------

const lender = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type providerFunc func(ctx context.Context) ([]string, error)

func (f providerFunc) RequestAccounts(ctx context.Context) ([]string, error) { return f(ctx) }

type testServer struct {
	e   *echo.Echo
	reg *session.Registry
}

func newTestServer(t *testing.T, p wallet.Provider, c *contractmock.Contract) *testServer {
	t.Helper()
	dir := lending.NewDirectory(c)
	reg := session.NewRegistry(wallet.NewConnector(p), lending.NewGateway(c, lending.NopPublisher{}), dir)
	t.Cleanup(reg.CloseAll)

	e := echo.New()
	e.Validator = NewValidator()
	RegisterRoutes(e, Handlers{
		Health:   NewHandler(),
		Loans:    NewLoanHandler(dir),
		Sessions: NewSessionHandler(reg),
		Profiles: NewProfileHandler(nil),
	}, nil)
	return &testServer{e: e, reg: reg}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type stateBody struct {
	SessionID  string      `json:"session_id"`
	Account    string      `json:"account"`
	Loans      []loan.Loan `json:"loans"`
	Loading    bool        `json:"loading"`
	Connecting bool        `json:"connecting"`
	Error      string      `json:"error"`
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stateBody {
	t.Helper()
	var s stateBody
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("bad json: %v; raw=%s", err, rec.Body.String())
	}
	return s
}

func accounts(a ...string) providerFunc {
	return func(context.Context) ([]string, error) { return a, nil }
}

func (s *testServer) newSession(t *testing.T) string {
	t.Helper()
	rec := s.do(t, stdhttp.MethodPost, "/sessions", nil)
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("create session status = %d", rec.Code)
	}
	return decodeState(t, rec).SessionID
}

// -------- tests --------

func TestSession_ConnectWallet_LoadsLoans(t *testing.T) {
	c := &contractmock.Contract{
		ListOpenLoansFn: func(ctx context.Context) ([]loan.Loan, error) {
			return []loan.Loan{{ID: 7, Lender: lender, Status: loan.StatusOpen}}, nil
		},
	}
	s := newTestServer(t, accounts(lender), c)
	sid := s.newSession(t)

	rec := s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/wallet", nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	st := decodeState(t, rec)
	if st.Account != lender || len(st.Loans) != 1 || st.Loans[0].ID != 7 {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Loading || st.Connecting || st.Error != "" {
		t.Fatalf("flags not settled: %+v", st)
	}
}

func TestSession_ConnectWallet_UserRejected(t *testing.T) {
	p := providerFunc(func(context.Context) ([]string, error) { return nil, wallet.ErrUserRejected })
	s := newTestServer(t, p, &contractmock.Contract{})
	sid := s.newSession(t)

	rec := s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/wallet", nil)
	if rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	st := decodeState(t, s.do(t, stdhttp.MethodGet, "/sessions/"+sid, nil))
	if st.Error != session.MsgConnectFailed || st.Account != "" {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestSession_ConnectWallet_NoProvider(t *testing.T) {
	s := newTestServer(t, nil, &contractmock.Contract{})
	sid := s.newSession(t)

	rec := s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/wallet", nil)
	if rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSession_UnknownSessionIs404(t *testing.T) {
	s := newTestServer(t, nil, &contractmock.Contract{})
	for _, tc := range []struct{ method, path string }{
		{stdhttp.MethodGet, "/sessions/nope"},
		{stdhttp.MethodDelete, "/sessions/nope"},
		{stdhttp.MethodPost, "/sessions/nope/wallet"},
		{stdhttp.MethodPost, "/sessions/nope/loans/refresh"},
	} {
		if rec := s.do(t, tc.method, tc.path, nil); rec.Code != stdhttp.StatusNotFound {
			t.Fatalf("%s %s = %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestSession_CreateThenTake_NoAutoRefresh(t *testing.T) {
	listed := 0
	c := &contractmock.Contract{
		CreateLoanFn: func(ctx context.Context, l string, p, col decimal.Decimal) (uint64, error) {
			if !p.Equal(decimal.RequireFromString("0.5")) || !col.Equal(decimal.RequireFromString("0.75")) {
				t.Errorf("amounts = %s/%s", p, col)
			}
			return 42, nil
		},
		TakeLoanFn: func(ctx context.Context, b string, id uint64, col decimal.Decimal) error {
			if id != 42 {
				return loan.ErrNotFound
			}
			return nil
		},
		ListOpenLoansFn: func(ctx context.Context) ([]loan.Loan, error) {
			listed++
			return nil, nil
		},
	}
	s := newTestServer(t, accounts(lender), c)
	sid := s.newSession(t)
	s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/wallet", nil)

	rec := s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/loans", map[string]string{"principal": "0.5", "collateral": "0.75"})
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("create status = %d; body=%s", rec.Code, rec.Body.String())
	}
	var created map[string]uint64
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created["loan_id"] != 42 {
		t.Fatalf("loan_id = %d, want 42", created["loan_id"])
	}

	rec = s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/loans/42/take", map[string]string{"collateral": "0.75"})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("take status = %d; body=%s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/loans/999/take", map[string]string{"collateral": "0.75"})
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("take unknown status = %d, want 404", rec.Code)
	}
	var takeErr ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &takeErr)
	if takeErr.Error != session.MsgTakeFailed {
		t.Fatalf("take body error = %q, want %q", takeErr.Error, session.MsgTakeFailed)
	}
	st := decodeState(t, s.do(t, stdhttp.MethodGet, "/sessions/"+sid, nil))
	if st.Error != session.MsgTakeFailed {
		t.Fatalf("error = %q, want %q", st.Error, session.MsgTakeFailed)
	}
	if listed != 1 {
		t.Fatalf("directory listed %d times, want 1 (connect only)", listed)
	}
}

func TestSession_CreateLoan_ValidationAndBody(t *testing.T) {
	called := false
	c := &contractmock.Contract{
		CreateLoanFn: func(ctx context.Context, l string, p, col decimal.Decimal) (uint64, error) {
			called = true
			return 1, nil
		},
	}
	s := newTestServer(t, accounts(lender), c)
	sid := s.newSession(t)

	rec := s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/loans", map[string]string{"principal": "0", "collateral": "0.000000001"})
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if !containsFieldMsg(er.Details, "Principal", "positive amount") || !containsFieldMsg(er.Details, "Collateral", "8 decimal places") {
		t.Fatalf("unexpected details: %+v", er.Details)
	}

	req := httptest.NewRequest(stdhttp.MethodPost, "/sessions/"+sid+"/loans", bytes.NewBufferString(`{"principal":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rr := httptest.NewRecorder()
	s.e.ServeHTTP(rr, req)
	if rr.Code != stdhttp.StatusBadRequest {
		t.Fatalf("broken json status = %d, want 400", rr.Code)
	}
	if called {
		t.Fatal("contract must not be called")
	}
}

func TestSession_CreateLoan_NotConnectedIs409(t *testing.T) {
	s := newTestServer(t, accounts(lender), &contractmock.Contract{})
	sid := s.newSession(t)

	rec := s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/loans", map[string]string{"principal": "1", "collateral": "2"})
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if er.Error != session.MsgCreateFailed {
		t.Fatalf("body error = %q, want %q", er.Error, session.MsgCreateFailed)
	}
	st := decodeState(t, s.do(t, stdhttp.MethodGet, "/sessions/"+sid, nil))
	if st.Error != session.MsgCreateFailed {
		t.Fatalf("error = %q", st.Error)
	}
}

func TestSession_Repay_InvalidLoanID(t *testing.T) {
	s := newTestServer(t, accounts(lender), &contractmock.Contract{})
	sid := s.newSession(t)

	rec := s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/loans/abc/repay", map[string]string{"principal": "1"})
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSession_Repay_ContractRejection(t *testing.T) {
	c := &contractmock.Contract{
		ListOpenLoansFn: func(ctx context.Context) ([]loan.Loan, error) { return nil, nil },
		RepayLoanFn: func(ctx context.Context, b string, id uint64, amt decimal.Decimal) error {
			return loan.ErrInsufficientRepayment
		},
	}
	s := newTestServer(t, accounts(lender), c)
	sid := s.newSession(t)
	s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/wallet", nil)

	rec := s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/loans/3/repay", map[string]string{"principal": "0.1"})
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if er.Error != session.MsgRepayFailed {
		t.Fatalf("body error = %q, want %q", er.Error, session.MsgRepayFailed)
	}
}

func TestSession_RefreshFailureKeepsLoans(t *testing.T) {
	fail := false
	c := &contractmock.Contract{
		ListOpenLoansFn: func(ctx context.Context) ([]loan.Loan, error) {
			if fail {
				return nil, errors.New("rpc timeout")
			}
			return []loan.Loan{{ID: 1, Status: loan.StatusOpen}}, nil
		},
	}
	s := newTestServer(t, accounts(lender), c)
	sid := s.newSession(t)
	s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/wallet", nil)

	fail = true
	rec := s.do(t, stdhttp.MethodPost, "/sessions/"+sid+"/loans/refresh", nil)
	if rec.Code != stdhttp.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if er.Error != session.MsgFetchFailed {
		t.Fatalf("body error = %q", er.Error)
	}
	st := decodeState(t, s.do(t, stdhttp.MethodGet, "/sessions/"+sid, nil))
	if len(st.Loans) != 1 || st.Error != session.MsgFetchFailed {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestSession_DeleteThenGone(t *testing.T) {
	s := newTestServer(t, nil, &contractmock.Contract{})
	sid := s.newSession(t)

	if rec := s.do(t, stdhttp.MethodDelete, "/sessions/"+sid, nil); rec.Code != stdhttp.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	if rec := s.do(t, stdhttp.MethodGet, "/sessions/"+sid, nil); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", rec.Code)
	}
	if s.reg.Len() != 0 {
		t.Fatalf("registry len = %d", s.reg.Len())
	}
}

func TestSession_ConnectWallet_HonorsRequestContext(t *testing.T) {
	p := providerFunc(func(ctx context.Context) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := newTestServer(t, p, &contractmock.Contract{})
	sid := s.newSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(stdhttp.MethodPost, "/sessions/"+sid+"/wallet", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	if rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
