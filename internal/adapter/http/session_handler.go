package http

import (
	"errors"
	"net/http"
	"strconv"

	"bitguardian/internal/usecase/session"

	"github.com/labstack/echo/v4"
)

type SessionHandler struct{ reg *session.Registry }

func NewSessionHandler(r *session.Registry) *SessionHandler { return &SessionHandler{reg: r} }

type createLoanReq struct {
	Principal  string `json:"principal" validate:"required,btcamount"`
	Collateral string `json:"collateral" validate:"required,btcamount"`
}

type takeLoanReq struct {
	Collateral string `json:"collateral" validate:"required,btcamount"`
}

type repayLoanReq struct {
	Principal string `json:"principal" validate:"required,btcamount"`
}

type sessionResp struct {
	SessionID string `json:"session_id"`
	session.State
}

func (h *SessionHandler) controller(c echo.Context) (*session.Controller, error) {
	return h.reg.Get(c.Param("sid"))
}

// writeSessionError reports a failed session operation with the message the
// controller recorded in its state, so the body matches what GET shows.
func writeSessionError(c echo.Context, ctl *session.Controller, err error) error {
	msg := err.Error()
	if !errors.Is(err, session.ErrStale) && !errors.Is(err, session.ErrClosed) {
		if stateMsg := ctl.State().Error; stateMsg != "" {
			msg = stateMsg
		}
	}
	return c.JSON(statusFor(err), ErrorResponse{Error: msg})
}

func loanID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil
}

func (h *SessionHandler) Create(c echo.Context) error {
	ctl := h.reg.Create()
	return c.JSON(http.StatusCreated, sessionResp{SessionID: ctl.ID(), State: ctl.State()})
}

func (h *SessionHandler) Get(c echo.Context) error {
	ctl, err := h.controller(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp{SessionID: ctl.ID(), State: ctl.State()})
}

func (h *SessionHandler) Delete(c echo.Context) error {
	if err := h.reg.Close(c.Param("sid")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) ConnectWallet(c echo.Context) error {
	ctl, err := h.controller(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := ctl.ConnectWallet(c.Request().Context()); err != nil {
		return writeSessionError(c, ctl, err)
	}
	return c.JSON(http.StatusOK, sessionResp{SessionID: ctl.ID(), State: ctl.State()})
}

func (h *SessionHandler) RefreshLoans(c echo.Context) error {
	ctl, err := h.controller(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := ctl.RefreshLoans(c.Request().Context()); err != nil {
		return writeSessionError(c, ctl, err)
	}
	return c.JSON(http.StatusOK, sessionResp{SessionID: ctl.ID(), State: ctl.State()})
}

func (h *SessionHandler) CreateLoan(c echo.Context) error {
	ctl, err := h.controller(c)
	if err != nil {
		return writeError(c, err)
	}
	var req createLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeValidation(c, err)
	}
	id, err := ctl.CreateLoan(c.Request().Context(), req.Principal, req.Collateral)
	if err != nil {
		return writeSessionError(c, ctl, err)
	}
	return c.JSON(http.StatusCreated, map[string]uint64{"loan_id": id})
}

func (h *SessionHandler) TakeLoan(c echo.Context) error {
	ctl, err := h.controller(c)
	if err != nil {
		return writeError(c, err)
	}
	id, ok := loanID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	var req takeLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeValidation(c, err)
	}
	taken, err := ctl.TakeLoan(c.Request().Context(), id, req.Collateral)
	if err != nil {
		return writeSessionError(c, ctl, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": taken})
}

func (h *SessionHandler) RepayLoan(c echo.Context) error {
	ctl, err := h.controller(c)
	if err != nil {
		return writeError(c, err)
	}
	id, ok := loanID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	var req repayLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeValidation(c, err)
	}
	repaid, err := ctl.RepayLoan(c.Request().Context(), id, req.Principal)
	if err != nil {
		return writeSessionError(c, ctl, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": repaid})
}
