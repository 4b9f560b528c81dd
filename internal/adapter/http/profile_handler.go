package http

import (
	"errors"
	"net/http"

	domain "bitguardian/internal/domain/profile"
	"bitguardian/internal/usecase/profile"

	"github.com/labstack/echo/v4"
)

type ProfileHandler struct{ uc *profile.Usecase }

func NewProfileHandler(uc *profile.Usecase) *ProfileHandler { return &ProfileHandler{uc: uc} }

type signupReq struct {
	Name          string `json:"name" validate:"required,max=120"`
	Email         string `json:"email" validate:"required,email"`
	WalletAddress string `json:"walletAddress" validate:"required,eth_addr"`
}

func (h *ProfileHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeValidation(c, err)
	}
	p, err := h.uc.Signup(c.Request().Context(), profile.SignupInput(req))
	if err != nil {
		if errors.Is(err, profile.ErrInvalidInput) {
			return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not save profile"})
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProfileHandler) Get(c echo.Context) error {
	p, err := h.uc.Get(c.Request().Context(), c.Param("wallet"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not load profile"})
	}
	return c.JSON(http.StatusOK, p)
}
