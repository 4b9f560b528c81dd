package http

import (
	"errors"
	"net/http"

	"bitguardian/internal/usecase/lending"
	"bitguardian/internal/usecase/session"
	"bitguardian/internal/usecase/wallet"

	"github.com/labstack/echo/v4"
)

// statusFor maps the lending error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lending.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lending.ErrLoanNotFound), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, wallet.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, wallet.ErrProviderUnavailable), errors.Is(err, wallet.ErrNoAccounts):
		return http.StatusServiceUnavailable
	case errors.Is(err, lending.ErrSubmissionFailed), errors.Is(err, session.ErrStale):
		return http.StatusConflict
	case errors.Is(err, lending.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	return c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
}

func writeValidation(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
}
