package http

import "github.com/labstack/echo/v4"

type Handlers struct {
	Health   *Handler
	Loans    *LoanHandler
	Sessions *SessionHandler
	Profiles *ProfileHandler
}

// RegisterRoutes mounts the API. Loan submissions sit behind idem, which may
// be nil in tests.
func RegisterRoutes(e *echo.Echo, h Handlers, idem echo.MiddlewareFunc) {
	e.GET("/health", h.Health.Health)
	e.GET("/loans", h.Loans.ListOpen)
	e.GET("/loans/:id", h.Loans.Get)

	e.POST("/signup", h.Profiles.Signup)
	e.GET("/users/:wallet", h.Profiles.Get)

	s := e.Group("/sessions")
	s.POST("", h.Sessions.Create)
	s.GET("/:sid", h.Sessions.Get)
	s.DELETE("/:sid", h.Sessions.Delete)
	s.POST("/:sid/wallet", h.Sessions.ConnectWallet)
	s.POST("/:sid/loans/refresh", h.Sessions.RefreshLoans)

	var mw []echo.MiddlewareFunc
	if idem != nil {
		mw = append(mw, idem)
	}
	s.POST("/:sid/loans", h.Sessions.CreateLoan, mw...)
	s.POST("/:sid/loans/:id/take", h.Sessions.TakeLoan, mw...)
	s.POST("/:sid/loans/:id/repay", h.Sessions.RepayLoan, mw...)
}
