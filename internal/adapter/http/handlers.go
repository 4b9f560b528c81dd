package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type Handler struct{ checks map[string]Check }

func NewHandler() *Handler { return &Handler{checks: map[string]Check{}} }

// WithCheck registers a named dependency check reported by Health.
func (h *Handler) WithCheck(name string, c Check) *Handler {
	h.checks[name] = c
	return h
}

func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	body := map[string]any{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if len(deps) > 0 {
		body["checks"] = deps
	}
	return c.JSON(code, body)
}
