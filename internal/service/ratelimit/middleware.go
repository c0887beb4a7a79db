package ratelimit

import (
	xhttp "FinSqueeze/pkg/http"

	"github.com/labstack/echo/v4"
)

// Middleware rejects requests beyond the per-client budget with 429.
func Middleware(l *Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}
