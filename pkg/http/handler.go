package http

import "github.com/labstack/echo/v4"

// Handler defines HTTP route registration interface.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// HealthCheck reports the state of one dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func(c echo.Context) error
}
