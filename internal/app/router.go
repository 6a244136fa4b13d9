package app

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// InitRouter sets up the metrics and probe routes
func (a *App) InitRouter() {
	a.Echo = echo.New()
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	a.Echo.Use(middleware.Recover())
	a.Echo.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "ledger_signer",
		Subsystem:  "http",
		Registerer: a.Registry,
	}))

	a.Echo.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.Registry,
	}))
	a.Echo.GET("/-/healthy", func(c echo.Context) error {
		return c.String(http.StatusOK, "healthy")
	})
	a.Echo.GET("/-/ready", func(c echo.Context) error {
		if !a.Ready() {
			return c.String(http.StatusServiceUnavailable, "not ready")
		}
		return c.String(http.StatusOK, "ready")
	})
}
