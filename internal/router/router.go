package router // package router wires handlers and middleware onto the echo instance

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-booking/internal/handler"
	"github.com/iliyamo/resource-booking/internal/middleware"
	"github.com/iliyamo/resource-booking/internal/model"
)

// RegisterRoutes registers the health checks. /readyz is only mounted when
// db is non-nil.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterMetrics serves the Prometheus scrape endpoint at /metrics.
func RegisterMetrics(e *echo.Echo, h http.Handler) {
	e.GET("/metrics", echo.WrapHandler(h))
}

// RegisterAuth mounts the credential flow under /v1/auth and the profile
// endpoint under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout accepts either a refresh token or a bearer, so it sits outside JWTAuth
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleOwner, model.RoleCustomer))
	auth.GET("/me", a.Me)
}

// RegisterPublic mounts the unauthenticated resource reads. cache wraps only
// the resource documents; bookings, slots and availability are computed
// from the database on every request.
func RegisterPublic(e *echo.Echo, h *handler.ResourceHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/resources")
	if cache != nil {
		g.GET("", h.List, cache)
		g.GET("/:id", h.Get, cache)
	} else {
		g.GET("", h.List)
		g.GET("/:id", h.Get)
	}
	g.GET("/:id/bookings", h.DayBookings)
	g.GET("/:id/slots", h.Slots)
	g.GET("/:id/free-slots", h.FreeSlots)
	g.GET("/:id/availability", h.Availability)
}
