package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-booking/internal/handler"
	"github.com/iliyamo/resource-booking/internal/middleware"
	"github.com/iliyamo/resource-booking/internal/model"
)

// RegisterCustomer mounts the booking endpoints. Owners may book too, so
// both roles are accepted; ownership of each booking is checked by the
// service.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleOwner),
	)
	g.POST("/bookings", h.Create)
	g.GET("/my-bookings", h.Mine)
	g.GET("/bookings/:id", h.Get)
	g.DELETE("/bookings/:id", h.Cancel)
}
