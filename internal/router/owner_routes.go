package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-booking/internal/handler"
	"github.com/iliyamo/resource-booking/internal/middleware"
	"github.com/iliyamo/resource-booking/internal/model"
)

// RegisterOwner registers OWNER-scoped resource management under /v1.
// Listing and reading resources stays on the public router.
func RegisterOwner(e *echo.Echo, h *handler.ResourceHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner),
	)
	g.POST("/resources", h.Create)
	g.PUT("/resources/:id", h.Update)
	g.PATCH("/resources/:id", h.Update)
	g.DELETE("/resources/:id", h.Delete)
}
